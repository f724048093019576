package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chainsafe/switchly-settlement/pkg/bridge"
	"github.com/chainsafe/switchly-settlement/pkg/chain"
	"github.com/chainsafe/switchly-settlement/pkg/config"
)

// ActionFinder looks up the bridge action for a source transaction.
type ActionFinder interface {
	FindAction(ctx context.Context, sourceHash string) (*bridge.Action, error)
}

// sessionDeps are the collaborators of one session. Dest and Finder may be nil.
type sessionDeps struct {
	Source    *chain.Tolerant
	Dest      *chain.Tolerant
	Finder    chain.PayoutFinder
	Actions   ActionFinder
	Scheduler Scheduler
	Timing    config.SettlementConfig
	OnUpdate  func(*Status)
	Logger    *zap.Logger
}

// Session polls one swap until it reaches a terminal state, times out or is
// cancelled. Polls never overlap: the next one is scheduled after the previous
// one completes.
type Session struct {
	deps     sessionDeps
	deadline time.Time
	backoff  *backoff.ExponentialBackOff
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	latest     *Status
	targetHash string
	timer      Timer
	finished   bool

	updates  chan *Status
	done     chan struct{}
	stopOnce sync.Once

	// notifyMu serializes OnUpdate calls; delivered is the last snapshot handed over.
	notifyMu  sync.Mutex
	delivered *Status
}

func newSession(initial *Status, deps sessionDeps) *Session {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = deps.Timing.ErrorBackoffInitial
	b.MaxInterval = deps.Timing.ErrorBackoffMax
	b.MaxElapsedTime = 0
	b.Reset()

	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		deps:     deps,
		deadline: initial.StartedAt.Add(deps.Timing.SessionTimeout),
		backoff:  b,
		logger: deps.Logger.With(
			zap.String("session_id", initial.ID.String()),
			zap.String("source_hash", initial.Request.SourceHash),
		),
		ctx:     ctx,
		cancel:  cancel,
		latest:  initial,
		updates: make(chan *Status, 1),
		done:    make(chan struct{}),
	}
	if initial.Target != nil {
		s.targetHash = initial.Target.Hash
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.Latest().ID.String()
}

// Latest returns the most recent snapshot. It is never nil.
func (s *Session) Latest() *Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Updates delivers snapshots as they are produced. Only the newest unread
// snapshot is kept. The channel is closed when the session stops.
func (s *Session) Updates() <-chan *Status {
	return s.updates
}

// Done is closed when the session stops polling for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start schedules the first poll immediately.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.timer = s.deps.Scheduler.AfterFunc(0, s.tick)
}

// Cancel stops polling and marks the settlement cancelled. It is safe to call
// more than once and after the session finished on its own.
func (s *Session) Cancel() {
	s.halt(true)
}

// Stop stops polling without recording anything, so the session can be resumed.
func (s *Session) Stop() {
	s.halt(false)
}

func (s *Session) halt(markCancelled bool) {
	s.stopOnce.Do(func() {
		s.cancel()

		s.mu.Lock()
		if s.finished {
			s.mu.Unlock()
			return
		}
		if s.timer != nil {
			s.timer.Stop()
		}
		var snapshot *Status
		if markCancelled {
			snapshot = s.latest.clone()
			snapshot.Cancelled = true
			snapshot.UpdatedAt = s.deps.Scheduler.Now()
			s.latest = snapshot
			s.publish(snapshot)
		}
		s.finish()
		s.mu.Unlock()

		if snapshot != nil {
			s.logger.Info("Settlement session cancelled", zap.String("state", string(snapshot.State)))
			s.notify(snapshot)
		}
	})
}

func (s *Session) tick() {
	if s.ctx.Err() != nil {
		return
	}
	prev := s.Latest()

	ctx, cancel := context.WithTimeout(s.ctx, s.deps.Timing.ProbeTimeout)
	defer cancel()

	obs := s.observe(ctx, prev)

	now := s.deps.Scheduler.Now()
	next := &Status{
		ID:        prev.ID,
		Request:   prev.Request,
		Source:    obs.source,
		Action:    obs.action,
		Target:    obs.target,
		Polls:     prev.Polls + 1,
		StartedAt: prev.StartedAt,
		UpdatedAt: now,
	}
	next.State, next.Reason = Derive(next.Source, next.Action, next.Target)
	if !next.Terminal() && !now.Before(s.deadline) {
		next.State, next.Reason = StateTimeout, ReasonNone
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.latest = next
	s.targetHash = obs.targetHash
	s.publish(next)
	if next.Terminal() {
		s.finish()
	} else {
		s.timer = s.deps.Scheduler.AfterFunc(s.nextDelay(next, obs.degraded, now), s.tick)
	}
	s.mu.Unlock()

	if next.Terminal() {
		s.cancel()
	}
	if next.State != prev.State {
		s.logger.Info("Settlement state changed",
			zap.String("from", string(prev.State)),
			zap.String("to", string(next.State)),
			zap.Int("polls", next.Polls),
		)
	}
	s.notify(next)
}

type observation struct {
	source     *chain.TxStatus
	action     *bridge.Action
	target     *chain.TxStatus
	targetHash string
	degraded   bool
}

// observe runs one round of probes. Probe errors only degrade the round.
func (s *Session) observe(ctx context.Context, prev *Status) observation {
	req := prev.Request
	obs := observation{action: prev.Action, target: prev.Target}

	s.mu.Lock()
	obs.targetHash = s.targetHash
	s.mu.Unlock()

	var (
		action    *bridge.Action
		actionErr error
		payout    *chain.TxStatus
		payoutErr error
		searched  bool
	)

	sourceConfirmed := prev.Source != nil && prev.Source.State == chain.TxConfirmed
	searchPayout := s.deps.Finder != nil && req.DestAddress != "" && obs.targetHash == "" &&
		sourceConfirmed && !prev.Action.Terminal()

	var g errgroup.Group
	g.Go(func() error {
		obs.source = s.deps.Source.Probe(ctx, req.SourceHash)
		return nil
	})
	if !prev.Action.Terminal() {
		g.Go(func() error {
			action, actionErr = s.deps.Actions.FindAction(ctx, req.SourceHash)
			return nil
		})
	}
	if searchPayout {
		searched = true
		g.Go(func() error {
			payout, payoutErr = s.deps.Finder.FindPayout(ctx, req.DestAddress, req.SourceHash)
			return nil
		})
	}
	_ = g.Wait()

	obs.degraded = obs.source.Stale || actionErr != nil || payoutErr != nil
	if actionErr != nil {
		s.logger.Warn("Bridge action lookup failed", zap.Error(actionErr))
	}
	if action != nil {
		obs.action = action
	}

	// The queue entry may be gone by the time the payout lands.
	if payout != nil && !obs.action.Terminal() {
		synthesized := bridge.Classify(bridge.OutboundEntry{
			Chain:     req.DestChain,
			ToAddress: req.DestAddress,
			Memo:      payout.Memo,
			InHash:    req.SourceHash,
			OutHash:   payout.Hash,
		})
		synthesized.Synthesized = true
		obs.action = &synthesized
	}

	if obs.source.State != chain.TxConfirmed || obs.action == nil || obs.action.State != bridge.ActionSuccess {
		return obs
	}

	switch {
	case payout != nil:
		obs.targetHash = payout.Hash
		obs.target = payout
		return obs
	case obs.targetHash == "" && obs.action.OutHash != "":
		obs.targetHash = obs.action.OutHash
	}

	if obs.targetHash != "" && s.deps.Dest != nil {
		obs.target = s.deps.Dest.Probe(ctx, obs.targetHash)
		obs.degraded = obs.degraded || obs.target.Stale
		return obs
	}

	if obs.targetHash == "" && !searched && s.deps.Finder != nil && req.DestAddress != "" {
		found, err := s.deps.Finder.FindPayout(ctx, req.DestAddress, req.SourceHash)
		if err != nil {
			s.logger.Warn("Payout lookup failed", zap.Error(err))
			obs.degraded = true
		} else if found != nil {
			obs.targetHash = found.Hash
			obs.target = found
		}
	}
	return obs
}

// nextDelay must be called with mu held.
func (s *Session) nextDelay(st *Status, degraded bool, now time.Time) time.Duration {
	var d time.Duration
	switch {
	case degraded:
		d = s.backoff.NextBackOff()
		if d == backoff.Stop {
			d = s.deps.Timing.ErrorBackoffMax
		}
	case st.State == StateSent:
		s.backoff.Reset()
		d = s.deps.Timing.FastInterval
	default:
		s.backoff.Reset()
		d = s.deps.Timing.SlowInterval
	}

	if remaining := s.deadline.Sub(now); d > remaining {
		d = remaining
	}
	if d < 0 {
		d = 0
	}
	return d
}

// publish must be called with mu held.
func (s *Session) publish(st *Status) {
	if s.finished {
		return
	}
	select {
	case s.updates <- st:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- st:
	default:
	}
}

// finish must be called with mu held.
func (s *Session) finish() {
	if s.finished {
		return
	}
	s.finished = true
	s.timer = nil
	close(s.updates)
	close(s.done)
}

// notify hands st to OnUpdate. Snapshots older than the last delivered one, or
// following a cancelled or terminal one, are dropped, so a slow write for an
// earlier tick cannot overwrite a newer record.
func (s *Session) notify(st *Status) {
	if s.deps.OnUpdate == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if last := s.delivered; last != nil && (last.Cancelled || last.Terminal() || st.Polls < last.Polls) {
		return
	}
	s.delivered = st
	s.deps.OnUpdate(st)
}
