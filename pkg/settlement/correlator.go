package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/switchly-settlement/internal/metrics"
	"github.com/chainsafe/switchly-settlement/pkg/asset"
	"github.com/chainsafe/switchly-settlement/pkg/chain"
	"github.com/chainsafe/switchly-settlement/pkg/config"
	"github.com/chainsafe/switchly-settlement/pkg/memo"
)

const persistTimeout = 5 * time.Second

// Store persists settlement snapshots so sessions survive restarts.
type Store interface {
	CreateSettlement(ctx context.Context, st *Status) error
	UpdateSettlement(ctx context.Context, st *Status) error
	GetSettlement(ctx context.Context, id uuid.UUID) (*Status, error)
	ListSettlements(ctx context.Context, limit int) ([]*Status, error)
	ListActiveSettlements(ctx context.Context) ([]*Status, error)
}

// ChainProbes are the observers of one chain.
type ChainProbes struct {
	Kind   chain.Kind
	Probe  chain.Probe
	Finder chain.PayoutFinder
}

// Correlator owns the settlement sessions of the process.
type Correlator struct {
	chains    map[string]ChainProbes
	actions   ActionFinder
	store     Store
	registry  *asset.Registry
	scheduler Scheduler
	timing    config.SettlementConfig
	logger    *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithStore persists every snapshot. Without it sessions live in memory only.
func WithStore(store Store) Option {
	return func(c *Correlator) { c.store = store }
}

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(s Scheduler) Option {
	return func(c *Correlator) { c.scheduler = s }
}

// NewCorrelator creates a correlator over the given chain probes, keyed by chain id.
func NewCorrelator(
	chains map[string]ChainProbes,
	actions ActionFinder,
	registry *asset.Registry,
	timing config.SettlementConfig,
	logger *zap.Logger,
	opts ...Option,
) *Correlator {
	normalized := make(map[string]ChainProbes, len(chains))
	for id, probes := range chains {
		normalized[strings.ToUpper(id)] = probes
	}
	c := &Correlator{
		chains:    normalized,
		actions:   actions,
		registry:  registry,
		scheduler: SystemScheduler(),
		timing:    timing,
		logger:    logger.With(zap.String("component", "settlement_correlator")),
		sessions:  make(map[uuid.UUID]*Session),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins tracking a submitted source transaction. Starting a source hash
// that is already tracked returns the existing session.
func (c *Correlator) Start(ctx context.Context, req Request) (*Session, error) {
	req, err := c.normalize(req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for _, s := range c.sessions {
		if memo.NormalizeHash(s.Latest().Request.SourceHash) == memo.NormalizeHash(req.SourceHash) {
			c.mu.Unlock()
			return s, nil
		}
	}
	if len(c.sessions) >= c.timing.MaxSessions {
		c.mu.Unlock()
		return nil, ErrTooManySessions
	}

	now := c.scheduler.Now()
	initial := &Status{
		ID:        uuid.New(),
		Request:   req,
		State:     StateSent,
		Source:    chain.Pending(req.SourceChain, c.chains[req.SourceChain].Kind, req.SourceHash),
		StartedAt: now,
		UpdatedAt: now,
	}
	session := c.newSession(initial)
	c.sessions[initial.ID] = session
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.CreateSettlement(ctx, initial); err != nil {
			c.remove(initial.ID)
			return nil, fmt.Errorf("failed to persist settlement: %w", err)
		}
	}

	metrics.SessionsStarted.WithLabelValues(req.SourceChain, req.DestChain).Inc()
	metrics.SessionsActive.Inc()
	c.logger.Info("Settlement session started",
		zap.String("session_id", initial.ID.String()),
		zap.String("source_chain", req.SourceChain),
		zap.String("source_hash", req.SourceHash),
		zap.String("dest_chain", req.DestChain),
	)

	session.Start()
	return session, nil
}

// Track starts (or joins) a settlement and returns its current snapshot.
func (c *Correlator) Track(ctx context.Context, req Request) (*Status, error) {
	s, err := c.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Latest(), nil
}

// Resume restarts polling for every active persisted settlement.
func (c *Correlator) Resume(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}
	active, err := c.store.ListActiveSettlements(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active settlements: %w", err)
	}

	resumed := 0
	for _, st := range active {
		if _, ok := c.chains[st.Request.SourceChain]; !ok {
			c.logger.Warn("Skipping settlement for unconfigured chain",
				zap.String("session_id", st.ID.String()),
				zap.String("source_chain", st.Request.SourceChain),
			)
			continue
		}

		c.mu.Lock()
		if _, ok := c.sessions[st.ID]; ok || len(c.sessions) >= c.timing.MaxSessions {
			c.mu.Unlock()
			continue
		}
		session := c.newSession(st)
		c.sessions[st.ID] = session
		c.mu.Unlock()

		metrics.SessionsActive.Inc()
		session.Start()
		resumed++
	}

	c.logger.Info("Resumed settlement sessions", zap.Int("count", resumed), zap.Int("persisted", len(active)))
	return resumed, nil
}

// Session returns a live session.
func (c *Correlator) Session(id uuid.UUID) (*Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[id]
	return s, ok
}

// Get returns the latest snapshot of a live or persisted settlement.
func (c *Correlator) Get(ctx context.Context, id uuid.UUID) (*Status, error) {
	if s, ok := c.Session(id); ok {
		return s.Latest(), nil
	}
	if c.store == nil {
		return nil, ErrSessionNotFound
	}
	return c.store.GetSettlement(ctx, id)
}

// List returns recent settlements, newest first, with live snapshots taking
// precedence over persisted ones.
func (c *Correlator) List(ctx context.Context, limit int) ([]*Status, error) {
	if c.store == nil {
		c.mu.RLock()
		out := make([]*Status, 0, len(c.sessions))
		for _, s := range c.sessions {
			out = append(out, s.Latest())
		}
		c.mu.RUnlock()
		sortByStart(out)
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return out, nil
	}

	persisted, err := c.store.ListSettlements(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i, st := range persisted {
		if s, ok := c.Session(st.ID); ok {
			persisted[i] = s.Latest()
		}
	}
	return persisted, nil
}

// Cancel stops a live settlement and marks it cancelled.
func (c *Correlator) Cancel(ctx context.Context, id uuid.UUID) (*Status, error) {
	s, ok := c.Session(id)
	if !ok {
		return c.Get(ctx, id)
	}
	s.Cancel()
	return s.Latest(), nil
}

// Active returns the number of live sessions.
func (c *Correlator) Active() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// Stop halts every session without marking it, so it resumes on next start.
func (c *Correlator) Stop() {
	c.mu.Lock()
	sessions := make([]*Session, 0, len(c.sessions))
	for id, s := range c.sessions {
		sessions = append(sessions, s)
		delete(c.sessions, id)
	}
	c.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
		metrics.SessionsActive.Dec()
	}
	c.logger.Info("Settlement sessions stopped", zap.Int("count", len(sessions)))
}

func (c *Correlator) normalize(req Request) (Request, error) {
	req.SourceChain = strings.ToUpper(strings.TrimSpace(req.SourceChain))
	req.DestChain = strings.ToUpper(strings.TrimSpace(req.DestChain))
	req.SourceHash = strings.TrimSpace(req.SourceHash)
	req.DestAddress = strings.TrimSpace(req.DestAddress)

	if req.SourceHash == "" {
		return req, fmt.Errorf("%w: source_hash is required", ErrInvalidRequest)
	}
	if _, ok := c.chains[req.SourceChain]; !ok {
		return req, fmt.Errorf("%w: %q", ErrUnknownChain, req.SourceChain)
	}

	if req.Memo != "" {
		m, err := memo.Parse(req.Memo)
		if err != nil {
			return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		if m.Kind != memo.KindSwap {
			return req, fmt.Errorf("%w: memo must be a %s memo", ErrInvalidRequest, memo.KindSwap)
		}
		ref, err := c.registry.Lookup(m.Ticker)
		if err != nil {
			return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		if req.DestChain != "" && req.DestChain != ref.Chain {
			return req, fmt.Errorf("%w: dest_chain %s contradicts memo", ErrInvalidRequest, req.DestChain)
		}
		if req.DestAddress != "" && !strings.EqualFold(req.DestAddress, m.Address) {
			return req, fmt.Errorf("%w: dest_address contradicts memo", ErrInvalidRequest)
		}
		req.DestChain = ref.Chain
		req.DestAddress = m.Address
	}

	if req.DestChain == "" {
		return req, fmt.Errorf("%w: dest_chain is required", ErrInvalidRequest)
	}
	if _, ok := c.chains[req.DestChain]; !ok {
		return req, fmt.Errorf("%w: %q", ErrUnknownChain, req.DestChain)
	}
	return req, nil
}

func (c *Correlator) newSession(initial *Status) *Session {
	src := c.chains[initial.Request.SourceChain]
	dst, hasDest := c.chains[initial.Request.DestChain]

	deps := sessionDeps{
		Source:    chain.NewTolerant(src.Probe, "chain_"+strings.ToLower(initial.Request.SourceChain), initial.Request.SourceChain, src.Kind, c.logger),
		Actions:   c.actions,
		Scheduler: c.scheduler,
		Timing:    c.timing,
		OnUpdate:  c.onUpdate,
		Logger:    c.logger,
	}
	if hasDest {
		deps.Dest = chain.NewTolerant(dst.Probe, "chain_"+strings.ToLower(initial.Request.DestChain), initial.Request.DestChain, dst.Kind, c.logger)
		deps.Finder = dst.Finder
	}
	return newSession(initial, deps)
}

func (c *Correlator) onUpdate(st *Status) {
	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := c.store.UpdateSettlement(ctx, st); err != nil {
			metrics.ErrorsTotal.WithLabelValues("correlator", "persist").Inc()
			c.logger.Error("Failed to persist settlement",
				zap.String("session_id", st.ID.String()),
				zap.Error(err),
			)
		}
		cancel()
	}

	if st.Active() {
		return
	}
	if !c.remove(st.ID) {
		return
	}

	metrics.SessionsActive.Dec()
	label := string(st.State)
	if st.Cancelled {
		label = "CANCELLED"
	}
	metrics.SessionsFinished.WithLabelValues(label).Inc()
	metrics.SessionDuration.WithLabelValues(label).Observe(st.UpdatedAt.Sub(st.StartedAt).Seconds())

	fields := []zap.Field{
		zap.String("session_id", st.ID.String()),
		zap.String("state", label),
		zap.Int("polls", st.Polls),
	}
	if err := st.Err(); err != nil {
		var failed *SettlementFailedError
		if errors.As(err, &failed) {
			fields = append(fields, zap.String("reason", string(failed.Reason)))
		}
		c.logger.Warn("Settlement session ended", append(fields, zap.Error(err))...)
		return
	}
	c.logger.Info("Settlement session ended", fields...)
}

func (c *Correlator) remove(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[id]; !ok {
		return false
	}
	delete(c.sessions, id)
	return true
}
