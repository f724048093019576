package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/switchly-settlement/internal/metrics"
	apperrors "github.com/chainsafe/switchly-settlement/pkg/app/errors"
	"github.com/chainsafe/switchly-settlement/pkg/asset"
	"github.com/chainsafe/switchly-settlement/pkg/bridge"
	"github.com/chainsafe/switchly-settlement/pkg/memo"
	"github.com/chainsafe/switchly-settlement/pkg/quote"
	"github.com/chainsafe/switchly-settlement/pkg/settlement"
	"github.com/chainsafe/switchly-settlement/pkg/swap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Snapshots serves the cached bridge pools and fees.
type Snapshots interface {
	Snapshot(ctx context.Context) (*bridge.Snapshot, error)
}

// Settlements is the narrow view of the settlement correlator used by the API.
type Settlements interface {
	Track(ctx context.Context, req settlement.Request) (*settlement.Status, error)
	Get(ctx context.Context, id uuid.UUID) (*settlement.Status, error)
	List(ctx context.Context, limit int) ([]*settlement.Status, error)
	Cancel(ctx context.Context, id uuid.UUID) (*settlement.Status, error)
}

// Service defines the swap quoting and settlement tracking API
type Service interface {
	ListPools(ctx context.Context) (*swap.PoolsResponse, error)
	Quote(ctx context.Context, req *swap.QuoteRequest) (*swap.QuoteResponse, error)
	Rate(ctx context.Context, from, to string) (*swap.RateResponse, error)
	MatchMemo(ctx context.Context, req *swap.MatchRequest) (*swap.MatchResponse, error)
	StartSettlement(ctx context.Context, req *settlement.Request) (*settlement.Status, error)
	GetSettlement(ctx context.Context, id uuid.UUID) (*settlement.Status, error)
	ListSettlements(ctx context.Context, limit int) ([]*settlement.Status, error)
	CancelSettlement(ctx context.Context, id uuid.UUID) (*settlement.Status, error)
}

type swapService struct {
	snapshots   Snapshots
	registry    *asset.Registry
	engine      *quote.Engine
	matcher     memo.Matcher
	settlements Settlements
	logger      *zap.Logger
}

// NewService creates a new swap service
func NewService(
	snapshots Snapshots,
	registry *asset.Registry,
	engine *quote.Engine,
	matcher memo.Matcher,
	settlements Settlements,
	logger *zap.Logger,
) Service {
	return &swapService{
		snapshots:   snapshots,
		registry:    registry,
		engine:      engine,
		matcher:     matcher,
		settlements: settlements,
		logger:      logger,
	}
}

// ListPools returns the pools of every configured asset the bridge reports.
func (s *swapService) ListPools(ctx context.Context) (*swap.PoolsResponse, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	resp := &swap.PoolsResponse{
		Bridge:    s.registry.Bridge().Ticker(),
		Pools:     []swap.Pool{},
		FetchedAt: snap.FetchedAt,
	}
	for _, ref := range s.registry.All() {
		if ref.Bridge {
			continue
		}
		p, ok := snap.Pool(ref.PoolAsset)
		if !ok {
			continue
		}
		view := swap.Pool{
			Ticker:        ref.Ticker(),
			PoolAsset:     p.Asset,
			Decimals:      ref.Decimals,
			BalanceAsset:  p.BalanceAsset,
			BalanceBridge: p.BalanceBridge,
			Status:        p.Status,
		}
		if p.BalanceAsset.IsPositive() {
			view.Price = p.BalanceBridge.DivRound(p.BalanceAsset, asset.StandardDecimals)
		}
		resp.Pools = append(resp.Pools, view)
	}
	slices.SortFunc(resp.Pools, func(a, b swap.Pool) int {
		return strings.Compare(a.Ticker, b.Ticker)
	})
	return resp, nil
}

// Quote prices a swap. A missing or empty pool is not an error: the
// response reports the quote as unavailable.
func (s *swapService) Quote(ctx context.Context, req *swap.QuoteRequest) (*swap.QuoteResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, apperrors.BadRequestError(nil, "amount must be positive")
	}
	from, to, err := s.pair(req.From, req.To)
	if err != nil {
		return nil, err
	}
	if from.Bridge || to.Bridge {
		metrics.QuotesTotal.WithLabelValues("unavailable").Inc()
		return &swap.QuoteResponse{Reason: swap.ReasonBridgeAsset}, nil
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		metrics.QuotesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	q := s.engine.Quote(poolSnapshot(snap, from), poolSnapshot(snap, to), req.Amount, snap.Network.Fees())
	if q == nil {
		metrics.QuotesTotal.WithLabelValues("unavailable").Inc()
		return &swap.QuoteResponse{Reason: swap.ReasonNoLiquidity}, nil
	}
	metrics.QuotesTotal.WithLabelValues("ok").Inc()
	return &swap.QuoteResponse{Available: true, Quote: q}, nil
}

// Rate returns the headline rate for one whole unit of from.
func (s *swapService) Rate(ctx context.Context, fromTicker, toTicker string) (*swap.RateResponse, error) {
	from, to, err := s.pair(fromTicker, toTicker)
	if err != nil {
		return nil, err
	}
	resp := &swap.RateResponse{From: from.Ticker(), To: to.Ticker(), Rate: decimal.Zero}
	if from.Bridge || to.Bridge {
		return resp, nil
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	resp.Rate, resp.Available = s.engine.ExchangeRate(poolSnapshot(snap, from), poolSnapshot(snap, to), snap.Network.Fees())
	return resp, nil
}

// MatchMemo reports whether a settlement memo references the source hash.
func (s *swapService) MatchMemo(_ context.Context, req *swap.MatchRequest) (*swap.MatchResponse, error) {
	if strings.TrimSpace(req.SourceHash) == "" {
		return nil, apperrors.BadRequestError(nil, "source hash is required")
	}
	resp := &swap.MatchResponse{
		Match:     s.matcher.Matches(req.Memo, req.SourceHash),
		Truncated: s.matcher.Truncate(req.SourceHash),
	}
	if parsed, err := memo.Parse(req.Memo); err == nil {
		resp.Kind = string(parsed.Kind)
	}
	return resp, nil
}

// StartSettlement begins tracking a submitted source transaction.
func (s *swapService) StartSettlement(ctx context.Context, req *settlement.Request) (*settlement.Status, error) {
	st, err := s.settlements.Track(ctx, *req)
	if err != nil {
		return nil, settlementError(err)
	}
	return st, nil
}

func (s *swapService) GetSettlement(ctx context.Context, id uuid.UUID) (*settlement.Status, error) {
	st, err := s.settlements.Get(ctx, id)
	if err != nil {
		return nil, settlementError(err)
	}
	return st, nil
}

func (s *swapService) ListSettlements(ctx context.Context, limit int) ([]*settlement.Status, error) {
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	list, err := s.settlements.List(ctx, limit)
	if err != nil {
		return nil, settlementError(err)
	}
	return list, nil
}

// CancelSettlement stops polling a settlement. Cancelling a finished or
// already cancelled settlement returns its snapshot unchanged.
func (s *swapService) CancelSettlement(ctx context.Context, id uuid.UUID) (*settlement.Status, error) {
	st, err := s.settlements.Cancel(ctx, id)
	if err != nil {
		return nil, settlementError(err)
	}
	return st, nil
}

func (s *swapService) pair(fromTicker, toTicker string) (asset.Ref, asset.Ref, error) {
	from, err := s.lookup(fromTicker)
	if err != nil {
		return asset.Ref{}, asset.Ref{}, err
	}
	to, err := s.lookup(toTicker)
	if err != nil {
		return asset.Ref{}, asset.Ref{}, err
	}
	if from.Ticker() == to.Ticker() {
		return asset.Ref{}, asset.Ref{}, apperrors.BadRequestError(nil, "from and to must differ")
	}
	return from, to, nil
}

func (s *swapService) lookup(ticker string) (asset.Ref, error) {
	ref, err := s.registry.Lookup(ticker)
	if err != nil {
		var invalid *asset.InvalidAssetError
		if errors.As(err, &invalid) {
			return asset.Ref{}, apperrors.BadRequestError(err, fmt.Sprintf("unknown asset %q", invalid.Ticker))
		}
		return asset.Ref{}, apperrors.GeneralError(err)
	}
	return ref, nil
}

func (s *swapService) snapshot(ctx context.Context) (*bridge.Snapshot, error) {
	snap, err := s.snapshots.Snapshot(ctx)
	if err != nil {
		return nil, apperrors.DependencyError(err, "bridge network unavailable")
	}
	return snap, nil
}

func poolSnapshot(snap *bridge.Snapshot, ref asset.Ref) *quote.PoolSnapshot {
	p, ok := snap.Pool(ref.PoolAsset)
	if !ok {
		return nil
	}
	return p.Snapshot(ref)
}

func settlementError(err error) error {
	switch {
	case errors.Is(err, settlement.ErrInvalidRequest), errors.Is(err, settlement.ErrUnknownChain):
		return apperrors.BadRequestError(err, err.Error())
	case errors.Is(err, settlement.ErrSessionNotFound):
		return apperrors.ResourceNotFoundError(err, "settlement not found")
	case errors.Is(err, settlement.ErrTooManySessions):
		return apperrors.RecoveringError(err, "too many active settlements, retry later")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.TimeoutError(err, "settlement store timed out")
	default:
		return apperrors.GeneralError(err)
	}
}
