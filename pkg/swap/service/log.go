package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/switchly-settlement/pkg/app/errors"
	"github.com/chainsafe/switchly-settlement/pkg/memo"
	"github.com/chainsafe/switchly-settlement/pkg/settlement"
	"github.com/chainsafe/switchly-settlement/pkg/swap"
)

const serviceName = "SwapService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc     Service
	logger  *zap.Logger
	matcher memo.Matcher
}

// NewLog creates a logging decorator for the swap Service.
// Reads are logged at debug level, settlement changes at info level.
// Source hashes are logged in truncated form.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:     svc,
		logger:  logger,
		matcher: memo.NewMatcher(0, 0),
	}
}

func (ls *logService) ListPools(ctx context.Context) (resp *swap.PoolsResponse, err error) {
	defer ls.done("ListPools", time.Now(), &err, false, func() []zap.Field {
		return []zap.Field{zap.Int("pools", len(resp.Pools))}
	})
	return ls.svc.ListPools(ctx)
}

func (ls *logService) Quote(ctx context.Context, req *swap.QuoteRequest) (resp *swap.QuoteResponse, err error) {
	defer ls.done("Quote", time.Now(), &err, false, func() []zap.Field {
		fields := []zap.Field{
			zap.String("from", req.From),
			zap.String("to", req.To),
			zap.String("amount", req.Amount.String()),
			zap.Bool("available", resp.Available),
		}
		if resp.Quote != nil {
			fields = append(fields,
				zap.String("output", resp.Quote.OutputAmount.String()),
				zap.String("price_impact_pct", resp.Quote.PriceImpactPct.String()),
			)
		}
		return fields
	})
	return ls.svc.Quote(ctx, req)
}

func (ls *logService) Rate(ctx context.Context, from, to string) (resp *swap.RateResponse, err error) {
	defer ls.done("Rate", time.Now(), &err, false, func() []zap.Field {
		return []zap.Field{
			zap.String("from", from),
			zap.String("to", to),
			zap.String("rate", resp.Rate.String()),
		}
	})
	return ls.svc.Rate(ctx, from, to)
}

func (ls *logService) MatchMemo(ctx context.Context, req *swap.MatchRequest) (resp *swap.MatchResponse, err error) {
	defer ls.done("MatchMemo", time.Now(), &err, false, func() []zap.Field {
		return []zap.Field{
			zap.String("source_hash", resp.Truncated),
			zap.Bool("match", resp.Match),
		}
	})
	return ls.svc.MatchMemo(ctx, req)
}

// StartSettlement wraps the service method with logging
func (ls *logService) StartSettlement(
	ctx context.Context,
	req *settlement.Request,
) (resp *settlement.Status, err error) {
	ls.logger.Info("StartSettlement started",
		zap.String("service", serviceName),
		zap.String("method", "StartSettlement"),
		zap.String("source_chain", req.SourceChain),
		zap.String("source_hash", ls.matcher.Truncate(req.SourceHash)),
		zap.String("dest_chain", req.DestChain),
	)
	defer ls.done("StartSettlement", time.Now(), &err, true, func() []zap.Field {
		return statusFields(resp)
	})
	return ls.svc.StartSettlement(ctx, req)
}

func (ls *logService) GetSettlement(ctx context.Context, id uuid.UUID) (resp *settlement.Status, err error) {
	defer ls.done("GetSettlement", time.Now(), &err, false, func() []zap.Field {
		return statusFields(resp)
	})
	return ls.svc.GetSettlement(ctx, id)
}

func (ls *logService) ListSettlements(ctx context.Context, limit int) (resp []*settlement.Status, err error) {
	defer ls.done("ListSettlements", time.Now(), &err, false, func() []zap.Field {
		return []zap.Field{zap.Int("limit", limit), zap.Int("count", len(resp))}
	})
	return ls.svc.ListSettlements(ctx, limit)
}

// CancelSettlement wraps the service method with logging
func (ls *logService) CancelSettlement(ctx context.Context, id uuid.UUID) (resp *settlement.Status, err error) {
	defer ls.done("CancelSettlement", time.Now(), &err, true, func() []zap.Field {
		return statusFields(resp)
	})
	return ls.svc.CancelSettlement(ctx, id)
}

// done logs the outcome of a call. success is only evaluated when err is nil.
func (ls *logService) done(method string, start time.Time, err *error, mutating bool, success func() []zap.Field) {
	fields := []zap.Field{
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
	}

	if *err != nil {
		fields = append(fields, zap.Error(*err))
		if apperrors.IsInternalError(*err) {
			ls.logger.Error(method+" failed", fields...)
		} else {
			ls.logger.Warn(method+" rejected", fields...)
		}
		return
	}

	fields = append(fields, success()...)
	if mutating {
		ls.logger.Info(method+" completed", fields...)
	} else {
		ls.logger.Debug(method+" completed", fields...)
	}
}

func statusFields(st *settlement.Status) []zap.Field {
	return []zap.Field{
		zap.String("settlement_id", st.ID.String()),
		zap.String("state", string(st.State)),
		zap.Bool("cancelled", st.Cancelled),
	}
}
