// Package settlementstore persists settlement snapshots in PostgreSQL.
package settlementstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/chainsafe/switchly-settlement/pkg/settlement"
)

// ErrSettlementNotFound is returned when no row matches the id. It also
// matches settlement.ErrSessionNotFound.
var ErrSettlementNotFound = fmt.Errorf("settlement record not found: %w", settlement.ErrSessionNotFound)

var terminalStates = []string{
	string(settlement.StateCompleted),
	string(settlement.StateFailed),
	string(settlement.StateTimeout),
}

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the settlement store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) CreateSettlement(ctx context.Context, st *settlement.Status) error {
	if _, err := s.db.NewInsert().
		Model(toSettlementDao(st)).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create settlement: %w", err)
	}
	return nil
}

func (s *pgStore) UpdateSettlement(ctx context.Context, st *settlement.Status) error {
	res, err := s.db.NewUpdate().
		Model(toSettlementDao(st)).
		Column("state", "failure_reason", "cancelled", "polls", "source_tx", "bridge_action", "target_tx", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update settlement: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSettlementNotFound
	}
	return nil
}

func (s *pgStore) GetSettlement(ctx context.Context, id uuid.UUID) (*settlement.Status, error) {
	dao := new(SettlementDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettlementNotFound
		}
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return toStatus(dao), nil
}

func (s *pgStore) ListSettlements(ctx context.Context, limit int) ([]*settlement.Status, error) {
	var daos []SettlementDao
	query := s.db.NewSelect().
		Model(&daos).
		Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	return toStatuses(daos), nil
}

func (s *pgStore) ListActiveSettlements(ctx context.Context) ([]*settlement.Status, error) {
	var daos []SettlementDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("cancelled = FALSE").
		Where("state NOT IN (?)", bun.In(terminalStates)).
		Order("started_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active settlements: %w", err)
	}
	return toStatuses(daos), nil
}

// Ping reports whether the database answers.
func (s *pgStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func toStatuses(daos []SettlementDao) []*settlement.Status {
	out := make([]*settlement.Status, len(daos))
	for i := range daos {
		out[i] = toStatus(&daos[i])
	}
	return out
}
