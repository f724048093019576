package monitordb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/chainsafe/switchly-settlement/pkg/pgutil/migrations"
	"github.com/chainsafe/switchly-settlement/pkg/settlementstore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating settlements table...")
		if err := mghelper.CreateSchema(ctx, db, &settlementstore.SettlementDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &settlementstore.SettlementDao{}, "state", "source_hash", "started_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping settlements table...")
		return mghelper.DropTables(ctx, db, &settlementstore.SettlementDao{})
	})
}
