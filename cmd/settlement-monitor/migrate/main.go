package main

import (
	"context"
	"flag"
	"log"

	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/switchly-settlement/pkg/config"
	"github.com/chainsafe/switchly-settlement/pkg/migrations/monitordb"
	"github.com/chainsafe/switchly-settlement/pkg/pgutil"
	mghelper "github.com/chainsafe/switchly-settlement/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	ctx := context.Background()
	db, err := pgutil.ConnectDB(ctx, &cfg.Database, nil)
	if err != nil {
		log.Fatalf("failed to connect to database %s: %s", cfg.Database.Database, err.Error())
	}
	defer db.Close()

	log.Printf("Running migrations for settlement monitor database (%s)...\n", cfg.Database.Database)

	migrator := migrate.NewMigrator(db, monitordb.Migrations)
	if err := mghelper.RunMigrations(ctx, migrator, flag.Args()...); err != nil {
		mghelper.Exitf("%s", err)
	}
}
