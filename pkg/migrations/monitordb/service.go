// Package monitordb holds all the migrations for the settlement monitor database
package monitordb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the settlement monitor database
var Migrations = migrate.NewMigrations()
