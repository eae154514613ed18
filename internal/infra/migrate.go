// README: Schema bootstrap. The initial migration is embedded and applied
// when required tables are missing, so a fresh database comes up without a
// separate migration step.
package infra

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/0001_init.sql
var initialMigrationSQL string

var requiredTables = []string{
	"users",
	"recipients",
	"donations",
	"donation_audit_log",
	"transactions",
	"pickups",
	"location_snapshots",
	"activity_events",
}

// EnsureSchema applies the initial migration if any required table is
// missing. Safe to call on every start.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, log *logrus.Logger) error {
	exists, err := hasAllRequiredTables(ctx, pool)
	if err != nil {
		return fmt.Errorf("check existing tables: %w", err)
	}
	if exists {
		return nil
	}

	log.Info("schema missing tables, applying initial migration")
	if _, err := pool.Exec(ctx, initialMigrationSQL); err != nil {
		return fmt.Errorf("apply initial migration: %w", err)
	}

	exists, err = hasAllRequiredTables(ctx, pool)
	if err != nil {
		return fmt.Errorf("re-check tables after migration: %w", err)
	}
	if !exists {
		return fmt.Errorf("schema initialization incomplete: required tables are still missing")
	}
	log.Info("schema ensured")
	return nil
}

func hasAllRequiredTables(ctx context.Context, pool *pgxpool.Pool) (bool, error) {
	var count int
	err := pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_name = ANY($1)
	`, requiredTables).Scan(&count)
	if err != nil {
		return false, err
	}
	return count == len(requiredTables), nil
}
