package migration

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"assessment-generator/pkg/logger"
)

// RunMigrations executes all necessary database migrations on startup
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) error {
	if log == nil {
		log = logger.Nop()
	}
	log.Info("Starting database migrations")

	for _, m := range Migrations() {
		if err := m.Up(ctx, pool); err != nil {
			log.Error("Migration failed", "name", m.Name, "error", err)
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
		log.Info("Migration completed", "name", m.Name)
	}

	log.Info("All migrations completed successfully")
	return nil
}

// Migration represents a database migration
type Migration struct {
	Name string
	Up   func(ctx context.Context, pool *pgxpool.Pool) error
}

// Migrations lists every migration in the order it must run. Each one is
// idempotent.
func Migrations() []Migration {
	return []Migration{
		{Name: "create_subscribers_table", Up: execer(createSubscribers)},
		{Name: "add_lead_magnet_generated_to_subscribers", Up: execer(addLeadMagnetGenerated)},
		{Name: "create_subscribers_verification_token_index", Up: execer(createTokenIndex)},
	}
}

const createSubscribers = `
	CREATE TABLE IF NOT EXISTS subscribers (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		verification_token TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
`

const addLeadMagnetGenerated = `
	ALTER TABLE subscribers
	ADD COLUMN IF NOT EXISTS lead_magnet_generated JSONB DEFAULT '{}'::jsonb;
`

const createTokenIndex = `
	CREATE UNIQUE INDEX IF NOT EXISTS subscribers_verification_token_key
	ON subscribers (verification_token)
	WHERE verification_token IS NOT NULL;
`

func execer(query string) func(ctx context.Context, pool *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, query)
		return err
	}
}
