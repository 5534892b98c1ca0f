package migrations

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/luminagoods/site/src/migration/types"
)

func init() {
	registerMigration(TrackEmailAttempts{})
}

type TrackEmailAttempts struct{}

func (m TrackEmailAttempts) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2026, 3, 20, 14, 5, 33, 0, time.UTC))
}

func (m TrackEmailAttempts) Name() string {
	return "TrackEmailAttempts"
}

func (m TrackEmailAttempts) Description() string {
	return "Record send attempts on scheduled emails and index the pending queue"
}

func (m TrackEmailAttempts) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		ALTER TABLE scheduled_emails
			ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0,
			ADD COLUMN last_error TEXT;

		CREATE INDEX scheduled_emails_pending ON scheduled_emails (scheduled_for, id) WHERE NOT sent;
		`,
	)
	return err
}

func (m TrackEmailAttempts) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		DROP INDEX scheduled_emails_pending;

		ALTER TABLE scheduled_emails
			DROP COLUMN attempts,
			DROP COLUMN last_error;
		`,
	)
	return err
}
