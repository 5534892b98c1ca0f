package migrations

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/luminagoods/site/src/migration/types"
)

func init() {
	registerMigration(AddEngagementTables{})
}

type AddEngagementTables struct{}

func (m AddEngagementTables) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2026, 2, 3, 9, 42, 10, 0, time.UTC))
}

func (m AddEngagementTables) Name() string {
	return "AddEngagementTables"
}

func (m AddEngagementTables) Description() string {
	return "Add comments, reactions and analytics events for journal posts"
}

func (m AddEngagementTables) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		CREATE TABLE comments (
			id SERIAL PRIMARY KEY,
			post_slug TEXT NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);
		CREATE INDEX comments_post_slug ON comments (post_slug, created_at);

		CREATE TABLE reactions (
			id SERIAL PRIMARY KEY,
			post_slug TEXT NOT NULL,
			reaction TEXT NOT NULL,
			visitor_hash TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			CONSTRAINT reactions_unique_visitor UNIQUE (post_slug, reaction, visitor_hash)
		);

		CREATE TABLE analytics_events (
			id SERIAL PRIMARY KEY,
			event_name TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);
		`,
	)
	return err
}

func (m AddEngagementTables) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		DROP TABLE analytics_events;
		DROP TABLE reactions;
		DROP TABLE comments;
		`,
	)
	return err
}
