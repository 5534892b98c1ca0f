package migrations

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/luminagoods/site/src/migration/types"
)

func init() {
	registerMigration(CreateSiteTables{})
}

type CreateSiteTables struct{}

func (m CreateSiteTables) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2026, 1, 12, 18, 15, 0, 0, time.UTC))
}

func (m CreateSiteTables) Name() string {
	return "CreateSiteTables"
}

func (m CreateSiteTables) Description() string {
	return "Create subscribers, form submissions, and the scheduled email queue"
}

func (m CreateSiteTables) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		CREATE TABLE subscribers (
			id SERIAL PRIMARY KEY,
			email TEXT NOT NULL,
			category TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			name TEXT,
			unsubscribe_token TEXT UNIQUE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			unsubscribed_at TIMESTAMP WITH TIME ZONE,
			CONSTRAINT subscribers_email_category_key UNIQUE (email, category),
			CONSTRAINT subscribers_status_check CHECK (status IN ('active', 'unsubscribed', 'pending'))
		);
		CREATE INDEX subscribers_category_status ON subscribers (category, status);

		CREATE TABLE contact_submissions (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);

		CREATE TABLE creator_applications (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			portfolio TEXT,
			message TEXT NOT NULL,
			preferred_contact_times TEXT[] NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'pending',
			submitted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			CONSTRAINT creator_applications_status_check CHECK (status IN ('pending', 'reviewed'))
		);

		CREATE TABLE scheduled_emails (
			id SERIAL PRIMARY KEY,
			recipient_email TEXT NOT NULL,
			subject TEXT NOT NULL,
			html_content TEXT NOT NULL,
			scheduled_for TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			email_type TEXT NOT NULL,
			sent BOOLEAN NOT NULL DEFAULT FALSE,
			sent_at TIMESTAMP WITH TIME ZONE,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			CONSTRAINT scheduled_emails_type_check CHECK (email_type IN ('welcome', 'newsletter', 'notification', 'custom'))
		);
		`,
	)
	return err
}

func (m CreateSiteTables) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		DROP TABLE scheduled_emails;
		DROP TABLE creator_applications;
		DROP TABLE contact_submissions;
		DROP TABLE subscribers;
		`,
	)
	return err
}
