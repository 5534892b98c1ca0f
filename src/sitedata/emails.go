package sitedata

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/oops"
)

type NewScheduledEmail struct {
	RecipientEmail string
	Subject        string
	HTMLContent    string
	ScheduledFor   time.Time
	EmailType      models.EmailType
	Metadata       map[string]string
}

// ScheduleEmails queues messages with a single COPY.
func (s *Store) ScheduleEmails(ctx context.Context, emails []NewScheduledEmail) (int64, error) {
	if len(emails) == 0 {
		return 0, nil
	}

	n, err := s.conn.CopyFrom(ctx,
		pgx.Identifier{"scheduled_emails"},
		[]string{"recipient_email", "subject", "html_content", "scheduled_for", "email_type", "metadata"},
		pgx.CopyFromSlice(len(emails), func(i int) ([]any, error) {
			e := emails[i]
			metadata := e.Metadata
			if metadata == nil {
				metadata = map[string]string{}
			}
			return []any{e.RecipientEmail, e.Subject, e.HTMLContent, e.ScheduledFor, string(e.EmailType), metadata}, nil
		}),
	)
	if err != nil {
		return 0, oops.New(err, "failed to queue emails")
	}
	return n, nil
}

// FetchPendingEmails returns at most limit unsent emails that are due at now,
// oldest first. Rows with sent = true are never returned.
func (s *Store) FetchPendingEmails(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledEmail, error) {
	emails, err := queryBuilt[models.ScheduledEmail](ctx, s.conn, pendingEmailsQuery(s.sb, now, limit))
	if err != nil {
		return nil, oops.New(err, "failed to fetch pending emails")
	}
	return emails, nil
}

func pendingEmailsQuery(sb sq.StatementBuilderType, now time.Time, limit int) sq.SelectBuilder {
	return sb.
		Select(columnsOf[models.ScheduledEmail]()...).
		From("scheduled_emails").
		Where(sq.Eq{"sent": false}).
		Where(sq.LtOrEq{"scheduled_for": now}).
		OrderBy("scheduled_for", "id").
		Limit(uint64(limit))
}

// MarkEmailSent flips an unsent row to sent. It reports false if the row was
// already sent, so a row is never marked twice.
func (s *Store) MarkEmailSent(ctx context.Context, id int, at time.Time) (bool, error) {
	sql, args, err := s.sb.
		Update("scheduled_emails").
		Set("sent", true).
		Set("sent_at", at).
		Set("attempts", sq.Expr("attempts + 1")).
		Set("last_error", nil).
		Where(sq.Eq{"id": id, "sent": false}).
		ToSql()
	if err != nil {
		return false, oops.New(err, "failed to build mark-sent query")
	}

	tag, err := s.conn.Exec(ctx, sql, args...)
	if err != nil {
		return false, oops.New(err, "failed to mark email %d sent", id)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkEmailFailed records a failed attempt. The row stays unsent and will be
// picked up again by the next pass.
func (s *Store) MarkEmailFailed(ctx context.Context, id int, reason string) error {
	sql, args, err := s.sb.
		Update("scheduled_emails").
		Set("attempts", sq.Expr("attempts + 1")).
		Set("last_error", reason).
		Where(sq.Eq{"id": id, "sent": false}).
		ToSql()
	if err != nil {
		return oops.New(err, "failed to build mark-failed query")
	}

	if _, err := s.conn.Exec(ctx, sql, args...); err != nil {
		return oops.New(err, "failed to record failure for email %d", id)
	}
	return nil
}
