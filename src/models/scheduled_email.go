package models

import "time"

type EmailType string

const (
	EmailTypeWelcome      EmailType = "welcome"
	EmailTypeNewsletter   EmailType = "newsletter"
	EmailTypeNotification EmailType = "notification"
	EmailTypeCustom       EmailType = "custom"
)

// ScheduledEmail is a queued outbound message. Only the batch sender changes
// Sent, SentAt, Attempts and LastError.
type ScheduledEmail struct {
	ID             int               `db:"id" json:"id"`
	RecipientEmail string            `db:"recipient_email" json:"recipient_email"`
	Subject        string            `db:"subject" json:"subject"`
	HTMLContent    string            `db:"html_content" json:"-"`
	ScheduledFor   time.Time         `db:"scheduled_for" json:"scheduled_for"`
	EmailType      EmailType         `db:"email_type" json:"email_type"`
	Sent           bool              `db:"sent" json:"sent"`
	SentAt         *time.Time        `db:"sent_at" json:"sent_at,omitempty"`
	Attempts       int               `db:"attempts" json:"attempts"`
	LastError      *string           `db:"last_error" json:"last_error,omitempty"`
	Metadata       map[string]string `db:"metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
}
