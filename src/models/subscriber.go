package models

import "time"

type SubscriberStatus string

const (
	SubscriberStatusActive       SubscriberStatus = "active"
	SubscriberStatusUnsubscribed SubscriberStatus = "unsubscribed"
	SubscriberStatusPending      SubscriberStatus = "pending" // reserved for double opt-in
)

type Subscriber struct {
	ID               int              `db:"id" json:"id"`
	Email            string           `db:"email" json:"email"`
	Category         Category         `db:"category" json:"category"`
	Status           SubscriberStatus `db:"status" json:"status"`
	Name             *string          `db:"name" json:"name,omitempty"`
	UnsubscribeToken *string          `db:"unsubscribe_token" json:"-"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
	UnsubscribedAt   *time.Time       `db:"unsubscribed_at" json:"unsubscribed_at,omitempty"`
}

func (s *Subscriber) DisplayName() string {
	if s.Name != nil && *s.Name != "" {
		return *s.Name
	}
	return ""
}
