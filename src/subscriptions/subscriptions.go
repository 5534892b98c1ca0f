/*
Package subscriptions turns form submissions into subscriber rows and sends the
follow-up emails, and resolves unsubscribe tokens.

The database write decides whether a request succeeded. Emails go out only after
it commits, and an email failure never undoes it.
*/
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luminagoods/site/src/email"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/sitedata"
)

// ErrStoreNotConfigured means there is no database to write to. Handlers
// report it as a 503.
var ErrStoreNotConfigured = errors.New("subscriber store is not configured")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Store is the part of sitedata.Store the services use.
type Store interface {
	UpsertSubscriber(ctx context.Context, in sitedata.NewSubscriber) (*models.Subscriber, bool, error)
	SubmitContact(ctx context.Context, name, email, message string) (*models.ContactSubmission, *models.Subscriber, bool, error)
	SubmitCreatorApplication(ctx context.Context, in sitedata.NewCreatorApplication) (*models.CreatorApplication, *models.Subscriber, bool, error)
	UnsubscribeByToken(ctx context.Context, token string) (*models.Subscriber, error)
	UnsubscribeByIdentity(ctx context.Context, email string, category models.Category) (*models.Subscriber, error)
}

type Service struct {
	store        Store
	mailer       email.Sender
	adminAddress string
	now          func() time.Time
}

// New builds a Service. A nil store makes every call fail with
// ErrStoreNotConfigured after validation.
func New(store Store, mailer email.Sender, adminAddress string) *Service {
	return &Service{
		store:        store,
		mailer:       mailer,
		adminAddress: adminAddress,
		now:          time.Now,
	}
}
