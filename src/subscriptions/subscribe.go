package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/luminagoods/site/src/email"
	"github.com/luminagoods/site/src/logging"
	"github.com/luminagoods/site/src/metrics"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/sitedata"
	"github.com/luminagoods/site/src/siteurl"
	"github.com/luminagoods/site/src/tokens"
)

const (
	maxNameLength    = 200
	maxMessageLength = 5000
)

type Request struct {
	Email                 string
	Category              string
	Name                  string
	Message               string
	Portfolio             string
	PreferredContactTimes []string
}

type Result struct {
	Success bool
	Message string

	// EmailSent reports whether the confirmation to the visitor went out. The
	// admin notification is not counted.
	EmailSent bool

	// AlreadySubscribed is set when a list signup found an active row. Nothing
	// was written and no email was sent.
	AlreadySubscribed bool

	Subscriber *models.Subscriber
}

// validated is a Request after trimming and normalising.
type validated struct {
	Email                 string
	Category              models.Category
	Name                  string
	Message               string
	Portfolio             string
	PreferredContactTimes []string
}

func validate(req Request) (validated, error) {
	v := validated{
		Email:     email.NormalizeEmail(req.Email),
		Name:      strings.TrimSpace(req.Name),
		Message:   strings.TrimSpace(req.Message),
		Portfolio: strings.TrimSpace(req.Portfolio),
	}

	category, ok := models.ParseCategory(strings.TrimSpace(strings.ToLower(req.Category)))
	if !ok {
		return v, invalid("category", "Unknown subscription category %q", req.Category)
	}
	v.Category = category

	if v.Email == "" {
		return v, invalid("email", "Email is required")
	}
	if !email.IsEmail(v.Email) {
		return v, invalid("email", "Please enter a valid email address")
	}

	needsMessage := category == models.CategoryContact || category == models.CategoryAuctionCreator
	if needsMessage && v.Name == "" {
		return v, invalid("name", "Name is required")
	}
	if needsMessage && v.Message == "" {
		return v, invalid("message", "Message is required")
	}
	if utf8.RuneCountInString(v.Name) > maxNameLength {
		return v, invalid("name", "Name must be at most %d characters", maxNameLength)
	}
	if utf8.RuneCountInString(v.Message) > maxMessageLength {
		return v, invalid("message", "Message must be at most %d characters", maxMessageLength)
	}

	if v.Portfolio != "" {
		u, err := url.Parse(v.Portfolio)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return v, invalid("portfolio", "Portfolio must be a link starting with http:// or https://")
		}
	}

	seen := make(map[string]bool)
	for _, slot := range req.PreferredContactTimes {
		slot = strings.TrimSpace(slot)
		if slot == "" || seen[slot] {
			continue
		}
		if !models.IsContactTimeSlot(slot) {
			return v, invalid("preferred_contact_times", "Unknown contact time %q", slot)
		}
		seen[slot] = true
		v.PreferredContactTimes = append(v.PreferredContactTimes, slot)
	}

	return v, nil
}

/*
Subscribe validates req, records it, then sends the confirmation and admin
notification.

List categories (newsletter, shop, podcast, auction-collector) are upserted
atomically. If the address is already active on that list the result has
Success false and AlreadySubscribed true, and the caller should still answer
200. Contact messages and creator applications are always stored; the sender's
subscriber row is created or reactivated alongside them.

The returned error is a *ValidationError, ErrStoreNotConfigured, or a store
failure. Email failures are only logged.
*/
func (s *Service) Subscribe(ctx context.Context, req Request) (Result, error) {
	in, err := validate(req)
	if err != nil {
		metrics.SubscriptionAttempt(categoryLabel(in.Category), "invalid")
		return Result{}, err
	}
	if s.store == nil {
		metrics.SubscriptionAttempt(string(in.Category), "unavailable")
		return Result{}, ErrStoreNotConfigured
	}

	log := logging.ExtractLogger(ctx).With().
		Str("category", string(in.Category)).
		Str("email", in.Email).
		Logger()

	var sub *models.Subscriber
	var created bool
	switch in.Category {
	case models.CategoryContact:
		_, sub, created, err = s.store.SubmitContact(ctx, in.Name, in.Email, in.Message)
	case models.CategoryAuctionCreator:
		_, sub, created, err = s.store.SubmitCreatorApplication(ctx, sitedata.NewCreatorApplication{
			Name:                  in.Name,
			Email:                 in.Email,
			Portfolio:             in.Portfolio,
			Message:               in.Message,
			PreferredContactTimes: in.PreferredContactTimes,
		})
	default:
		sub, created, err = s.store.UpsertSubscriber(ctx, sitedata.NewSubscriber{
			Email:    in.Email,
			Category: in.Category,
			Name:     in.Name,
		})
	}
	if errors.Is(err, sitedata.ErrSubscriberActive) {
		log.Info().Msg("Already subscribed")
		metrics.SubscriptionAttempt(string(in.Category), "duplicate")
		return Result{
			Success:           false,
			AlreadySubscribed: true,
			Message:           fmt.Sprintf("You're already subscribed to %s.", in.Category.DisplayName()),
		}, nil
	} else if err != nil {
		metrics.SubscriptionAttempt(string(in.Category), "error")
		return Result{}, err
	}

	outcome := "created"
	if !created {
		outcome = "reactivated"
	}
	log.Info().Str("outcome", outcome).Int("subscriber", sub.ID).Msg("Subscription recorded")
	metrics.SubscriptionAttempt(string(in.Category), outcome)

	result := Result{
		Success:    true,
		Message:    successMessage(in.Category),
		Subscriber: sub,
	}
	result.EmailSent = s.sendConfirmation(ctx, in, sub)
	s.notifyAdmin(ctx, in, !created && in.Category != models.CategoryContact && in.Category != models.CategoryAuctionCreator)

	return result, nil
}

func categoryLabel(c models.Category) string {
	if c == "" {
		return "unknown"
	}
	return string(c)
}

func successMessage(category models.Category) string {
	switch category {
	case models.CategoryContact:
		return "Thanks for your message! We'll get back to you soon."
	case models.CategoryAuctionCreator:
		return "Thanks for applying! Our curators will be in touch."
	}
	return fmt.Sprintf("Thanks for subscribing to %s!", category.DisplayName())
}

// UnsubscribeUrl is the link placed in emails to sub. Rows without an opaque
// token fall back to the legacy encoded form.
func UnsubscribeUrl(sub *models.Subscriber) string {
	if sub.UnsubscribeToken != nil && *sub.UnsubscribeToken != "" {
		return siteurl.BuildUnsubscribe(*sub.UnsubscribeToken)
	}
	return siteurl.BuildUnsubscribe(tokens.EncodeLegacy(sub.Email, string(sub.Category)))
}

func (s *Service) sendConfirmation(ctx context.Context, in validated, sub *models.Subscriber) bool {
	log := logging.ExtractLogger(ctx)

	msg, err := email.Confirmation(email.ConfirmationData{
		Category:       in.Category,
		Name:           in.Name,
		UnsubscribeUrl: UnsubscribeUrl(sub),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to render confirmation email")
		return false
	}

	if err := s.mailer.Send(ctx, in.Email, msg.Subject, msg.HTML); err != nil {
		if errors.Is(err, email.ErrNotConfigured) {
			log.Warn().Msg("Email is not configured; skipping confirmation")
		} else {
			log.Error().Err(err).Msg("Failed to send confirmation email")
		}
		return false
	}
	metrics.EmailSent("confirmation")
	return true
}

func (s *Service) notifyAdmin(ctx context.Context, in validated, reactivated bool) {
	log := logging.ExtractLogger(ctx)

	if s.adminAddress == "" {
		log.Debug().Msg("No admin address; skipping admin notification")
		return
	}

	msg, err := email.AdminNotification(email.AdminNotificationData{
		Category:              in.Category,
		Name:                  in.Name,
		Email:                 in.Email,
		Message:               in.Message,
		Portfolio:             in.Portfolio,
		PreferredContactTimes: in.PreferredContactTimes,
		Reactivated:           reactivated,
		SubmittedAt:           s.now(),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to render admin notification")
		return
	}

	if err := s.mailer.Send(ctx, s.adminAddress, msg.Subject, msg.HTML); err != nil {
		if !errors.Is(err, email.ErrNotConfigured) {
			log.Error().Err(err).Msg("Failed to send admin notification")
		}
		return
	}
	metrics.EmailSent("admin")
}
