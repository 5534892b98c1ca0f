package subscriptions

import (
	"context"
	"errors"
	"strings"

	"github.com/luminagoods/site/src/db"
	"github.com/luminagoods/site/src/logging"
	"github.com/luminagoods/site/src/metrics"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/tokens"
)

const InvalidTokenMessage = "Invalid token format"

type UnsubscribeResult struct {
	Success  bool
	Email    string
	Category models.Category
	Message  string

	// Scheme is the token scheme that matched. Zero when nothing did.
	Scheme tokens.Kind
}

/*
Unsubscribe resolves token and marks the matching row unsubscribed.

Two token schemes exist. Opaque tokens are looked up on the row and cleared
when used. Older emails carry an encoded {email, category} payload instead,
which only matches a row that is not already unsubscribed. Either way a token
works once; afterwards the result is a failure with InvalidTokenMessage.

Only store errors are returned as errors.
*/
func (s *Service) Unsubscribe(ctx context.Context, token string) (UnsubscribeResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		metrics.UnsubscribeAttempt("none", "invalid")
		return UnsubscribeResult{Message: InvalidTokenMessage}, nil
	}
	if s.store == nil {
		return UnsubscribeResult{}, ErrStoreNotConfigured
	}

	log := logging.ExtractLogger(ctx)

	sub, err := s.store.UnsubscribeByToken(ctx, token)
	if err == nil {
		return s.unsubscribed(ctx, sub, tokens.KindOpaque), nil
	} else if !errors.Is(err, db.NotFound) {
		metrics.UnsubscribeAttempt(tokens.KindOpaque.String(), "error")
		return UnsubscribeResult{}, err
	}

	emailAddr, category, err := tokens.DecodeLegacy(token)
	if err != nil {
		log.Debug().Err(err).Msg("Token matched no row and is not a legacy token")
		metrics.UnsubscribeAttempt("none", "invalid")
		return UnsubscribeResult{Message: InvalidTokenMessage}, nil
	}

	sub, err = s.store.UnsubscribeByIdentity(ctx, strings.ToLower(emailAddr), models.Category(category))
	if errors.Is(err, db.NotFound) {
		metrics.UnsubscribeAttempt(tokens.KindLegacy.String(), "invalid")
		return UnsubscribeResult{Message: InvalidTokenMessage}, nil
	} else if err != nil {
		metrics.UnsubscribeAttempt(tokens.KindLegacy.String(), "error")
		return UnsubscribeResult{}, err
	}

	return s.unsubscribed(ctx, sub, tokens.KindLegacy), nil
}

func (s *Service) unsubscribed(ctx context.Context, sub *models.Subscriber, scheme tokens.Kind) UnsubscribeResult {
	logging.ExtractLogger(ctx).Info().
		Str("email", sub.Email).
		Str("category", string(sub.Category)).
		Stringer("scheme", scheme).
		Msg("Unsubscribed")
	metrics.UnsubscribeAttempt(scheme.String(), "unsubscribed")

	return UnsubscribeResult{
		Success:  true,
		Email:    sub.Email,
		Category: sub.Category,
		Message:  "You have been unsubscribed from " + sub.Category.DisplayName() + ".",
		Scheme:   scheme,
	}
}
