package sitedata

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/luminagoods/site/src/db"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/oops"
	"github.com/luminagoods/site/src/tokens"
)

type NewSubscriber struct {
	Email    string
	Category models.Category
	Name     string
}

/*
UpsertSubscriber makes (email, category) active in a single statement. A new pair
is inserted; an unsubscribed or pending pair is reactivated with a fresh
unsubscribe token. If the pair is already active nothing is written and
ErrSubscriberActive is returned.

created reports whether the row is new. A fresh insert has created_at equal to
updated_at because both default to the transaction timestamp.
*/
func (s *Store) UpsertSubscriber(ctx context.Context, in NewSubscriber) (sub *models.Subscriber, created bool, err error) {
	var name *string
	if in.Name != "" {
		name = &in.Name
	}

	sub, err = db.QueryOne[models.Subscriber](ctx, s.conn,
		`
		---- Upsert subscriber
		INSERT INTO subscribers (email, category, status, name, unsubscribe_token)
		VALUES ($1, $2, 'active', $3, $4)
		ON CONFLICT (email, category) DO UPDATE
			SET
				status = 'active',
				name = COALESCE(EXCLUDED.name, subscribers.name),
				unsubscribe_token = EXCLUDED.unsubscribe_token,
				unsubscribed_at = NULL,
				updated_at = now()
			WHERE subscribers.status <> 'active'
		RETURNING $columns
		`,
		in.Email, in.Category, name, tokens.NewOpaque(),
	)
	if errors.Is(err, db.NotFound) {
		return nil, false, ErrSubscriberActive
	} else if err != nil {
		return nil, false, oops.New(err, "failed to upsert subscriber")
	}

	return sub, sub.CreatedAt.Equal(sub.UpdatedAt), nil
}

// UnsubscribeByToken consumes an opaque token. Returns db.NotFound if no row holds it.
func (s *Store) UnsubscribeByToken(ctx context.Context, token string) (*models.Subscriber, error) {
	sub, err := db.QueryOne[models.Subscriber](ctx, s.conn,
		`
		---- Unsubscribe by token
		UPDATE subscribers
		SET
			status = 'unsubscribed',
			unsubscribe_token = NULL,
			unsubscribed_at = now(),
			updated_at = now()
		WHERE unsubscribe_token = $1
		RETURNING $columns
		`,
		token,
	)
	if errors.Is(err, db.NotFound) {
		return nil, db.NotFound
	} else if err != nil {
		return nil, oops.New(err, "failed to unsubscribe by token")
	}
	return sub, nil
}

// UnsubscribeByIdentity unsubscribes a pair that is not already unsubscribed.
// Returns db.NotFound otherwise.
func (s *Store) UnsubscribeByIdentity(ctx context.Context, email string, category models.Category) (*models.Subscriber, error) {
	sub, err := db.QueryOne[models.Subscriber](ctx, s.conn,
		`
		---- Unsubscribe by identity
		UPDATE subscribers
		SET
			status = 'unsubscribed',
			unsubscribe_token = NULL,
			unsubscribed_at = now(),
			updated_at = now()
		WHERE
			email = $1
			AND category = $2
			AND status <> 'unsubscribed'
		RETURNING $columns
		`,
		email, category,
	)
	if errors.Is(err, db.NotFound) {
		return nil, db.NotFound
	} else if err != nil {
		return nil, oops.New(err, "failed to unsubscribe by email and category")
	}
	return sub, nil
}

func (s *Store) FetchSubscriber(ctx context.Context, email string, category models.Category) (*models.Subscriber, error) {
	sub, err := db.QueryOne[models.Subscriber](ctx, s.conn,
		`
		---- Fetch subscriber
		SELECT $columns
		FROM subscribers
		WHERE email = $1 AND category = $2
		`,
		email, category,
	)
	if err != nil && !errors.Is(err, db.NotFound) {
		return nil, oops.New(err, "failed to fetch subscriber")
	}
	return sub, err
}

// ActiveSubscribers lists active subscribers of the given categories, or of all
// categories when none are given.
func (s *Store) ActiveSubscribers(ctx context.Context, categories []models.Category) ([]*models.Subscriber, error) {
	q := s.sb.
		Select(columnsOf[models.Subscriber]()...).
		From("subscribers").
		Where(sq.Eq{"status": models.SubscriberStatusActive}).
		OrderBy("id")
	if len(categories) > 0 {
		cats := make([]string, len(categories))
		for i, c := range categories {
			cats[i] = string(c)
		}
		q = q.Where(sq.Eq{"category": cats})
	}

	subs, err := queryBuilt[models.Subscriber](ctx, s.conn, q)
	if err != nil {
		return nil, oops.New(err, "failed to fetch active subscribers")
	}
	return subs, nil
}

// SubscriberCount counts every row for (email, category), whatever its status.
func (s *Store) SubscriberCount(ctx context.Context, email string, category models.Category) (int64, error) {
	return db.QueryOneScalar[int64](ctx, s.conn,
		`SELECT count(*) FROM subscribers WHERE email = $1 AND category = $2`,
		email, category,
	)
}
