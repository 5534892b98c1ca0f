package sitedata

import (
	"context"
	"errors"

	"github.com/luminagoods/site/src/db"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/oops"
)

func (s *Store) InsertContactSubmission(ctx context.Context, name, email, message string) (*models.ContactSubmission, error) {
	submission, err := db.QueryOne[models.ContactSubmission](ctx, s.conn,
		`
		---- Insert contact submission
		INSERT INTO contact_submissions (name, email, message)
		VALUES ($1, $2, $3)
		RETURNING $columns
		`,
		name, email, message,
	)
	if err != nil {
		return nil, oops.New(err, "failed to save contact submission")
	}
	return submission, nil
}

type NewCreatorApplication struct {
	Name                  string
	Email                 string
	Portfolio             string
	Message               string
	PreferredContactTimes []string
}

func (s *Store) InsertCreatorApplication(ctx context.Context, in NewCreatorApplication) (*models.CreatorApplication, error) {
	var portfolio *string
	if in.Portfolio != "" {
		portfolio = &in.Portfolio
	}
	contactTimes := in.PreferredContactTimes
	if contactTimes == nil {
		contactTimes = []string{}
	}

	app, err := db.QueryOne[models.CreatorApplication](ctx, s.conn,
		`
		---- Insert creator application
		INSERT INTO creator_applications (name, email, portfolio, message, preferred_contact_times, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING $columns
		`,
		in.Name, in.Email, portfolio, in.Message, contactTimes, models.ApplicationStatusPending,
	)
	if err != nil {
		return nil, oops.New(err, "failed to save creator application")
	}
	return app, nil
}

/*
SubmitContact records a contact message and makes the sender an active contact
subscriber, in one transaction. Contact messages are append-only, so a sender who
is already active is not a conflict: sub is their existing row and created is false.
*/
func (s *Store) SubmitContact(ctx context.Context, name, email, message string) (submission *models.ContactSubmission, sub *models.Subscriber, created bool, err error) {
	err = s.WithTx(ctx, func(tx *Store) error {
		var err error
		submission, err = tx.InsertContactSubmission(ctx, name, email, message)
		if err != nil {
			return err
		}
		sub, created, err = tx.ensureActive(ctx, NewSubscriber{Email: email, Category: models.CategoryContact, Name: name})
		return err
	})
	if err != nil {
		return nil, nil, false, err
	}
	return submission, sub, created, nil
}

// SubmitCreatorApplication is SubmitContact for auction-creator applications.
// The application is stored as pending.
func (s *Store) SubmitCreatorApplication(ctx context.Context, in NewCreatorApplication) (app *models.CreatorApplication, sub *models.Subscriber, created bool, err error) {
	err = s.WithTx(ctx, func(tx *Store) error {
		var err error
		app, err = tx.InsertCreatorApplication(ctx, in)
		if err != nil {
			return err
		}
		sub, created, err = tx.ensureActive(ctx, NewSubscriber{Email: in.Email, Category: models.CategoryAuctionCreator, Name: in.Name})
		return err
	})
	if err != nil {
		return nil, nil, false, err
	}
	return app, sub, created, nil
}

func (s *Store) ensureActive(ctx context.Context, in NewSubscriber) (*models.Subscriber, bool, error) {
	sub, created, err := s.UpsertSubscriber(ctx, in)
	if errors.Is(err, ErrSubscriberActive) {
		sub, err = s.FetchSubscriber(ctx, in.Email, in.Category)
		return sub, false, err
	}
	return sub, created, err
}
