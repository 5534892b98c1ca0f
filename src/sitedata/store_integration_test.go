//go:build integration

package sitedata

import (
	"context"
	"testing"
	"time"

	"github.com/luminagoods/site/src/db"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/testinfra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertSubscriber(t *testing.T) {
	ctx := context.Background()
	store := New(testinfra.DB(t))

	sub, created, err := store.UpsertSubscriber(ctx, NewSubscriber{Email: "a@b.com", Category: models.CategoryNewsletter})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.SubscriberStatusActive, sub.Status)
	require.NotNil(t, sub.UnsubscribeToken)

	_, _, err = store.UpsertSubscriber(ctx, NewSubscriber{Email: "a@b.com", Category: models.CategoryNewsletter})
	assert.ErrorIs(t, err, ErrSubscriberActive)

	n, err := store.SubscriberCount(ctx, "a@b.com", models.CategoryNewsletter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Same email, different category is a separate subscription.
	_, created, err = store.UpsertSubscriber(ctx, NewSubscriber{Email: "a@b.com", Category: models.CategoryPodcast})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestUnsubscribeAndReactivate(t *testing.T) {
	ctx := context.Background()
	store := New(testinfra.DB(t))

	sub, _, err := store.UpsertSubscriber(ctx, NewSubscriber{Email: "c@d.com", Category: models.CategoryShop, Name: "Cleo"})
	require.NoError(t, err)
	token := *sub.UnsubscribeToken

	gone, err := store.UnsubscribeByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriberStatusUnsubscribed, gone.Status)
	assert.Nil(t, gone.UnsubscribeToken)
	assert.NotNil(t, gone.UnsubscribedAt)

	_, err = store.UnsubscribeByToken(ctx, token)
	assert.ErrorIs(t, err, db.NotFound)
	_, err = store.UnsubscribeByIdentity(ctx, "c@d.com", models.CategoryShop)
	assert.ErrorIs(t, err, db.NotFound)

	back, created, err := store.UpsertSubscriber(ctx, NewSubscriber{Email: "c@d.com", Category: models.CategoryShop})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, models.SubscriberStatusActive, back.Status)
	assert.Equal(t, "Cleo", back.DisplayName())
	require.NotNil(t, back.UnsubscribeToken)
	assert.NotEqual(t, token, *back.UnsubscribeToken)

	_, err = store.UnsubscribeByIdentity(ctx, "c@d.com", models.CategoryShop)
	assert.NoError(t, err)
}

func TestScheduledEmailQueue(t *testing.T) {
	ctx := context.Background()
	store := New(testinfra.DB(t))
	now := time.Now().UTC()

	queued, err := store.ScheduleEmails(ctx, []NewScheduledEmail{
		{RecipientEmail: "due@x.com", Subject: "Due", HTMLContent: "<p>1</p>", ScheduledFor: now.Add(-time.Minute), EmailType: models.EmailTypeNewsletter},
		{RecipientEmail: "later@x.com", Subject: "Later", HTMLContent: "<p>2</p>", ScheduledFor: now.Add(time.Hour), EmailType: models.EmailTypeNewsletter},
		{RecipientEmail: "due2@x.com", Subject: "Due 2", HTMLContent: "<p>3</p>", ScheduledFor: now.Add(-time.Second), EmailType: models.EmailTypeCustom, Metadata: map[string]string{"issue": "7"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), queued)

	pending, err := store.FetchPendingEmails(ctx, now, 50)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "due@x.com", pending[0].RecipientEmail)
	assert.Equal(t, "7", pending[1].Metadata["issue"])

	require.NoError(t, store.MarkEmailFailed(ctx, pending[1].ID, "graph returned 503"))
	ok, err := store.MarkEmailSent(ctx, pending[0].ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.MarkEmailSent(ctx, pending[0].ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "a sent row must not be marked twice")

	pending, err = store.FetchPendingEmails(ctx, now, 50)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "due2@x.com", pending[0].RecipientEmail)
	assert.Equal(t, 1, pending[0].Attempts)
	require.NotNil(t, pending[0].LastError)
}

func TestSubmissionsAndStats(t *testing.T) {
	ctx := context.Background()
	store := New(testinfra.DB(t))

	_, sub, created, err := store.SubmitContact(ctx, "Dana", "dana@x.com", "Hello!")
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, sub.UnsubscribeToken)

	// A second message from an active contact is still stored
	_, again, created, err := store.SubmitContact(ctx, "Dana", "dana@x.com", "Me again")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, sub.ID, again.ID)
	assert.Equal(t, *sub.UnsubscribeToken, *again.UnsubscribeToken)

	app, _, _, err := store.SubmitCreatorApplication(ctx, NewCreatorApplication{
		Name: "Elio", Email: "elio@x.com", Message: "Ceramics", PreferredContactTimes: []string{models.ContactWeekendMorning},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, app.Status)
	assert.Equal(t, []string{models.ContactWeekendMorning}, app.PreferredContactTimes)

	_, err = store.InsertComment(ctx, "spring", "Fern", "fern@x.com", "Lovely glaze")
	require.NoError(t, err)
	added, err := store.AddReaction(ctx, "spring", "love", "v1")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = store.AddReaction(ctx, "spring", "love", "v1")
	require.NoError(t, err)
	assert.False(t, added)
	require.NoError(t, store.InsertAnalyticsEvent(ctx, "cta_click", "/shop", map[string]any{"button": "hero"}))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Len(t, stats.Categories, len(models.AllCategories))
	assert.Equal(t, int64(2), stats.TotalActive)
	assert.Equal(t, int64(2), stats.ContactSubmissions)
	assert.Equal(t, int64(1), stats.PendingApplications)
	assert.Equal(t, int64(1), stats.Comments)

	counts, err := store.CountReactions(ctx, "spring")
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, int64(1), counts[0].Count)

	active, err := store.ActiveSubscribers(ctx, []models.Category{models.CategoryAuctionCreator})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "elio@x.com", active[0].Email)
}
