package subscriptions

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/luminagoods/site/src/db"
	"github.com/luminagoods/site/src/email"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/sitedata"
	"github.com/luminagoods/site/src/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminAddress = "owner@lumina.example"

type fakeStore struct {
	mu           sync.Mutex
	nextID       int
	subscribers  map[string]*models.Subscriber
	contacts     []string
	applications []sitedata.NewCreatorApplication
	writes       int
	fail         error
}

func newFakeStore() *fakeStore {
	return &fakeStore{subscribers: make(map[string]*models.Subscriber)}
}

func key(email string, category models.Category) string {
	return email + "|" + string(category)
}

func (f *fakeStore) UpsertSubscriber(ctx context.Context, in sitedata.NewSubscriber) (*models.Subscriber, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, false, f.fail
	}

	token := tokens.NewOpaque()
	existing, ok := f.subscribers[key(in.Email, in.Category)]
	if ok && existing.Status == models.SubscriberStatusActive {
		return nil, false, sitedata.ErrSubscriberActive
	}
	f.writes++
	if ok {
		existing.Status = models.SubscriberStatusActive
		existing.UnsubscribeToken = &token
		existing.UnsubscribedAt = nil
		return existing, false, nil
	}

	f.nextID++
	sub := &models.Subscriber{
		ID:               f.nextID,
		Email:            in.Email,
		Category:         in.Category,
		Status:           models.SubscriberStatusActive,
		UnsubscribeToken: &token,
	}
	if in.Name != "" {
		name := in.Name
		sub.Name = &name
	}
	f.subscribers[key(in.Email, in.Category)] = sub
	return sub, true, nil
}

func (f *fakeStore) ensureActive(ctx context.Context, in sitedata.NewSubscriber) (*models.Subscriber, bool, error) {
	sub, created, err := f.UpsertSubscriber(ctx, in)
	if errors.Is(err, sitedata.ErrSubscriberActive) {
		return f.subscribers[key(in.Email, in.Category)], false, nil
	}
	return sub, created, err
}

func (f *fakeStore) SubmitContact(ctx context.Context, name, email, message string) (*models.ContactSubmission, *models.Subscriber, bool, error) {
	if f.fail != nil {
		return nil, nil, false, f.fail
	}
	f.contacts = append(f.contacts, message)
	sub, created, err := f.ensureActive(ctx, sitedata.NewSubscriber{Email: email, Category: models.CategoryContact, Name: name})
	return &models.ContactSubmission{Name: name, Email: email, Message: message}, sub, created, err
}

func (f *fakeStore) SubmitCreatorApplication(ctx context.Context, in sitedata.NewCreatorApplication) (*models.CreatorApplication, *models.Subscriber, bool, error) {
	if f.fail != nil {
		return nil, nil, false, f.fail
	}
	f.applications = append(f.applications, in)
	sub, created, err := f.ensureActive(ctx, sitedata.NewSubscriber{Email: in.Email, Category: models.CategoryAuctionCreator, Name: in.Name})
	return &models.CreatorApplication{Name: in.Name, Email: in.Email, Status: models.ApplicationStatusPending}, sub, created, err
}

func (f *fakeStore) UnsubscribeByToken(ctx context.Context, token string) (*models.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	for _, sub := range f.subscribers {
		if sub.UnsubscribeToken != nil && *sub.UnsubscribeToken == token {
			sub.Status = models.SubscriberStatusUnsubscribed
			sub.UnsubscribeToken = nil
			return sub, nil
		}
	}
	return nil, db.NotFound
}

func (f *fakeStore) UnsubscribeByIdentity(ctx context.Context, email string, category models.Category) (*models.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subscribers[key(email, category)]
	if !ok || sub.Status == models.SubscriberStatusUnsubscribed {
		return nil, db.NotFound
	}
	sub.Status = models.SubscriberStatusUnsubscribed
	sub.UnsubscribeToken = nil
	return sub, nil
}

type sentMail struct {
	To, Subject, HTML string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail func(to string) error
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		if err := m.fail(to); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, HTML: html})
	return nil
}

func (m *fakeMailer) recipients() []string {
	var result []string
	for _, s := range m.sent {
		result = append(result, s.To)
	}
	return result
}

func newTestService() (*Service, *fakeStore, *fakeMailer) {
	store := newFakeStore()
	mailer := &fakeMailer{}
	svc := New(store, mailer, adminAddress)
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc, store, mailer
}

func TestSubscribeNewsletter(t *testing.T) {
	svc, store, mailer := newTestService()

	res, err := svc.Subscribe(context.Background(), Request{Email: " A@B.com ", Category: "newsletter"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.EmailSent)
	require.NotNil(t, res.Subscriber)
	assert.Equal(t, "a@b.com", res.Subscriber.Email)
	assert.Equal(t, models.CategoryNewsletter, res.Subscriber.Category)
	assert.Equal(t, models.SubscriberStatusActive, res.Subscriber.Status)

	assert.Equal(t, []string{"a@b.com", adminAddress}, mailer.recipients())
	assert.Contains(t, mailer.sent[0].HTML, "unsubscribe?token="+*res.Subscriber.UnsubscribeToken)
	assert.Equal(t, 1, store.writes)
}

func TestSubscribeTwice(t *testing.T) {
	svc, store, mailer := newTestService()
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, Request{Email: "a@b.com", Category: "shop"})
	require.NoError(t, err)
	sentBefore := len(mailer.sent)

	res, err := svc.Subscribe(ctx, Request{Email: "A@b.com", Category: "shop"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.AlreadySubscribed)
	assert.Contains(t, res.Message, "already subscribed")
	assert.Len(t, store.subscribers, 1)
	assert.Equal(t, 1, store.writes)
	assert.Len(t, mailer.sent, sentBefore, "no emails for a duplicate")
}

func TestSubscribeValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"bad email", Request{Email: "not-an-email", Category: "newsletter"}, "email"},
		{"missing email", Request{Email: "  ", Category: "newsletter"}, "email"},
		{"unknown category", Request{Email: "a@b.com", Category: "vip"}, "category"},
		{"creator without name", Request{Email: "a@b.com", Category: "auction-creator", Message: "hi"}, "name"},
		{"creator without message", Request{Email: "a@b.com", Category: "auction-creator", Name: "Elio"}, "message"},
		{"contact without message", Request{Email: "a@b.com", Category: "contact", Name: "Dana"}, "message"},
		{"bad portfolio", Request{Email: "a@b.com", Category: "auction-creator", Name: "E", Message: "m", Portfolio: "javascript:alert(1)"}, "portfolio"},
		{"bad contact time", Request{Email: "a@b.com", Category: "auction-creator", Name: "E", Message: "m", PreferredContactTimes: []string{"midnight"}}, "preferred_contact_times"},
		{"long name", Request{Email: "a@b.com", Category: "newsletter", Name: strings.Repeat("x", maxNameLength+1)}, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, mailer := newTestService()
			_, err := svc.Subscribe(context.Background(), tt.req)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, 0, store.writes)
			assert.Empty(t, mailer.sent)
		})
	}
}

func TestSubscribeWithoutStore(t *testing.T) {
	mailer := &fakeMailer{}
	svc := New(nil, mailer, adminAddress)

	_, err := svc.Subscribe(context.Background(), Request{Email: "a@b.com", Category: "podcast"})
	assert.ErrorIs(t, err, ErrStoreNotConfigured)
	assert.Empty(t, mailer.sent)

	// Validation still runs first
	_, err = svc.Subscribe(context.Background(), Request{Email: "nope", Category: "podcast"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSubscribeStoreFailure(t *testing.T) {
	svc, store, mailer := newTestService()
	store.fail = errors.New("connection refused")

	_, err := svc.Subscribe(context.Background(), Request{Email: "a@b.com", Category: "newsletter"})
	assert.Error(t, err)
	assert.Empty(t, mailer.sent)
}

func TestEmailFailureDoesNotFailSubscribe(t *testing.T) {
	svc, store, mailer := newTestService()
	mailer.fail = func(to string) error {
		if to == "a@b.com" {
			return errors.New("graph said no")
		}
		return nil
	}

	res, err := svc.Subscribe(context.Background(), Request{Email: "a@b.com", Category: "newsletter"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.EmailSent)
	assert.Len(t, store.subscribers, 1)
	assert.Equal(t, []string{adminAddress}, mailer.recipients())

	mailer.fail = func(string) error { return email.ErrNotConfigured }
	res, err = svc.Subscribe(context.Background(), Request{Email: "c@d.com", Category: "newsletter"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.EmailSent)
}

func TestContactIsAppendOnly(t *testing.T) {
	svc, store, mailer := newTestService()
	ctx := context.Background()

	for _, msg := range []string{"First <b>note</b>", "Second note"} {
		res, err := svc.Subscribe(ctx, Request{Email: "dana@x.com", Category: "contact", Name: "Dana", Message: msg})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.False(t, res.AlreadySubscribed)
	}

	assert.Len(t, store.contacts, 2)
	assert.Len(t, store.subscribers, 1)
	assert.Len(t, mailer.sent, 4)
	assert.Equal(t, adminAddress, mailer.sent[1].To)
	assert.NotContains(t, mailer.sent[1].HTML, "<b>note</b>")
}

func TestCreatorApplication(t *testing.T) {
	svc, store, mailer := newTestService()

	res, err := svc.Subscribe(context.Background(), Request{
		Email:                 "elio@x.com",
		Category:              "auction-creator",
		Name:                  "Elio",
		Message:               "Stoneware and glaze tests",
		Portfolio:             "https://elio.example",
		PreferredContactTimes: []string{"weekend-morning", "weekend-morning", "weekday-evening"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)

	require.Len(t, store.applications, 1)
	assert.Equal(t, []string{"weekend-morning", "weekday-evening"}, store.applications[0].PreferredContactTimes)
	assert.Equal(t, []string{"elio@x.com", adminAddress}, mailer.recipients())
	assert.Contains(t, mailer.sent[1].HTML, "https://elio.example")
}

func TestNoAdminAddress(t *testing.T) {
	store := newFakeStore()
	mailer := &fakeMailer{}
	svc := New(store, mailer, "")

	_, err := svc.Subscribe(context.Background(), Request{Email: "a@b.com", Category: "newsletter"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@b.com"}, mailer.recipients())
}

func TestUnsubscribeOpaqueToken(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	res, err := svc.Subscribe(ctx, Request{Email: "a@b.com", Category: "newsletter"})
	require.NoError(t, err)
	token := *res.Subscriber.UnsubscribeToken

	un, err := svc.Unsubscribe(ctx, token)
	require.NoError(t, err)
	assert.True(t, un.Success)
	assert.Equal(t, "a@b.com", un.Email)
	assert.Equal(t, models.CategoryNewsletter, un.Category)
	assert.Equal(t, tokens.KindOpaque, un.Scheme)
	assert.Equal(t, models.SubscriberStatusUnsubscribed, store.subscribers[key("a@b.com", models.CategoryNewsletter)].Status)

	again, err := svc.Unsubscribe(ctx, token)
	require.NoError(t, err)
	assert.False(t, again.Success)
	assert.Equal(t, InvalidTokenMessage, again.Message)
}

func TestUnsubscribeLegacyToken(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, Request{Email: "a@b.com", Category: "podcast"})
	require.NoError(t, err)

	legacy := tokens.EncodeLegacy("a@b.com", "podcast")
	un, err := svc.Unsubscribe(ctx, legacy)
	require.NoError(t, err)
	assert.True(t, un.Success)
	assert.Equal(t, tokens.KindLegacy, un.Scheme)

	again, err := svc.Unsubscribe(ctx, legacy)
	require.NoError(t, err)
	assert.False(t, again.Success)
	assert.Equal(t, InvalidTokenMessage, again.Message)

	// Resubscribing goes through Subscribe and reactivates the row
	res, err := svc.Subscribe(ctx, Request{Email: "a@b.com", Category: "podcast"})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestUnsubscribeGarbage(t *testing.T) {
	svc, _, _ := newTestService()

	for _, token := range []string{"", "   ", "not-a-token", "eyJmb28iOiJiYXIifQ"} {
		un, err := svc.Unsubscribe(context.Background(), token)
		require.NoError(t, err, token)
		assert.False(t, un.Success, token)
		assert.Equal(t, InvalidTokenMessage, un.Message, token)
	}
}

func TestUnsubscribeStoreErrors(t *testing.T) {
	_, err := New(nil, &fakeMailer{}, "").Unsubscribe(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrStoreNotConfigured)

	svc, store, _ := newTestService()
	store.fail = errors.New("timeout")
	_, err = svc.Unsubscribe(context.Background(), "abc")
	assert.Error(t, err)
}
