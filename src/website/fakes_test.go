package website

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/luminagoods/site/src/db"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/sitedata"
	"github.com/luminagoods/site/src/tokens"
)

// memStore stands in for sitedata.Store in handler tests.
type memStore struct {
	mu     sync.Mutex
	nextID int
	fail   error

	subscribers map[string]*models.Subscriber
	contacts    []string
	comments    []*models.Comment
	reactions   map[string]bool
	events      []string
	queue       []*models.ScheduledEmail
	writes      int
}

func newMemStore() *memStore {
	return &memStore{
		subscribers: make(map[string]*models.Subscriber),
		reactions:   make(map[string]bool),
	}
}

func subKey(email string, category models.Category) string {
	return email + "|" + string(category)
}

func (s *memStore) UpsertSubscriber(ctx context.Context, in sitedata.NewSubscriber) (*models.Subscriber, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, false, s.fail
	}

	existing, ok := s.subscribers[subKey(in.Email, in.Category)]
	if ok && existing.Status == models.SubscriberStatusActive {
		return nil, false, sitedata.ErrSubscriberActive
	}
	s.writes++
	token := tokens.NewOpaque()
	if ok {
		existing.Status = models.SubscriberStatusActive
		existing.UnsubscribeToken = &token
		return existing, false, nil
	}

	s.nextID++
	sub := &models.Subscriber{
		ID:               s.nextID,
		Email:            in.Email,
		Category:         in.Category,
		Status:           models.SubscriberStatusActive,
		UnsubscribeToken: &token,
	}
	s.subscribers[subKey(in.Email, in.Category)] = sub
	return sub, true, nil
}

func (s *memStore) ensureActive(ctx context.Context, in sitedata.NewSubscriber) (*models.Subscriber, bool, error) {
	sub, created, err := s.UpsertSubscriber(ctx, in)
	if errors.Is(err, sitedata.ErrSubscriberActive) {
		return s.subscribers[subKey(in.Email, in.Category)], false, nil
	}
	return sub, created, err
}

func (s *memStore) SubmitContact(ctx context.Context, name, email, message string) (*models.ContactSubmission, *models.Subscriber, bool, error) {
	if s.fail != nil {
		return nil, nil, false, s.fail
	}
	s.contacts = append(s.contacts, message)
	sub, created, err := s.ensureActive(ctx, sitedata.NewSubscriber{Email: email, Category: models.CategoryContact, Name: name})
	return &models.ContactSubmission{Name: name, Email: email, Message: message}, sub, created, err
}

func (s *memStore) SubmitCreatorApplication(ctx context.Context, in sitedata.NewCreatorApplication) (*models.CreatorApplication, *models.Subscriber, bool, error) {
	if s.fail != nil {
		return nil, nil, false, s.fail
	}
	sub, created, err := s.ensureActive(ctx, sitedata.NewSubscriber{Email: in.Email, Category: models.CategoryAuctionCreator, Name: in.Name})
	return &models.CreatorApplication{Name: in.Name, Email: in.Email, Status: models.ApplicationStatusPending}, sub, created, err
}

func (s *memStore) UnsubscribeByToken(ctx context.Context, token string) (*models.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	for _, sub := range s.subscribers {
		if sub.UnsubscribeToken != nil && *sub.UnsubscribeToken == token {
			sub.Status = models.SubscriberStatusUnsubscribed
			sub.UnsubscribeToken = nil
			return sub, nil
		}
	}
	return nil, db.NotFound
}

func (s *memStore) UnsubscribeByIdentity(ctx context.Context, email string, category models.Category) (*models.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscribers[subKey(email, category)]
	if !ok || sub.Status != models.SubscriberStatusActive {
		return nil, db.NotFound
	}
	sub.Status = models.SubscriberStatusUnsubscribed
	sub.UnsubscribeToken = nil
	return sub, nil
}

func (s *memStore) FetchPendingEmails(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledEmail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.ScheduledEmail
	for _, e := range s.queue {
		if !e.Sent && !e.ScheduledFor.After(now) && len(result) < limit {
			copied := *e
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (s *memStore) MarkEmailSent(ctx context.Context, id int, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.queue {
		if e.ID == id && !e.Sent {
			e.Sent = true
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) MarkEmailFailed(ctx context.Context, id int, reason string) error {
	return nil
}

func (s *memStore) ActiveSubscribers(ctx context.Context, categories []models.Category) ([]*models.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.Subscriber
	for _, sub := range s.subscribers {
		for _, c := range categories {
			if sub.Category == c && sub.Status == models.SubscriberStatusActive {
				result = append(result, sub)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *memStore) ScheduleEmails(ctx context.Context, emails []sitedata.NewScheduledEmail) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range emails {
		s.nextID++
		s.queue = append(s.queue, &models.ScheduledEmail{
			ID:             s.nextID,
			RecipientEmail: e.RecipientEmail,
			Subject:        e.Subject,
			HTMLContent:    e.HTMLContent,
			ScheduledFor:   e.ScheduledFor,
			EmailType:      e.EmailType,
		})
	}
	return int64(len(emails)), nil
}

func (s *memStore) Stats(ctx context.Context) (*models.DashboardStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	var active int64
	for _, sub := range s.subscribers {
		if sub.Status == models.SubscriberStatusActive {
			active++
		}
	}
	return &models.DashboardStats{TotalActive: active, ContactSubmissions: int64(len(s.contacts))}, nil
}

func (s *memStore) InsertComment(ctx context.Context, postSlug, name, email, body string) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	s.nextID++
	c := &models.Comment{ID: s.nextID, PostSlug: postSlug, Name: name, Email: email, Body: body, CreatedAt: time.Now()}
	s.comments = append(s.comments, c)
	return c, nil
}

func (s *memStore) ListComments(ctx context.Context, postSlug string) ([]*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.Comment
	for _, c := range s.comments {
		if c.PostSlug == postSlug {
			result = append(result, c)
		}
	}
	return result, nil
}

func (s *memStore) AddReaction(ctx context.Context, postSlug, reaction, visitorHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := postSlug + "|" + reaction + "|" + visitorHash
	if s.reactions[k] {
		return false, nil
	}
	s.reactions[k] = true
	return true, nil
}

func (s *memStore) CountReactions(ctx context.Context, postSlug string) ([]*models.ReactionCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int64{}
	for k := range s.reactions {
		parts := strings.SplitN(k, "|", 3)
		if parts[0] == postSlug {
			counts[parts[1]]++
		}
	}
	var result []*models.ReactionCount
	for reaction, n := range counts {
		result = append(result, &models.ReactionCount{Reaction: reaction, Count: n})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Reaction < result[j].Reaction })
	return result, nil
}

func (s *memStore) InsertAnalyticsEvent(ctx context.Context, eventName, path string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, eventName+" "+path)
	return nil
}

type sentMail struct {
	To, Subject, HTML string
}

type memMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *memMailer) Send(ctx context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, HTML: html})
	return nil
}

func (m *memMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []string
	for _, s := range m.sent {
		result = append(result, s.To)
	}
	return result
}

type countingLimiter struct {
	mu    sync.Mutex
	limit int
	seen  map[string]int
	err   error
}

func (l *countingLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return true, l.err
	}
	if l.seen == nil {
		l.seen = map[string]int{}
	}
	l.seen[key]++
	return l.seen[key] <= l.limit, nil
}
