package mailqueue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luminagoods/site/src/config"
	"github.com/luminagoods/site/src/email"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/sitedata"
	"github.com/luminagoods/site/src/subscriptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeQueue struct {
	mu       sync.Mutex
	rows     map[int]*models.ScheduledEmail
	fetchErr error

	subscribers []*models.Subscriber
	scheduled   []sitedata.NewScheduledEmail
}

func newFakeQueue(n int, scheduledFor time.Time) *fakeQueue {
	q := &fakeQueue{rows: make(map[int]*models.ScheduledEmail)}
	for i := 1; i <= n; i++ {
		q.rows[i] = &models.ScheduledEmail{
			ID:             i,
			RecipientEmail: fmt.Sprintf("r%d@x.com", i),
			Subject:        "Hello",
			HTMLContent:    "<p>hello</p>",
			ScheduledFor:   scheduledFor,
			EmailType:      models.EmailTypeNewsletter,
		}
	}
	return q
}

func (q *fakeQueue) FetchPendingEmails(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledEmail, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fetchErr != nil {
		return nil, q.fetchErr
	}

	var result []*models.ScheduledEmail
	for _, row := range q.rows {
		if !row.Sent && !row.ScheduledFor.After(now) {
			copied := *row
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (q *fakeQueue) MarkEmailSent(ctx context.Context, id int, at time.Time) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	row := q.rows[id]
	if row.Sent {
		return false, nil
	}
	row.Sent = true
	row.SentAt = &at
	row.Attempts++
	return true, nil
}

func (q *fakeQueue) MarkEmailFailed(ctx context.Context, id int, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	row := q.rows[id]
	row.Attempts++
	row.LastError = &reason
	return nil
}

func (q *fakeQueue) ActiveSubscribers(ctx context.Context, categories []models.Category) ([]*models.Subscriber, error) {
	var result []*models.Subscriber
	for _, sub := range q.subscribers {
		for _, c := range categories {
			if sub.Category == c && sub.Status == models.SubscriberStatusActive {
				result = append(result, sub)
			}
		}
	}
	return result, nil
}

func (q *fakeQueue) ScheduleEmails(ctx context.Context, emails []sitedata.NewScheduledEmail) (int64, error) {
	q.scheduled = append(q.scheduled, emails...)
	return int64(len(emails)), nil
}

func (q *fakeQueue) Stats(ctx context.Context) (*models.DashboardStats, error) {
	return &models.DashboardStats{TotalActive: int64(len(q.subscribers))}, nil
}

type countingMailer struct {
	mu          sync.Mutex
	sent        []string
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
	failFor     map[string]bool
}

func (m *countingMailer) Send(ctx context.Context, to, subject, html string) error {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		peak := m.maxInFlight.Load()
		if n <= peak || m.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(m.delay)

	if m.failFor[to] {
		return errors.New("mailbox unavailable")
	}
	m.mu.Lock()
	m.sent = append(m.sent, to)
	m.mu.Unlock()
	return nil
}

type sleepRecorder struct {
	calls []time.Duration
	err   error
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return s.err
}

func newTestSender(store Store, mailer email.Sender) (*BatchSender, *sleepRecorder) {
	s := NewBatchSender(store, mailer, config.MailQueueConfig{FetchLimit: 50, BatchSize: 5, BatchDelay: time.Second})
	rec := &sleepRecorder{}
	s.sleep = rec.sleep
	s.now = func() time.Time { return testNow }
	return s, rec
}

func TestSendPendingBatches(t *testing.T) {
	q := newFakeQueue(12, testNow.Add(-time.Minute))
	mailer := &countingMailer{delay: 5 * time.Millisecond}
	sender, sleeps := newTestSender(q, mailer)

	report, err := sender.SendPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Sent: 12, Failed: 0}, report)

	assert.Equal(t, []time.Duration{time.Second, time.Second}, sleeps.calls)
	assert.LessOrEqual(t, mailer.maxInFlight.Load(), int32(5))
	assert.Len(t, mailer.sent, 12)
	for _, row := range q.rows {
		assert.True(t, row.Sent)
		require.NotNil(t, row.SentAt)
		assert.Equal(t, testNow, *row.SentAt)
	}
}

func TestSendPendingNeverDoubleSends(t *testing.T) {
	q := newFakeQueue(3, testNow.Add(-time.Minute))
	mailer := &countingMailer{}
	sender, _ := newTestSender(q, mailer)

	_, err := sender.SendPending(context.Background())
	require.NoError(t, err)
	report, err := sender.SendPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Report{}, report)
	assert.Len(t, mailer.sent, 3)
}

func TestSendPendingFailureIsRetried(t *testing.T) {
	q := newFakeQueue(3, testNow.Add(-time.Minute))
	mailer := &countingMailer{failFor: map[string]bool{"r2@x.com": true}}
	sender, _ := newTestSender(q, mailer)

	report, err := sender.SendPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Sent: 2, Failed: 1}, report)

	failed := q.rows[2]
	assert.False(t, failed.Sent)
	assert.Equal(t, 1, failed.Attempts)
	require.NotNil(t, failed.LastError)
	assert.Contains(t, *failed.LastError, "mailbox unavailable")

	mailer.failFor = nil
	report, err = sender.SendPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Sent: 1}, report)
	assert.True(t, q.rows[2].Sent)
	assert.Equal(t, 2, q.rows[2].Attempts)
}

func TestSendPendingRespectsLimitAndSchedule(t *testing.T) {
	q := newFakeQueue(60, testNow.Add(-time.Minute))
	q.rows[61] = &models.ScheduledEmail{ID: 61, RecipientEmail: "later@x.com", ScheduledFor: testNow.Add(time.Hour)}
	mailer := &countingMailer{}
	sender, sleeps := newTestSender(q, mailer)

	report, err := sender.SendPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, report.Sent)
	assert.Len(t, sleeps.calls, 9)
	assert.NotContains(t, mailer.sent, "later@x.com")
}

func TestSendPendingStopsWhenCanceled(t *testing.T) {
	q := newFakeQueue(12, testNow.Add(-time.Minute))
	mailer := &countingMailer{}
	sender, sleeps := newTestSender(q, mailer)
	sleeps.err = context.Canceled

	report, err := sender.SendPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Sent)
	assert.Len(t, sleeps.calls, 1)
}

func TestSendPendingErrors(t *testing.T) {
	sender := NewBatchSender(nil, &countingMailer{}, config.MailQueueConfig{})
	_, err := sender.SendPending(context.Background())
	assert.ErrorIs(t, err, ErrStoreNotConfigured)

	q := newFakeQueue(1, testNow)
	q.fetchErr = errors.New("db down")
	sender, _ = newTestSender(q, &countingMailer{})
	_, err = sender.SendPending(context.Background())
	assert.Error(t, err)
}

type fakeArchiver struct {
	subjects []string
	err      error
}

func (a *fakeArchiver) PutNewsletter(ctx context.Context, subject, html string, at time.Time) (string, error) {
	a.subjects = append(a.subjects, subject)
	if a.err != nil {
		return "", a.err
	}
	return "newsletters/2026/issue.html", nil
}

func tokenPtr(s string) *string { return &s }

func newTestAutomation() (*Automation, *fakeQueue, *countingMailer, *fakeArchiver) {
	q := newFakeQueue(0, testNow)
	q.subscribers = []*models.Subscriber{
		{ID: 1, Email: "a@x.com", Category: models.CategoryNewsletter, Status: models.SubscriberStatusActive, UnsubscribeToken: tokenPtr("tok-a")},
		{ID: 2, Email: "b@x.com", Category: models.CategoryNewsletter, Status: models.SubscriberStatusActive, UnsubscribeToken: tokenPtr("tok-b")},
		{ID: 3, Email: "a@x.com", Category: models.CategoryShop, Status: models.SubscriberStatusActive, UnsubscribeToken: tokenPtr("tok-a-shop")},
		{ID: 4, Email: "c@x.com", Category: models.CategoryShop, Status: models.SubscriberStatusUnsubscribed},
	}
	mailer := &countingMailer{}
	archiver := &fakeArchiver{}
	a := NewAutomation(q, mailer, archiver)
	a.now = func() time.Time { return testNow }
	return a, q, mailer, archiver
}

func TestSendNewsletter(t *testing.T) {
	a, q, _, archiver := newTestAutomation()

	res, err := a.Run(context.Background(), Action{
		Action:     ActionSendNewsletter,
		Subject:    "Issue 7",
		Markdown:   "# Spring\n\nNew **glazes** are in.",
		Categories: []string{"newsletter", "shop"},
	})
	require.NoError(t, err)

	qr := res.(QueueResult)
	assert.Equal(t, int64(2), qr.Queued)
	assert.Equal(t, "newsletters/2026/issue.html", qr.ArchiveKey)
	assert.Equal(t, []string{"Issue 7"}, archiver.subjects)

	require.Len(t, q.scheduled, 2)
	first := q.scheduled[0]
	assert.Equal(t, "a@x.com", first.RecipientEmail)
	assert.Equal(t, models.EmailTypeNewsletter, first.EmailType)
	assert.Equal(t, testNow, first.ScheduledFor)
	assert.Contains(t, first.HTMLContent, "<strong>glazes</strong>")
	assert.Contains(t, first.HTMLContent, "unsubscribe?token=tok-a")
	assert.NotContains(t, first.HTMLContent, email.UnsubscribePlaceholder)
	assert.Equal(t, "newsletters/2026/issue.html", first.Metadata["archive_key"])
	assert.Contains(t, q.scheduled[1].HTMLContent, "unsubscribe?token=tok-b")
}

func TestSendNewsletterArchiveFailureStillQueues(t *testing.T) {
	a, q, _, archiver := newTestAutomation()
	archiver.err = errors.New("bucket gone")
	later := testNow.Add(24 * time.Hour)

	res, err := a.Run(context.Background(), Action{Action: ActionSendNewsletter, Subject: "S", HTML: "<p>x</p>", ScheduledFor: &later})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.(QueueResult).Queued)
	assert.Empty(t, res.(QueueResult).ArchiveKey)
	assert.Equal(t, later, q.scheduled[0].ScheduledFor)
}

func TestSendBlogNotification(t *testing.T) {
	a, q, _, _ := newTestAutomation()

	res, err := a.Run(context.Background(), Action{
		Action:  ActionSendBlogNotification,
		Title:   "Behind the kiln",
		Excerpt: "How we fire <stoneware>",
		URL:     "https://lumina.example/journal/behind-the-kiln",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.(QueueResult).Queued)
	assert.Equal(t, models.EmailTypeNotification, q.scheduled[0].EmailType)
	assert.Contains(t, q.scheduled[0].Subject, "Behind the kiln")
	assert.Contains(t, q.scheduled[0].HTMLContent, "&lt;stoneware&gt;")
	assert.Contains(t, q.scheduled[0].HTMLContent, "https://lumina.example/journal/behind-the-kiln")
}

func TestAutomationValidation(t *testing.T) {
	a, q, _, _ := newTestAutomation()

	for _, act := range []Action{
		{Action: ActionSendNewsletter, Markdown: "x"},
		{Action: ActionSendNewsletter, Subject: "x"},
		{Action: ActionSendNewsletter, Subject: "x", Markdown: "x", Categories: []string{"vip"}},
		{Action: ActionSendBlogNotification, URL: "https://x.com/p"},
		{Action: ActionSendBlogNotification, Title: "t", URL: "javascript:alert(1)"},
		{Action: ActionSendTest, To: "nope"},
	} {
		_, err := a.Run(context.Background(), act)
		var verr *subscriptions.ValidationError
		assert.ErrorAs(t, err, &verr, act.Action)
	}
	assert.Empty(t, q.scheduled)

	_, err := a.Run(context.Background(), Action{Action: "explode"})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestSendTestAndStats(t *testing.T) {
	a, _, mailer, _ := newTestAutomation()

	res, err := a.Run(context.Background(), Action{Action: ActionSendTest, To: " Owner@Lumina.example "})
	require.NoError(t, err)
	assert.Equal(t, TestResult{Sent: true, To: "owner@lumina.example"}, res)
	assert.Equal(t, []string{"owner@lumina.example"}, mailer.sent)

	res, err = a.Run(context.Background(), Action{Action: ActionGetStats})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.(*models.DashboardStats).TotalActive)
}

func TestAutomationWithoutStore(t *testing.T) {
	a := NewAutomation(nil, &countingMailer{}, nil)
	_, err := a.Run(context.Background(), Action{Action: ActionGetStats})
	assert.ErrorIs(t, err, ErrStoreNotConfigured)
	_, err = a.Run(context.Background(), Action{Action: ActionSendNewsletter, Subject: "s", HTML: "<p/>"})
	assert.ErrorIs(t, err, ErrStoreNotConfigured)
}

func TestWorker(t *testing.T) {
	assert.NotNil(t, RunWorker(nil, 0).Finished())
	select {
	case <-RunWorker(nil, 0).Finished():
	default:
		t.Fatal("disabled worker should already be finished")
	}

	q := newFakeQueue(2, time.Now().Add(-time.Minute))
	mailer := &countingMailer{}
	sender := NewBatchSender(q, mailer, config.MailQueueConfig{})

	job := RunWorker(sender, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		mailer.mu.Lock()
		defer mailer.mu.Unlock()
		return len(mailer.sent) == 2
	}, 2*time.Second, 5*time.Millisecond)

	job.Cancel()
	select {
	case <-job.Finished():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.True(t, strings.HasPrefix(job.Name, "mail queue"))
}
