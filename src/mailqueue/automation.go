package mailqueue

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/luminagoods/site/src/email"
	"github.com/luminagoods/site/src/logging"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/parsing"
	"github.com/luminagoods/site/src/sitedata"
	"github.com/luminagoods/site/src/subscriptions"
)

const (
	ActionSendNewsletter       = "send-newsletter"
	ActionSendBlogNotification = "send-blog-notification"
	ActionSendTest             = "send-test"
	ActionGetStats             = "get-stats"
)

var ErrUnknownAction = errors.New("unknown email automation action")

type AutomationStore interface {
	ActiveSubscribers(ctx context.Context, categories []models.Category) ([]*models.Subscriber, error)
	ScheduleEmails(ctx context.Context, emails []sitedata.NewScheduledEmail) (int64, error)
	Stats(ctx context.Context) (*models.DashboardStats, error)
}

type Archiver interface {
	PutNewsletter(ctx context.Context, subject, html string, at time.Time) (string, error)
}

// Action is the body of an email automation request. Which fields matter
// depends on Action.
type Action struct {
	Action string `json:"action"`

	Subject      string     `json:"subject,omitempty"`
	Markdown     string     `json:"markdown,omitempty"`
	HTML         string     `json:"html,omitempty"`
	Categories   []string   `json:"categories,omitempty"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`

	Title   string `json:"title,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
	URL     string `json:"url,omitempty"`

	To string `json:"to,omitempty"`
}

type QueueResult struct {
	Queued     int64  `json:"queued"`
	ArchiveKey string `json:"archive_key,omitempty"`
}

type TestResult struct {
	Sent bool   `json:"sent"`
	To   string `json:"to"`
}

type Automation struct {
	store    AutomationStore
	mailer   email.Sender
	archiver Archiver
	now      func() time.Time
}

// NewAutomation builds the admin email actions. archiver may be nil.
func NewAutomation(store AutomationStore, mailer email.Sender, archiver Archiver) *Automation {
	return &Automation{
		store:    store,
		mailer:   mailer,
		archiver: archiver,
		now:      time.Now,
	}
}

// Run performs one action. The result is JSON-encodable. Bad input comes back
// as a *subscriptions.ValidationError.
func (a *Automation) Run(ctx context.Context, act Action) (any, error) {
	switch act.Action {
	case ActionSendNewsletter:
		return a.sendNewsletter(ctx, act)
	case ActionSendBlogNotification:
		return a.sendBlogNotification(ctx, act)
	case ActionSendTest:
		return a.sendTest(ctx, act)
	case ActionGetStats:
		if a.store == nil {
			return nil, ErrStoreNotConfigured
		}
		return a.store.Stats(ctx)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, act.Action)
}

func invalid(field, msg string) error {
	return &subscriptions.ValidationError{Field: field, Message: msg}
}

func parseCategories(raw []string) ([]models.Category, error) {
	if len(raw) == 0 {
		return []models.Category{models.CategoryNewsletter}, nil
	}
	var cats []models.Category
	for _, c := range raw {
		cat, ok := models.ParseCategory(strings.TrimSpace(c))
		if !ok {
			return nil, invalid("categories", fmt.Sprintf("Unknown category %q", c))
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

func (a *Automation) sendNewsletter(ctx context.Context, act Action) (any, error) {
	subject := strings.TrimSpace(act.Subject)
	if subject == "" {
		return nil, invalid("subject", "Subject is required")
	}
	if strings.TrimSpace(act.Markdown) == "" && strings.TrimSpace(act.HTML) == "" {
		return nil, invalid("markdown", "Newsletter content is required")
	}
	cats, err := parseCategories(act.Categories)
	if err != nil {
		return nil, err
	}
	if a.store == nil {
		return nil, ErrStoreNotConfigured
	}

	var content template.HTML
	if strings.TrimSpace(act.Markdown) != "" {
		content, err = parsing.ParseMarkdown(act.Markdown, parsing.NewsletterMarkdown)
		if err != nil {
			return nil, invalid("markdown", "Could not parse newsletter markdown")
		}
	} else {
		// Admin-authored HTML, behind the admin token.
		content = template.HTML(act.HTML)
	}

	msg, err := email.Newsletter(subject, content)
	if err != nil {
		return nil, err
	}

	var result QueueResult
	if a.archiver != nil {
		key, err := a.archiver.PutNewsletter(ctx, subject, msg.HTML, a.now())
		if err != nil {
			logging.ExtractLogger(ctx).Error().Err(err).Msg("Failed to archive newsletter; queueing anyway")
		}
		result.ArchiveKey = key
	}

	metadata := map[string]string{}
	if result.ArchiveKey != "" {
		metadata["archive_key"] = result.ArchiveKey
	}
	result.Queued, err = a.fanOut(ctx, cats, msg, models.EmailTypeNewsletter, act.ScheduledFor, metadata)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (a *Automation) sendBlogNotification(ctx context.Context, act Action) (any, error) {
	title := strings.TrimSpace(act.Title)
	if title == "" {
		return nil, invalid("title", "Title is required")
	}
	u, err := url.Parse(strings.TrimSpace(act.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalid("url", "A full post URL is required")
	}
	cats, err := parseCategories(act.Categories)
	if err != nil {
		return nil, err
	}
	if a.store == nil {
		return nil, ErrStoreNotConfigured
	}

	msg, err := email.BlogNotification(title, strings.TrimSpace(act.Excerpt), u.String(), email.UnsubscribePlaceholder)
	if err != nil {
		return nil, err
	}

	queued, err := a.fanOut(ctx, cats, msg, models.EmailTypeNotification, act.ScheduledFor, map[string]string{"post_url": u.String()})
	if err != nil {
		return nil, err
	}
	return QueueResult{Queued: queued}, nil
}

/*
fanOut queues one copy of msg per active subscriber of cats, each with its own
unsubscribe link. Someone on several of the lists gets one copy, unsubscribing
them from the first matching list.
*/
func (a *Automation) fanOut(
	ctx context.Context,
	cats []models.Category,
	msg email.Message,
	emailType models.EmailType,
	scheduledFor *time.Time,
	metadata map[string]string,
) (int64, error) {
	subs, err := a.store.ActiveSubscribers(ctx, cats)
	if err != nil {
		return 0, err
	}

	when := a.now()
	if scheduledFor != nil && !scheduledFor.IsZero() {
		when = *scheduledFor
	}

	seen := make(map[string]bool)
	var queue []sitedata.NewScheduledEmail
	for _, sub := range subs {
		if seen[sub.Email] {
			continue
		}
		seen[sub.Email] = true

		md := map[string]string{
			"category":      string(sub.Category),
			"subscriber_id": strconv.Itoa(sub.ID),
		}
		for k, v := range metadata {
			md[k] = v
		}

		queue = append(queue, sitedata.NewScheduledEmail{
			RecipientEmail: sub.Email,
			Subject:        msg.Subject,
			HTMLContent:    email.Personalize(msg.HTML, subscriptions.UnsubscribeUrl(sub)),
			ScheduledFor:   when,
			EmailType:      emailType,
			Metadata:       md,
		})
	}

	queued, err := a.store.ScheduleEmails(ctx, queue)
	if err != nil {
		return 0, err
	}
	logging.ExtractLogger(ctx).Info().
		Int64("queued", queued).
		Str("type", string(emailType)).
		Time("scheduled for", when).
		Msg("Queued emails")
	return queued, nil
}

func (a *Automation) sendTest(ctx context.Context, act Action) (any, error) {
	to := email.NormalizeEmail(act.To)
	if !email.IsEmail(to) {
		return nil, invalid("to", "A valid recipient address is required")
	}

	msg, err := email.Test(strings.TrimSpace(act.Subject), a.now())
	if err != nil {
		return nil, err
	}
	if err := a.mailer.Send(ctx, to, msg.Subject, msg.HTML); err != nil {
		return nil, err
	}
	return TestResult{Sent: true, To: to}, nil
}
