package email

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/luminagoods/site/src/config"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/templates"
)

// Message is a fully rendered email ready for a Sender.
type Message struct {
	Subject string
	HTML    string
}

type confirmationCopy struct {
	Subject    string
	Headline   string
	Paragraphs []string
}

func confirmationCopyFor(category models.Category, brand string) confirmationCopy {
	switch category {
	case models.CategoryNewsletter:
		return confirmationCopy{
			Subject:  fmt.Sprintf("Welcome to the %s newsletter", brand),
			Headline: "You're on the list",
			Paragraphs: []string{
				"Thanks for subscribing. Every few weeks we'll send you studio notes, new pieces, and stories from the makers we work with.",
				"Your first issue will arrive with our next send.",
			},
		}
	case models.CategoryShop:
		return confirmationCopy{
			Subject:  fmt.Sprintf("You'll hear about new %s drops first", brand),
			Headline: "Shop updates are on their way",
			Paragraphs: []string{
				"We'll email you when new collections open and when limited pieces are restocked.",
			},
		}
	case models.CategoryPodcast:
		return confirmationCopy{
			Subject:  fmt.Sprintf("Thanks for following the %s podcast", brand),
			Headline: "New episodes, straight to your inbox",
			Paragraphs: []string{
				"We'll let you know as soon as a new conversation is published.",
			},
		}
	case models.CategoryAuctionCollector:
		return confirmationCopy{
			Subject:  fmt.Sprintf("You're registered for %s auctions", brand),
			Headline: "Welcome, collector",
			Paragraphs: []string{
				"You'll get the catalogue and bidding details for each curated sale before it opens.",
			},
		}
	case models.CategoryAuctionCreator:
		return confirmationCopy{
			Subject:  fmt.Sprintf("We received your %s creator application", brand),
			Headline: "Thanks for applying",
			Paragraphs: []string{
				"Our curators read every application. If your work is a fit for an upcoming sale, we'll reach out at the times you picked.",
				"There's nothing else you need to do for now.",
			},
		}
	case models.CategoryContact:
		return confirmationCopy{
			Subject:  fmt.Sprintf("We got your message | %s", brand),
			Headline: "Thanks for reaching out",
			Paragraphs: []string{
				"A real person will read your message and reply, usually within two working days.",
			},
		}
	}
	return confirmationCopy{
		Subject:  fmt.Sprintf("Thanks for signing up with %s", brand),
		Headline: "Thanks for signing up",
	}
}

type ConfirmationData struct {
	Category       models.Category
	Name           string
	UnsubscribeUrl string
}

// Confirmation is the message a visitor gets after a successful submission in
// any category.
func Confirmation(data ConfirmationData) (Message, error) {
	brand := config.Config.Brand.Name
	words := confirmationCopyFor(data.Category, brand)

	html, err := renderFull(words.Subject, "email_confirmation.html", templates.ConfirmationEmail{
		Name:           data.Name,
		Headline:       words.Headline,
		Paragraphs:     words.Paragraphs,
		ListName:       brand,
		UnsubscribeUrl: data.UnsubscribeUrl,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: words.Subject, HTML: html}, nil
}

type AdminNotificationData struct {
	Category              models.Category
	Name                  string
	Email                 string
	Message               string
	Portfolio             string
	PreferredContactTimes []string
	Reactivated           bool
	SubmittedAt           time.Time
}

// AdminNotification tells the site owner about a submission.
func AdminNotification(data AdminNotificationData) (Message, error) {
	listName := data.Category.DisplayName()
	subject := fmt.Sprintf("[%s] New %s submission from %s", config.Config.Brand.Name, strings.ToLower(listName), data.Email)

	fields := []templates.Field{{Label: "Email", Value: data.Email}}
	if data.Name != "" {
		fields = append(fields, templates.Field{Label: "Name", Value: data.Name})
	}
	if data.Portfolio != "" {
		fields = append(fields, templates.Field{Label: "Portfolio", Value: data.Portfolio})
	}
	if len(data.PreferredContactTimes) > 0 {
		fields = append(fields, templates.Field{Label: "Best times", Value: strings.Join(data.PreferredContactTimes, ", ")})
	}

	html, err := renderFull(subject, "email_admin_notification.html", templates.AdminNotificationEmail{
		Category:    string(data.Category),
		ListName:    listName,
		Reactivated: data.Reactivated,
		Fields:      fields,
		Message:     data.Message,
		SubmittedAt: data.SubmittedAt,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: subject, HTML: html}, nil
}

func BlogNotification(title, excerpt, postUrl, unsubscribeUrl string) (Message, error) {
	subject := fmt.Sprintf("New on %s: %s", config.Config.Brand.Name, title)
	html, err := renderFull(subject, "email_blog_notification.html", templates.BlogNotificationEmail{
		Title:          title,
		Excerpt:        excerpt,
		PostUrl:        postUrl,
		UnsubscribeUrl: unsubscribeUrl,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: subject, HTML: html}, nil
}

// UnsubscribePlaceholder stands in for the recipient's unsubscribe link in
// messages that are rendered once and personalised per recipient.
const UnsubscribePlaceholder = "https://unsubscribe.invalid/%7Btoken%7D"

// Personalize swaps the unsubscribe placeholder for a real link.
func Personalize(html, unsubscribeUrl string) string {
	return strings.ReplaceAll(html, UnsubscribePlaceholder, template.HTMLEscapeString(unsubscribeUrl))
}

func Newsletter(subject string, content template.HTML) (Message, error) {
	html, err := renderFull(subject, "email_newsletter.html", templates.NewsletterEmail{
		Subject:        subject,
		Content:        content,
		UnsubscribeUrl: UnsubscribePlaceholder,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: subject, HTML: html}, nil
}

func Test(subject string, now time.Time) (Message, error) {
	if subject == "" {
		subject = fmt.Sprintf("[%s] Test email", config.Config.Brand.Name)
	}
	html, err := renderFull(subject, "email_test.html", templates.TestEmail{
		SentAt: now,
		Env:    string(config.Config.Env),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: subject, HTML: html}, nil
}

func CommentNotification(postSlug, postUrl, name, email, body string) (Message, error) {
	subject := fmt.Sprintf("[%s] New comment on %s", config.Config.Brand.Name, postSlug)
	html, err := renderFull(subject, "email_comment_notification.html", templates.CommentNotificationEmail{
		PostSlug: postSlug,
		PostUrl:  postUrl,
		Name:     name,
		Email:    email,
		Body:     body,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: subject, HTML: html}, nil
}
