package templates

import (
	"html/template"
	"time"
)

// Brand is the chrome shared by every email and page.
type Brand struct {
	Name        string
	Color       string // hex, with or without the leading #
	HomepageUrl string
}

type EmailLayout struct {
	Brand   Brand
	Subject string
	Body    template.HTML
}

// ConfirmationEmail is sent to a visitor after any successful form submission.
type ConfirmationEmail struct {
	Name           string
	Headline       string
	Paragraphs     []string
	ListName       string
	UnsubscribeUrl string
}

type Field struct {
	Label string
	Value string
}

// AdminNotificationEmail tells the site owner a form was submitted. Every
// value in Fields and Message comes from the visitor.
type AdminNotificationEmail struct {
	Category    string
	ListName    string
	Reactivated bool
	Fields      []Field
	Message     string
	SubmittedAt time.Time
}

type BlogNotificationEmail struct {
	Title          string
	Excerpt        string
	PostUrl        string
	UnsubscribeUrl string
}

// NewsletterEmail carries an issue rendered once for every recipient. The
// unsubscribe link is a placeholder swapped per recipient before queueing.
type NewsletterEmail struct {
	Subject        string
	Content        template.HTML
	UnsubscribeUrl string
}

type TestEmail struct {
	SentAt time.Time
	Env    string
}

type CommentNotificationEmail struct {
	PostSlug string
	PostUrl  string
	Name     string
	Email    string
	Body     string
}

type UnsubscribePage struct {
	Brand    Brand
	Success  bool
	Email    string
	ListName string
	Message  string
}
