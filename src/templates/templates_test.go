package templates

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllTemplatesParse(t *testing.T) {
	assert.NotPanics(t, Init)
	for _, name := range []string{
		"email_layout.html",
		"email_confirmation.html",
		"email_admin_notification.html",
		"email_blog_notification.html",
		"email_newsletter.html",
		"email_test.html",
		"email_comment_notification.html",
		"unsubscribe.html",
	} {
		assert.NotNil(t, GetTemplate(name), name)
	}
	assert.Panics(t, func() { GetTemplate("nope.html") })
}

func TestAdminNotificationEscapesVisitorInput(t *testing.T) {
	var buf bytes.Buffer
	err := GetTemplate("email_admin_notification.html").Execute(&buf, AdminNotificationEmail{
		Category: "contact",
		ListName: "Contact",
		Fields: []Field{
			{Label: "Name", Value: `<script>alert("hi")</script>`},
			{Label: "Portfolio", Value: "https://example.com/work"},
		},
		Message:     "line one\nline <b>two</b>",
		SubmittedAt: time.Date(2026, 3, 1, 15, 4, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.NotContains(t, out, "<b>two</b>")
	assert.Contains(t, out, `<a href="https://example.com/work" rel="nofollow">`)
	assert.Contains(t, out, "line one<br>")
	assert.Contains(t, out, "March 1, 2026, 3:04pm")
}

func TestUnsubscribePage(t *testing.T) {
	brand := Brand{Name: "Lumina Goods", Color: "#c2603a", HomepageUrl: "https://lumina.example/"}

	var ok bytes.Buffer
	require.NoError(t, GetTemplate("unsubscribe.html").Execute(&ok, UnsubscribePage{
		Brand:    brand,
		Success:  true,
		Email:    "a@b.com",
		ListName: "Newsletter",
	}))
	assert.Contains(t, ok.String(), "You've been unsubscribed")
	assert.Contains(t, ok.String(), "a@b.com")

	var failed bytes.Buffer
	require.NoError(t, GetTemplate("unsubscribe.html").Execute(&failed, UnsubscribePage{
		Brand:   brand,
		Message: "Invalid token format",
	}))
	assert.Contains(t, failed.String(), "Invalid token format")
	assert.NotContains(t, failed.String(), "You've been unsubscribed")
}
