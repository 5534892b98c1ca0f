package email

import (
	"bytes"
	"html/template"
	"regexp"
	"strings"

	"github.com/luminagoods/site/src/config"
	"github.com/luminagoods/site/src/oops"
	"github.com/luminagoods/site/src/siteurl"
	"github.com/luminagoods/site/src/templates"
)

var EmailRegex = regexp.MustCompile(`^[^:\p{Cc} @]+@[^:\p{Cc} @]+\.[^:\p{Cc} @]+$`)

func IsEmail(address string) bool {
	return EmailRegex.MatchString(address)
}

// NormalizeEmail is the form addresses are stored and compared in.
func NormalizeEmail(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func Brand() templates.Brand {
	return templates.Brand{
		Name:        config.Config.Brand.Name,
		Color:       config.Config.Brand.Color,
		HomepageUrl: siteurl.BuildHomepage(),
	}
}

/*
Render wraps body in the branded email layout. body is trusted: it must come
from one of our own templates or from the markdown renderer. The subject is
escaped like any other value.

The output depends only on the arguments and the brand config, so rendering the
same message twice gives identical bytes.
*/
func Render(subject string, body template.HTML) (string, error) {
	return renderTemplate("email_layout.html", templates.EmailLayout{
		Brand:   Brand(),
		Subject: subject,
		Body:    body,
	})
}

// RenderBody renders one of the body templates, for handing to Render.
func RenderBody(name string, data any) (template.HTML, error) {
	body, err := renderTemplate(name, data)
	if err != nil {
		return "", err
	}
	return template.HTML(body), nil
}

func renderTemplate(name string, data any) (string, error) {
	var buffer bytes.Buffer
	template := templates.GetTemplate(name)
	err := template.Execute(&buffer, data)
	if err != nil {
		return "", oops.New(err, "Failed to render template for email")
	}
	return buffer.String(), nil
}

// renderFull renders a body template and wraps it in the layout.
func renderFull(subject, name string, data any) (string, error) {
	body, err := RenderBody(name, data)
	if err != nil {
		return "", err
	}
	return Render(subject, body)
}
