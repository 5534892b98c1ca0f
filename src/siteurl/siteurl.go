// Package siteurl builds absolute links back to the site, for emails and redirects.
package siteurl

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/luminagoods/site/src/config"
)

type Q struct {
	Name  string
	Value string
}

func Url(path string, query []Q) string {
	return UrlWithBase(config.Config.BaseUrl, path, query)
}

func UrlWithBase(base, path string, query []Q) string {
	result := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	if q := encodeQuery(query); q != "" {
		result += "?" + q
	}
	return result
}

func encodeQuery(query []Q) string {
	result := url.Values{}
	for _, q := range query {
		result.Set(q.Name, q.Value)
	}
	return result.Encode()
}

func BuildHomepage() string {
	return Url("/", nil)
}

var RegexUnsubscribe = regexp.MustCompile(`^/unsubscribe$`)

func BuildUnsubscribe(token string) string {
	return Url("/unsubscribe", []Q{{Name: "token", Value: token}})
}

var RegexSubscribe = regexp.MustCompile(`^/api/subscribe/(?P<category>[a-z-]+)$`)

func BuildJournalPost(slug string) string {
	return Url("/journal/"+url.PathEscape(slug), nil)
}
