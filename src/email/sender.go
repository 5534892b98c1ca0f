package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/luminagoods/site/src/config"
	"github.com/luminagoods/site/src/logging"
	"github.com/luminagoods/site/src/metrics"
	"github.com/luminagoods/site/src/oops"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrNotConfigured is returned, without any network call, when the email
// provider credentials are missing.
var ErrNotConfigured = errors.New("email provider is not configured")

type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

const (
	DefaultGraphBaseURL = "https://graph.microsoft.com"
	graphScope          = "https://graph.microsoft.com/.default"
)

func tokenURL(cfg config.EmailConfig) string {
	if cfg.TokenURL != "" {
		return cfg.TokenURL
	}
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(cfg.TenantID))
}

/*
GraphSender sends mail as a single mailbox through Microsoft Graph, using an
app-only token from the client credentials flow.

Tokens are cached and refreshed by the oauth2 token source, so most sends are a
single request. There are no retries here; a failed send is returned to the
caller.
*/
type GraphSender struct {
	cfg    config.EmailConfig
	client *http.Client
	tokens oauth2.TokenSource
}

func NewGraphSender(cfg config.EmailConfig, client *http.Client) *GraphSender {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	s := &GraphSender{cfg: cfg, client: client}
	if cfg.Configured() {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL(cfg),
			Scopes:       []string{graphScope},
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		s.tokens = cc.TokenSource(tokenCtx)
	}
	return s
}

func (s *GraphSender) Configured() bool {
	return s.tokens != nil
}

type graphAddress struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphEmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphMessage struct {
	Subject      string         `json:"subject"`
	Body         graphBody      `json:"body"`
	From         *graphAddress  `json:"from,omitempty"`
	ToRecipients []graphAddress `json:"toRecipients"`
}

type graphSendMailRequest struct {
	Message         graphMessage `json:"message"`
	SaveToSentItems bool         `json:"saveToSentItems"`
}

func (s *GraphSender) Send(ctx context.Context, to, subject, html string) error {
	if !s.Configured() {
		metrics.EmailFailed("config")
		return ErrNotConfigured
	}

	log := logging.ExtractLogger(ctx).With().Str("to", to).Str("subject", subject).Logger()

	if s.cfg.ForceToAddress != "" {
		log.Debug().Str("forced", s.cfg.ForceToAddress).Msg("Redirecting email")
		to = s.cfg.ForceToAddress
	}

	token, err := s.tokens.Token()
	if err != nil {
		metrics.EmailFailed("token")
		err = oops.New(err, "failed to get Microsoft Graph access token")
		log.Error().Err(err).Msg("Email token request failed")
		return err
	}

	msg := graphSendMailRequest{
		Message: graphMessage{
			Subject:      subject,
			Body:         graphBody{ContentType: "HTML", Content: html},
			ToRecipients: []graphAddress{{EmailAddress: graphEmailAddress{Address: to}}},
		},
		SaveToSentItems: false,
	}
	if s.cfg.FromName != "" {
		msg.Message.From = &graphAddress{EmailAddress: graphEmailAddress{
			Name:    s.cfg.FromName,
			Address: s.cfg.SenderAddress,
		}}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return oops.New(err, "failed to encode sendMail request")
	}

	base := strings.TrimRight(s.cfg.GraphBaseURL, "/")
	if base == "" {
		base = DefaultGraphBaseURL
	}
	endpoint := fmt.Sprintf("%s/v1.0/users/%s/sendMail", base, url.PathEscape(s.cfg.SenderAddress))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return oops.New(err, "failed to create sendMail request")
	}
	req.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(req)

	res, err := s.client.Do(req)
	if err != nil {
		metrics.EmailFailed("send")
		err = oops.New(err, "sendMail request failed")
		log.Error().Err(err).Msg("Email send failed")
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		metrics.EmailFailed("send")
		err = oops.New(nil, "sendMail returned %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
		log.Error().Err(err).Msg("Email send failed")
		return err
	}
	io.Copy(io.Discard, res.Body)

	log.Debug().Msg("Email sent")
	return nil
}
