package website

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/luminagoods/site/src/email"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/siteurl"
)

var errEngagementNotConfigured = errors.New("engagement store is not configured")

var (
	rePostSlug  = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,199}$`)
	reEventName = regexp.MustCompile(`^[a-z0-9_.:-]{1,64}$`)
)

const (
	maxCommentName   = 200
	maxCommentBody   = 5000
	maxAnalyticsPath = 500
)

type commentBody struct {
	Post  string `json:"post"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Body  string `json:"body"`
}

func (h *handlers) PostComment(c *RequestContext) ResponseData {
	var body commentBody
	if res := readBody(c, &body, func(v url.Values) {
		body.Post = v.Get("post")
		body.Name = v.Get("name")
		body.Email = v.Get("email")
		body.Body = v.Get("body")
	}); res != nil {
		return *res
	}

	slug := strings.TrimSpace(body.Post)
	name := strings.TrimSpace(body.Name)
	addr := email.NormalizeEmail(body.Email)
	text := strings.TrimSpace(body.Body)
	switch {
	case !rePostSlug.MatchString(slug):
		return badRequest("Unknown post")
	case name == "":
		return badRequest("Name is required")
	case len(name) > maxCommentName:
		return badRequest("Name is too long")
	case !email.IsEmail(addr):
		return badRequest("Please enter a valid email address")
	case text == "":
		return badRequest("Comment is required")
	case len(text) > maxCommentBody:
		return badRequest("Comment is too long")
	}

	if h.Engagement == nil {
		return c.ErrorResponse(errEngagementNotConfigured)
	}

	comment, err := h.Engagement.InsertComment(c, slug, name, addr, text)
	if err != nil {
		return c.ErrorResponse(err)
	}

	h.notifyComment(c, comment)
	return apiSuccess("Thanks! Your comment has been posted.", comment)
}

// notifyComment tells the admin about a new comment. Best effort; the comment
// is already saved.
func (h *handlers) notifyComment(c *RequestContext, comment *models.Comment) {
	if h.AdminAddress == "" || h.Mailer == nil {
		return
	}
	msg, err := email.CommentNotification(comment.PostSlug, siteurl.BuildJournalPost(comment.PostSlug), comment.Name, comment.Email, comment.Body)
	if err != nil {
		c.Logger.Error().Err(err).Msg("Failed to render comment notification")
		return
	}
	if err := h.Mailer.Send(c, h.AdminAddress, msg.Subject, msg.HTML); err != nil {
		c.Logger.Error().Err(err).Int("comment id", comment.ID).Msg("Failed to send comment notification")
	}
}

func (h *handlers) ListComments(c *RequestContext) ResponseData {
	slug := c.Req.URL.Query().Get("post")
	if !rePostSlug.MatchString(slug) {
		return badRequest("Unknown post")
	}
	if h.Engagement == nil {
		return c.ErrorResponse(errEngagementNotConfigured)
	}

	comments, err := h.Engagement.ListComments(c, slug)
	if err != nil {
		return c.ErrorResponse(err)
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	return apiSuccess("", comments)
}

type reactionBody struct {
	Post     string `json:"post"`
	Reaction string `json:"reaction"`
}

type reactionData struct {
	Added  bool                    `json:"added"`
	Counts []*models.ReactionCount `json:"counts"`
}

// visitorHash stands in for the visitor so one IP gets one vote per reaction
// without the IP being stored.
func visitorHash(ip, slug string) string {
	sum := sha256.Sum256([]byte(slug + "|" + ip))
	return hex.EncodeToString(sum[:])
}

func (h *handlers) PostReaction(c *RequestContext) ResponseData {
	var body reactionBody
	if res := readBody(c, &body, nil); res != nil {
		return *res
	}

	slug := strings.TrimSpace(body.Post)
	reaction := strings.ToLower(strings.TrimSpace(body.Reaction))
	if !rePostSlug.MatchString(slug) {
		return badRequest("Unknown post")
	}
	if !models.IsReaction(reaction) {
		return badRequest("Unknown reaction")
	}
	ip := c.ClientIP()
	if ip == "" {
		return badRequest("Could not identify the visitor")
	}
	if h.Engagement == nil {
		return c.ErrorResponse(errEngagementNotConfigured)
	}

	added, err := h.Engagement.AddReaction(c, slug, reaction, visitorHash(ip, slug))
	if err != nil {
		return c.ErrorResponse(err)
	}
	counts, err := h.Engagement.CountReactions(c, slug)
	if err != nil {
		return c.ErrorResponse(err)
	}
	return apiSuccess("", reactionData{Added: added, Counts: counts})
}

func (h *handlers) ListReactions(c *RequestContext) ResponseData {
	slug := c.Req.URL.Query().Get("post")
	if !rePostSlug.MatchString(slug) {
		return badRequest("Unknown post")
	}
	if h.Engagement == nil {
		return c.ErrorResponse(errEngagementNotConfigured)
	}

	counts, err := h.Engagement.CountReactions(c, slug)
	if err != nil {
		return c.ErrorResponse(err)
	}
	if counts == nil {
		counts = []*models.ReactionCount{}
	}
	return apiSuccess("", counts)
}

type analyticsBody struct {
	Event    string         `json:"event"`
	Path     string         `json:"path"`
	Metadata map[string]any `json:"metadata"`
}

func (h *handlers) PostAnalytics(c *RequestContext) ResponseData {
	var body analyticsBody
	if res := readBody(c, &body, nil); res != nil {
		return *res
	}

	event := strings.ToLower(strings.TrimSpace(body.Event))
	if !reEventName.MatchString(event) {
		return badRequest("Unknown event")
	}
	if len(body.Path) > maxAnalyticsPath {
		return badRequest("Path is too long")
	}
	if h.Engagement == nil {
		return c.ErrorResponse(errEngagementNotConfigured)
	}

	if err := h.Engagement.InsertAnalyticsEvent(c, event, body.Path, body.Metadata); err != nil {
		return c.ErrorResponse(err)
	}
	return apiSuccess("", nil)
}
