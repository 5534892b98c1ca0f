package website

import (
	"context"
	"net/http"
	"regexp"

	"github.com/luminagoods/site/src/email"
	"github.com/luminagoods/site/src/mailqueue"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/ratelimit"
	"github.com/luminagoods/site/src/siteurl"
	"github.com/luminagoods/site/src/subscriptions"
)

// EngagementStore is the part of sitedata.Store behind the comment, reaction
// and analytics endpoints.
type EngagementStore interface {
	InsertComment(ctx context.Context, postSlug, name, email, body string) (*models.Comment, error)
	ListComments(ctx context.Context, postSlug string) ([]*models.Comment, error)
	AddReaction(ctx context.Context, postSlug, reaction, visitorHash string) (bool, error)
	CountReactions(ctx context.Context, postSlug string) ([]*models.ReactionCount, error)
	InsertAnalyticsEvent(ctx context.Context, eventName, path string, metadata map[string]any) error
}

// Deps is everything the handlers need. Any store may be nil when the
// database is not configured; the endpoints using it then answer 503.
type Deps struct {
	Subscriptions *subscriptions.Service
	Automation    *mailqueue.Automation
	Queue         *mailqueue.BatchSender
	Engagement    EngagementStore
	Mailer        email.Sender
	Limiter       ratelimit.Limiter

	AdminToken   string
	DiagToken    string
	AdminAddress string
}

type handlers struct {
	Deps
}

var (
	reHealth           = regexp.MustCompile(`^/health$`)
	reUnsubscribeApi   = regexp.MustCompile(`^/api/unsubscribe$`)
	reAutomation       = regexp.MustCompile(`^/api/email-automation$`)
	reSendPending      = regexp.MustCompile(`^/api/email-automation/send-pending$`)
	reDashboardStats   = regexp.MustCompile(`^/api/(dashboard-stats|dashboard/stats)$`)
	reDiagEnv          = regexp.MustCompile(`^/api/diag/env$`)
	reComments         = regexp.MustCompile(`^/api/comments$`)
	reReactions        = regexp.MustCompile(`^/api/reactions$`)
	reAnalytics        = regexp.MustCompile(`^/api/analytics$`)
	reAnySubscribePath = regexp.MustCompile(`^/api/subscribe(/.*)?$`)
	reAnything         = regexp.MustCompile(`^`)
)

func NewWebsiteRoutes(deps Deps) http.Handler {
	router := &Router{}
	h := &handlers{Deps: deps}

	base := RouteBuilder{
		Router: router,
		Middlewares: []Middleware{
			logContextErrorsMiddleware,
			panicCatcherMiddleware,
		},
	}
	named := func(name string, ms ...Middleware) RouteBuilder {
		return base.WithMiddleware(append([]Middleware{observeRequest(name)}, ms...)...)
	}

	named("health").GET(reHealth, h.Health)

	public := func(name string) RouteBuilder { return named(name, corsMiddleware) }
	limited := func(name string) RouteBuilder {
		return named(name, corsMiddleware, rateLimited(deps.Limiter, name))
	}

	limitedSubscribe := limited("subscribe")
	limitedSubscribe.POST(siteurl.RegexSubscribe, h.Subscribe)
	public("subscribe").AnyMethod(reAnySubscribePath, methodNotAllowedUnlessPreflight)

	named("unsubscribe page").GET(siteurl.RegexUnsubscribe, h.UnsubscribePage)
	public("unsubscribe").POST(reUnsubscribeApi, h.UnsubscribeApi)

	admin := func(name string) RouteBuilder { return named(name, adminOnly(deps.AdminToken)) }
	admin("email automation").POST(reAutomation, h.EmailAutomation)
	admin("send pending").Handle([]string{http.MethodGet, http.MethodPost}, reSendPending, h.SendPending)
	admin("dashboard stats").GET(reDashboardStats, h.DashboardStats)

	named("diag env", diagOnly(deps.DiagToken)).GET(reDiagEnv, h.DiagEnv)

	limited("comments").POST(reComments, h.PostComment)
	public("comments").GET(reComments, h.ListComments)
	limited("reactions").POST(reReactions, h.PostReaction)
	public("reactions").GET(reReactions, h.ListReactions)
	limited("analytics").POST(reAnalytics, h.PostAnalytics)

	public("not found").AnyMethod(reAnything, FourOhFour)

	return router
}

func methodNotAllowedUnlessPreflight(c *RequestContext) ResponseData {
	if siteurl.RegexSubscribe.MatchString(c.Req.URL.Path) {
		return methodNotAllowed(c)
	}
	return FourOhFour(c)
}

func (h *handlers) Health(c *RequestContext) ResponseData {
	var res ResponseData
	res.Header().Set("Content-Type", "text/plain; charset=utf-8")
	res.Write([]byte("ok"))
	return res
}
