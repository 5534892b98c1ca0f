package website

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/luminagoods/site/src/config"
	"github.com/luminagoods/site/src/metrics"
	"github.com/luminagoods/site/src/oops"
	"github.com/luminagoods/site/src/ratelimit"
)

func panicCatcherMiddleware(h Handler) Handler {
	return func(c *RequestContext) (res ResponseData) {
		defer func() {
			if recovered := recover(); recovered != nil {
				maybeError, ok := recovered.(*error)
				var err error
				if ok {
					err = *maybeError
				} else if e, isErr := recovered.(error); isErr {
					err = oops.New(e, "Recovered from panic")
				} else {
					err = oops.New(nil, fmt.Sprintf("Recovered from panic with value: %v", recovered))
				}
				res = c.ErrorResponse(err)
			}
		}()

		return h(c)
	}
}

// observeRequest logs each request once it is served and records its latency.
func observeRequest(name string) Middleware {
	return func(h Handler) Handler {
		return func(c *RequestContext) ResponseData {
			res := h(c)

			status := res.StatusCode
			if status == 0 {
				status = http.StatusOK
			}
			dur := time.Since(c.Start)
			metrics.ObserveRequest(c.Req.Method, name, status, dur)

			ev := c.Logger.Info()
			if status >= 500 {
				ev = c.Logger.Warn()
			}
			ev.Int("status", status).
				Str("route", name).
				Float64("ms", float64(dur.Microseconds())/1000).
				Msg("Served request")
			return res
		}
	}
}

func bearerToken(c *RequestContext) string {
	if token := c.Req.Header.Get("X-Admin-Token"); token != "" {
		return token
	}
	auth := c.Req.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func tokenMatches(given, want string) bool {
	return subtle.ConstantTimeCompare([]byte(given), []byte(want)) == 1
}

// adminOnly requires the admin token. Without one configured the admin
// endpoints report themselves as not configured.
func adminOnly(token string) Middleware {
	return func(h Handler) Handler {
		return func(c *RequestContext) ResponseData {
			if token == "" {
				return apiFailure(http.StatusServiceUnavailable, msgNotConfigured)
			}
			if !tokenMatches(bearerToken(c), token) {
				c.Logger.Warn().Str("ip", c.ClientIP()).Msg("Rejected admin request with a bad token")
				return apiFailure(http.StatusUnauthorized, "Unauthorized")
			}
			return h(c)
		}
	}
}

// diagOnly hides the endpoint entirely unless the diag token is configured
// and supplied.
func diagOnly(token string) Middleware {
	return func(h Handler) Handler {
		return func(c *RequestContext) ResponseData {
			if token == "" || !tokenMatches(bearerToken(c), token) {
				return FourOhFour(c)
			}
			return h(c)
		}
	}
}

func rateLimited(limiter ratelimit.Limiter, name string) Middleware {
	return func(h Handler) Handler {
		return func(c *RequestContext) ResponseData {
			if limiter == nil {
				return h(c)
			}

			ok, err := limiter.Allow(c, name+":"+c.ClientIP())
			if err != nil {
				c.Logger.Error().Err(err).Msg("Rate limiter failed; letting the request through")
				return h(c)
			}
			if !ok {
				metrics.RateLimited(name)
				res := apiFailure(http.StatusTooManyRequests, "Too many requests. Please wait a minute and try again.")
				res.Header().Set("Retry-After", fmt.Sprint(int(ratelimit.Window.Seconds())))
				return res
			}
			return h(c)
		}
	}
}

// corsMiddleware lets the marketing pages, which may be served from a
// sibling host, call the API.
func corsMiddleware(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		var res ResponseData
		if c.Req.Method == http.MethodOptions {
			res.StatusCode = http.StatusNoContent
			res.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			res.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token")
		} else {
			res = h(c)
		}
		addCORSHeaders(c, &res)
		return res
	}
}

func addCORSHeaders(c *RequestContext, res *ResponseData) {
	parsed, err := url.Parse(config.Config.BaseUrl)
	if err != nil || parsed.Host == "" {
		c.Logger.Error().Str("Config.BaseUrl", config.Config.BaseUrl).Msg("Config.BaseUrl cannot be parsed. Skipping CORS headers")
		return
	}
	origin := c.Req.Header.Get("Origin")
	if origin == "" {
		return
	}
	originUrl, err := url.Parse(origin)
	if err != nil {
		return
	}
	if originUrl.Host == parsed.Host || strings.HasSuffix(originUrl.Host, "."+parsed.Hostname()) {
		res.Header().Add("Access-Control-Allow-Origin", origin)
		res.Header().Add("Vary", "Origin")
	}
}

func logContextErrors(c *RequestContext, errs ...error) {
	for _, err := range errs {
		c.Logger.Error().Timestamp().Stack().Str("Requested", c.FullUrl()).Err(err).Msg("error occurred during request")
	}
}

func logContextErrorsMiddleware(h Handler) Handler {
	return func(c *RequestContext) ResponseData {
		res := h(c)
		logContextErrors(c, res.Errors...)
		return res
	}
}
