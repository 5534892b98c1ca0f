package website

import (
	"errors"
	"os"
	"sort"

	"github.com/luminagoods/site/src/config"
	"github.com/luminagoods/site/src/mailqueue"
)

func (h *handlers) EmailAutomation(c *RequestContext) ResponseData {
	var act mailqueue.Action
	if res := readBody(c, &act, nil); res != nil {
		return *res
	}

	result, err := h.Automation.Run(c, act)
	if errors.Is(err, mailqueue.ErrUnknownAction) {
		return badRequest("Unknown action")
	} else if err != nil {
		return c.ErrorResponse(err)
	}

	c.Logger.Info().Str("action", act.Action).Msg("Ran email automation")
	return apiSuccess("", result)
}

// SendPending is hit by the external scheduler, usually once a minute.
func (h *handlers) SendPending(c *RequestContext) ResponseData {
	report, err := h.Queue.SendPending(c)
	if err != nil {
		return c.ErrorResponse(NewSafeError(err, "Failed to send pending emails"))
	}
	return apiSuccess("", report)
}

func (h *handlers) DashboardStats(c *RequestContext) ResponseData {
	stats, err := h.Automation.Run(c, mailqueue.Action{Action: mailqueue.ActionGetStats})
	if err != nil {
		return c.ErrorResponse(NewSafeError(err, "Failed to load dashboard stats"))
	}
	return apiSuccess("", stats)
}

type envEntry struct {
	Name string `json:"name"`
	Set  bool   `json:"set"`
}

type diagReport struct {
	Env      config.Environment `json:"env"`
	Services map[string]bool    `json:"services"`
	Vars     []envEntry         `json:"vars"`
}

// Only whether each variable is set is reported, never its value.
var diagVars = []string{
	"SITE_BASE_URL",
	"DATABASE_URL",
	"POSTGRES_HOST",
	"MS_GRAPH_TENANT_ID",
	"MS_GRAPH_CLIENT_ID",
	"MS_GRAPH_CLIENT_SECRET",
	"MS_GRAPH_SENDER",
	"EMAIL_ADMIN_ADDRESS",
	"EMAIL_FORCE_TO",
	"ADMIN_TOKEN",
	"REDIS_ADDR",
	"ARCHIVE_S3_BUCKET",
}

func (h *handlers) DiagEnv(c *RequestContext) ResponseData {
	report := diagReport{
		Env: config.Config.Env,
		Services: map[string]bool{
			"database": config.Config.Postgres.Configured(),
			"email":    config.Config.Email.Configured(),
			"redis":    config.Config.Redis.Configured(),
			"archive":  config.Config.Archive.Configured(),
			"admin":    h.AdminToken != "",
		},
	}

	names := append([]string{}, diagVars...)
	sort.Strings(names)
	for _, name := range names {
		_, set := os.LookupEnv(name)
		report.Vars = append(report.Vars, envEntry{Name: name, Set: set})
	}

	return apiSuccess("", report)
}
