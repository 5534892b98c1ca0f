package website

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/luminagoods/site/src/archive"
	"github.com/luminagoods/site/src/config"
	"github.com/luminagoods/site/src/db"
	"github.com/luminagoods/site/src/email"
	"github.com/luminagoods/site/src/jobs"
	"github.com/luminagoods/site/src/logging"
	"github.com/luminagoods/site/src/mailqueue"
	"github.com/luminagoods/site/src/metrics"
	"github.com/luminagoods/site/src/ratelimit"
	"github.com/luminagoods/site/src/sitedata"
	"github.com/luminagoods/site/src/subscriptions"
	"github.com/luminagoods/site/src/templates"
	"github.com/spf13/cobra"
)

var WebsiteCommand = &cobra.Command{
	Use:   "site",
	Short: "Run the Lumina Goods site API",
	Run: func(cmd *cobra.Command, args []string) {
		defer logging.LogPanics(nil)
		logging.Info().Str("env", string(config.Config.Env)).Msg("Starting the Lumina Goods site")

		templates.Init()

		ctx := context.Background()
		var wg sync.WaitGroup

		var store *sitedata.Store
		conn, err := db.NewConnPool(ctx)
		if errors.Is(err, db.ErrNotConfigured) {
			logging.Warn().Msg("No database configured; form endpoints will report themselves unavailable")
		} else if err != nil {
			panic(err)
		} else {
			defer conn.Close()
			store = sitedata.New(conn)
		}

		mailer := email.NewGraphSender(config.Config.Email, nil)
		if !mailer.Configured() {
			logging.Warn().Msg("No email provider configured; emails will not be sent")
		}

		limiter := ratelimit.New(config.Config.Redis)
		defer limiter.Close()

		archiver, err := archive.New(ctx, config.Config.Archive)
		if err != nil {
			logging.Error().Err(err).Msg("Failed to set up the newsletter archive; continuing without it")
			archiver = nil
		}

		deps := NewDeps(store, mailer, limiter, archiver)

		// Start background jobs
		wg.Add(1)
		backgroundJobs := jobs.Jobs{
			mailqueue.RunWorker(deps.Queue, config.Config.MailQueue.PollInterval),
		}

		// Create HTTP server
		wg.Add(1)
		server := http.Server{
			Addr:              config.Config.Addr,
			Handler:           NewWebsiteRoutes(deps),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logging.Info().Str("addr", config.Config.Addr).Msg("Serving the site")
			serverErr := server.ListenAndServe()
			if !errors.Is(serverErr, http.ErrServerClosed) {
				logging.Error().Err(serverErr).Msg("Server shut down unexpectedly")
			}
			// The wg.Done() happens in the shutdown logic below.
		}()

		// Start up the private HTTP server for metrics and pprof. Because it uses
		// the default mux, and we import pprof, it will automatically have all
		// the pprof routes.
		http.Handle("/metrics", metrics.Handler())
		go func() {
			// We don't bother to gracefully shut this down.
			err := http.ListenAndServe(config.Config.PrivateAddr, nil)
			logging.Warn().Err(err).Msg("Private server stopped")
		}()

		// Wait for SIGINT in the background and trigger graceful shutdown
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt)
		go func() {
			<-signals // First SIGINT (start shutdown)
			logging.Info().Msg("Shutting down the site")

			const timeout = 10 * time.Second

			go func() {
				logging.Info().Msg("Shutting down background jobs...")
				unfinished := backgroundJobs.CancelAndWait(timeout)
				if len(unfinished) == 0 {
					logging.Info().Msg("Background jobs closed gracefully")
				} else {
					logging.Warn().Strs("Unfinished", unfinished).Msg("Background jobs did not finish by the deadline")
				}
				wg.Done()
			}()

			// Gracefully shut down the HTTP server
			go func() {
				timeoutCtx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				err := server.Shutdown(timeoutCtx)
				if err != nil {
					logging.Warn().Err(err).Msg("Server did not shut down gracefully")
				}
				wg.Done()
			}()

			<-signals // Second SIGINT (force quit)
			logging.Warn().Strs("Unfinished background jobs", backgroundJobs.ListUnfinished()).Msg("Forcibly killed the site")
			os.Exit(1)
		}()

		// Wait for all of the above to finish, then exit
		wg.Wait()
	},
}

/*
NewDeps wires the services around whatever is configured. store, limiter and
archiver may each be nil.

A nil *sitedata.Store has to reach the services as a nil interface, not as an
interface holding a nil pointer, or they would not notice it is missing.
*/
func NewDeps(store *sitedata.Store, mailer email.Sender, limiter *ratelimit.RedisLimiter, archiver *archive.Archive) Deps {
	var (
		subStore   subscriptions.Store
		queueStore mailqueue.Store
		autoStore  mailqueue.AutomationStore
		engagement EngagementStore
	)
	if store != nil {
		subStore, queueStore, autoStore, engagement = store, store, store, store
	}

	var arch mailqueue.Archiver
	if archiver != nil {
		arch = archiver
	}

	var lim ratelimit.Limiter
	if limiter != nil {
		lim = limiter
	}

	cfg := config.Config
	return Deps{
		Subscriptions: subscriptions.New(subStore, mailer, cfg.Email.AdminAddress),
		Automation:    mailqueue.NewAutomation(autoStore, mailer, arch),
		Queue:         mailqueue.NewBatchSender(queueStore, mailer, cfg.MailQueue),
		Engagement:    engagement,
		Mailer:        mailer,
		Limiter:       lim,

		AdminToken:   cfg.Admin.Token,
		DiagToken:    cfg.Admin.DiagToken,
		AdminAddress: cfg.Email.AdminAddress,
	}
}
