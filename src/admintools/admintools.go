// Package admintools holds the "admin" subcommands for running the mail queue
// and poking at subscribers by hand.
package admintools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/luminagoods/site/src/config"
	"github.com/luminagoods/site/src/db"
	"github.com/luminagoods/site/src/email"
	"github.com/luminagoods/site/src/mailqueue"
	"github.com/luminagoods/site/src/migration"
	"github.com/luminagoods/site/src/sitedata"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	adminCommand := &cobra.Command{
		Use:   "admin",
		Short: "Miscellaneous admin commands",
	}

	sendPendingCommand := &cobra.Command{
		Use:   "sendpending",
		Short: "Send due queued emails once, the same as the send-pending endpoint",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conn, store := mustOpenStore(ctx)
			defer conn.Close()

			sender := mailqueue.NewBatchSender(store, email.NewGraphSender(config.Config.Email, nil), config.Config.MailQueue)
			report, err := sender.SendPending(ctx)
			if err != nil {
				panic(err)
			}
			fmt.Printf("Sent %d emails, %d failed.\n", report.Sent, report.Failed)
			if report.Failed > 0 {
				os.Exit(1)
			}
		},
	}
	adminCommand.AddCommand(sendPendingCommand)

	sendTestCommand := &cobra.Command{
		Use:   "sendtest [address] [subject]",
		Short: "Send a test email through the configured provider",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 {
				fmt.Printf("You must provide an address.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			mailer := email.NewGraphSender(config.Config.Email, nil)
			automation := mailqueue.NewAutomation(nil, mailer, nil)
			_, err := automation.Run(context.Background(), mailqueue.Action{
				Action:  mailqueue.ActionSendTest,
				To:      args[0],
				Subject: strings.Join(args[1:], " "),
			})
			if errors.Is(err, email.ErrNotConfigured) {
				fmt.Printf("Email is not configured. Set the MS_GRAPH_* variables first.\n")
				os.Exit(1)
			} else if err != nil {
				panic(err)
			}
			fmt.Printf("Sent a test email to %s\n", email.NormalizeEmail(args[0]))
		},
	}
	adminCommand.AddCommand(sendTestCommand)

	statsCommand := &cobra.Command{
		Use:   "stats",
		Short: "Print subscriber and queue counts",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conn, store := mustOpenStore(ctx)
			defer conn.Close()

			stats, err := store.Stats(ctx)
			if err != nil {
				panic(err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tACTIVE\tUNSUBSCRIBED\tPENDING\tTOTAL")
			for _, c := range stats.Categories {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", c.Category, c.Active, c.Unsubscribed, c.Pending, c.Total)
			}
			w.Flush()

			fmt.Printf("\nActive subscriptions:  %d\n", stats.TotalActive)
			fmt.Printf("Contact submissions:   %d\n", stats.ContactSubmissions)
			fmt.Printf("Creator applications:  %d (%d pending)\n", stats.CreatorApplications, stats.PendingApplications)
			fmt.Printf("Comments:              %d\n", stats.Comments)
			fmt.Printf("Emails queued / sent:  %d / %d\n", stats.EmailsPending, stats.EmailsSent)
		},
	}
	adminCommand.AddCommand(statsCommand)

	adminCommand.AddCommand(migration.SeedCommand())
	addSubscriberCommands(adminCommand)

	return adminCommand
}

func mustOpenStore(ctx context.Context) (*pgxpool.Pool, *sitedata.Store) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := db.NewConnPool(connectCtx)
	if errors.Is(err, db.ErrNotConfigured) {
		fmt.Printf("No database configured. Set DATABASE_URL or the POSTGRES_* variables.\n")
		os.Exit(1)
	} else if err != nil {
		panic(err)
	}
	return conn, sitedata.New(conn)
}
