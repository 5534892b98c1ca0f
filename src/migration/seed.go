package migration

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	lorem "github.com/HandmadeNetwork/golorem"
	"github.com/jackc/pgx/v5"
	"github.com/luminagoods/site/src/db"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/oops"
	"github.com/luminagoods/site/src/tokens"
	"github.com/spf13/cobra"
)

// SeedCommand is registered under "admin".
func SeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [subscribers per category]",
		Short: "Migrate to the latest version and fill the database with sample data for local development",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 10
			if len(args) > 0 {
				var err error
				n, err = strconv.Atoi(args[0])
				if err != nil {
					return oops.New(err, "subscriber count must be a number")
				}
			}

			ctx := cmd.Context()
			conn, err := db.NewConn(ctx)
			if err != nil {
				return err
			}
			defer conn.Close(ctx)

			if err := Migrate(ctx, conn, LatestVersion(), cmd.OutOrStdout()); err != nil {
				return err
			}
			return SampleSeed(ctx, conn, n)
		},
	}
}

// SampleSeed inserts fake subscribers, submissions, comments and a few queued emails.
func SampleSeed(ctx context.Context, conn db.ConnOrTx, perCategory int) error {
	return db.Tx(ctx, conn, func(tx pgx.Tx) error {
		fmt.Println("Creating subscribers...")
		for _, category := range models.AllCategories {
			for i := 0; i < perCategory; i++ {
				status := models.SubscriberStatusActive
				if randomBool() && randomBool() {
					status = models.SubscriberStatusUnsubscribed
				}
				var token *string
				if status == models.SubscriberStatusActive {
					t := tokens.NewOpaque()
					token = &t
				}
				_, err := tx.Exec(ctx,
					`
					INSERT INTO subscribers (email, category, status, name, unsubscribe_token)
					VALUES ($1, $2, $3, $4, $5)
					ON CONFLICT (email, category) DO NOTHING
					`,
					seedEmail(i), category, status, randomName(), token,
				)
				if err != nil {
					return oops.New(err, "failed to seed subscriber")
				}
			}
		}

		fmt.Println("Creating contact submissions and creator applications...")
		for i := 0; i < perCategory; i++ {
			_, err := tx.Exec(ctx,
				`INSERT INTO contact_submissions (name, email, message) VALUES ($1, $2, $3)`,
				randomName(), seedEmail(i), lorem.Paragraph(1, 3),
			)
			if err != nil {
				return oops.New(err, "failed to seed contact submission")
			}

			_, err = tx.Exec(ctx,
				`
				INSERT INTO creator_applications (name, email, portfolio, message, preferred_contact_times)
				VALUES ($1, $2, $3, $4, $5)
				`,
				randomName(), seedEmail(i), "https://portfolio.example.com/"+lorem.Word(4, 10), lorem.Paragraph(1, 2),
				[]string{models.ContactTimeSlots[rand.Intn(len(models.ContactTimeSlots))]},
			)
			if err != nil {
				return oops.New(err, "failed to seed creator application")
			}
		}

		fmt.Println("Creating comments and reactions...")
		for _, slug := range []string{"spring-collection", "behind-the-kiln", "auction-recap"} {
			for i := 0; i < rand.Intn(6)+1; i++ {
				_, err := tx.Exec(ctx,
					`INSERT INTO comments (post_slug, name, email, body) VALUES ($1, $2, $3, $4)`,
					slug, randomName(), seedEmail(i), lorem.Sentence(4, 20),
				)
				if err != nil {
					return oops.New(err, "failed to seed comment")
				}
			}
			for _, reaction := range models.Reactions {
				_, err := tx.Exec(ctx,
					`INSERT INTO reactions (post_slug, reaction, visitor_hash) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
					slug, reaction, "seed-"+strconv.Itoa(rand.Intn(1000)),
				)
				if err != nil {
					return oops.New(err, "failed to seed reaction")
				}
			}
		}

		fmt.Println("Queueing sample emails...")
		for i := 0; i < 3; i++ {
			_, err := tx.Exec(ctx,
				`
				INSERT INTO scheduled_emails (recipient_email, subject, html_content, scheduled_for, email_type)
				VALUES ($1, $2, $3, $4, $5)
				`,
				seedEmail(i), lorem.Sentence(3, 6), "<p>"+lorem.Paragraph(1, 2)+"</p>",
				time.Now().Add(time.Duration(i)*time.Hour), models.EmailTypeCustom,
			)
			if err != nil {
				return oops.New(err, "failed to seed scheduled email")
			}
		}

		fmt.Println("Done!")
		return nil
	})
}

func seedEmail(i int) string {
	return fmt.Sprintf("%s%d@example.com", lorem.Word(3, 8), i)
}

var firstNames = []string{"Ada", "Bea", "Cyrus", "Dana", "Elio", "Fern", "Gus", "Hana"}
var lastNames = []string{"Marsh", "Okafor", "Lindqvist", "Reyes", "Tanaka", "Moreau"}

func randomName() string {
	return firstNames[rand.Intn(len(firstNames))] + " " + lastNames[rand.Intn(len(lastNames))]
}

func randomBool() bool {
	return rand.Intn(2) == 1
}
