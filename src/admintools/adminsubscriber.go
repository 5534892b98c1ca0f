package admintools

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/luminagoods/site/src/db"
	"github.com/luminagoods/site/src/email"
	"github.com/luminagoods/site/src/models"
	"github.com/luminagoods/site/src/subscriptions"
	"github.com/spf13/cobra"
)

func addSubscriberCommands(adminCommand *cobra.Command) {
	subscriberCommand := &cobra.Command{
		Use:   "subscriber",
		Short: "Admin commands for managing subscribers",
	}
	adminCommand.AddCommand(subscriberCommand)

	addUnsubscribeCommand(subscriberCommand)
	addUnsubscribeLinkCommand(subscriberCommand)
}

func parseIdentity(cmd *cobra.Command, args []string) (string, models.Category) {
	if len(args) < 2 {
		fmt.Printf("You must provide an email address and a category.\n\n")
		cmd.Usage()
		os.Exit(1)
	}

	address := email.NormalizeEmail(args[0])
	category, ok := models.ParseCategory(args[1])
	if !ok {
		fmt.Printf("Unknown category %q. Valid categories are: %v\n", args[1], models.AllCategories)
		os.Exit(1)
	}
	return address, category
}

// Handles removal requests that come in by reply instead of through the link.
func addUnsubscribeCommand(subscriberCommand *cobra.Command) {
	unsubscribeCommand := &cobra.Command{
		Use:   "unsubscribe [email] [category]",
		Short: "Unsubscribe someone from a list",
		Run: func(cmd *cobra.Command, args []string) {
			address, category := parseIdentity(cmd, args)

			ctx := context.Background()
			conn, store := mustOpenStore(ctx)
			defer conn.Close()

			sub, err := store.UnsubscribeByIdentity(ctx, address, category)
			if errors.Is(err, db.NotFound) {
				fmt.Printf("%s is not actively subscribed to %s.\n", address, category)
				os.Exit(1)
			} else if err != nil {
				panic(err)
			}

			fmt.Printf("Unsubscribed %s from %s.\n", sub.Email, sub.Category.DisplayName())
		},
	}
	subscriberCommand.AddCommand(unsubscribeCommand)
}

func addUnsubscribeLinkCommand(subscriberCommand *cobra.Command) {
	linkCommand := &cobra.Command{
		Use:   "link [email] [category]",
		Short: "Print the unsubscribe link for a subscriber",
		Run: func(cmd *cobra.Command, args []string) {
			address, category := parseIdentity(cmd, args)

			ctx := context.Background()
			conn, store := mustOpenStore(ctx)
			defer conn.Close()

			sub, err := store.FetchSubscriber(ctx, address, category)
			if errors.Is(err, db.NotFound) {
				fmt.Printf("%s has never subscribed to %s.\n", address, category)
				os.Exit(1)
			} else if err != nil {
				panic(err)
			}

			if sub.Status != models.SubscriberStatusActive {
				fmt.Printf("Note: this subscription is %s.\n", sub.Status)
			}
			fmt.Println(subscriptions.UnsubscribeUrl(sub))
		},
	}
	subscriberCommand.AddCommand(linkCommand)
}
