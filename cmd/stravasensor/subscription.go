package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"example.com/stravasensor/internal/config"
)

var subscriptionCmd = &cobra.Command{
	Use:   "subscription",
	Short: "Manage the Strava push subscription",
}

var subscriptionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create (or re-attach to) the push subscription for the configured callback URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := newSubscriptionManager(config.Load())
		id, err := manager.EnsureSubscription(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("subscription %d active, verify token %s\n", id, manager.VerifyToken())
		return nil
	},
}

var subscriptionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the application's push subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := newSubscriptionManager(config.Load())
		subscriptions, err := manager.ListSubscriptions(cmd.Context())
		if err != nil {
			return err
		}
		if len(subscriptions) == 0 {
			fmt.Println("no subscriptions")
			return nil
		}
		for _, sub := range subscriptions {
			fmt.Printf("%d\t%s\t%s\n", sub.ID, sub.CallbackURL, sub.CreatedAt)
		}
		return nil
	},
}

var subscriptionDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one push subscription by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid subscription id %q", args[0])
		}
		manager := newSubscriptionManager(config.Load())
		if err := manager.DeleteSubscriptionByID(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("deleted subscription %d\n", id)
		return nil
	},
}

var subscriptionDeleteAllCmd = &cobra.Command{
	Use:   "delete-all",
	Short: "Delete every push subscription of the application",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := newSubscriptionManager(config.Load())
		subscriptions, err := manager.ListSubscriptions(cmd.Context())
		if err != nil {
			return err
		}
		for _, sub := range subscriptions {
			if err := manager.DeleteSubscriptionByID(cmd.Context(), sub.ID); err != nil {
				return err
			}
			fmt.Printf("deleted subscription %d\n", sub.ID)
		}
		return nil
	},
}

func init() {
	subscriptionCmd.AddCommand(subscriptionCreateCmd, subscriptionListCmd, subscriptionDeleteCmd, subscriptionDeleteAllCmd)
}
