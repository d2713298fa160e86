package main

import (
	"github.com/spf13/cobra"

	"github.com/imrishuroy/pharmacy-orderflow/internal/recommend"
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Inspect and progress orders as an administrator",
}

// pharmactl order get <id>
var orderGetCmd = &cobra.Command{
	Use:   "get <order-id>",
	Short: "Print an order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		o, err := a.Tracker.GetOrder(cmd.Context(), operator, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), o)
	},
}

// pharmactl order assign <id> <delivery-person-id>
var orderAssignCmd = &cobra.Command{
	Use:   "assign <order-id> <delivery-person-id>",
	Short: "Assign a delivery person to an order",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		o, err := a.Tracker.AssignDeliveryPerson(cmd.Context(), operator, args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), o)
	},
}

var orderOTP string

// pharmactl order status <id> <status> [--otp 123456]
var orderStatusCmd = &cobra.Command{
	Use:   "status <order-id> <status>",
	Short: "Move an order to a new status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		o, err := a.Tracker.UpdateOrderStatus(cmd.Context(), operator, args[0], args[1], orderOTP)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), o)
	},
}

var recommendFlags struct {
	limit         int
	preferCheaper bool
}

// pharmactl alternatives <item-id>
var alternativesCmd = &cobra.Command{
	Use:   "alternatives <item-id>",
	Short: "List items similar to a catalog item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		opts := recommend.AlternativeOptions()
		opts.PreferCheaper = recommendFlags.preferCheaper
		if recommendFlags.limit > 0 {
			opts.MaxResults = recommendFlags.limit
		}
		res, err := a.Recommender.Alternatives(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

// pharmactl recommend <user-id>
var recommendCmd = &cobra.Command{
	Use:   "recommend <user-id>",
	Short: "List personalised recommendations for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		opts := recommend.RecommendationOptions()
		opts.PreferCheaper = recommendFlags.preferCheaper
		if recommendFlags.limit > 0 {
			opts.MaxResults = recommendFlags.limit
		}
		res, err := a.Recommender.ForUser(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	orderStatusCmd.Flags().StringVar(&orderOTP, "otp", "", "delivery OTP, required for delivered")
	orderCmd.AddCommand(orderGetCmd, orderAssignCmd, orderStatusCmd)

	for _, c := range []*cobra.Command{alternativesCmd, recommendCmd} {
		c.Flags().IntVar(&recommendFlags.limit, "limit", 0, "maximum number of results")
		c.Flags().BoolVar(&recommendFlags.preferCheaper, "prefer-cheaper", true, "break score ties by lower price")
	}
}
