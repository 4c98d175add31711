package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/clarify-app/settle/internal/cli"
)

func discrepancyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discrepancy",
		Short: "Compute and resolve repayment discrepancies",
		Long: `Compare each billing cycle's bank repayments against the card
statement total and resolve what doesn't line up: ignore a cycle,
record the gap as a fee, or acknowledge the whole report.`,
	}

	cmd.AddCommand(computeDiscrepancyCmd())
	cmd.AddCommand(ignoreCycleCmd())
	cmd.AddCommand(addFeeCmd())
	cmd.AddCommand(acknowledgeCmd())

	return cmd
}

func computeDiscrepancyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compute <pairing-id>",
		Short: "Compute the discrepancy report for a pairing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid pairing id %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			report, err := newResolver(store).Compute(ctx, id)
			if err != nil {
				return err
			}

			cli.RenderDiscrepancyReport(os.Stdout, id, report)
			return nil
		},
	}
}

func ignoreCycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ignore-cycle <pairing-id> <cycle-date>",
		Short: "Suppress one cycle from future reports",
		Long: `Mark one billing cycle as resolved so it stops contributing to the
pairing's aggregate discrepancy. The cycle stays visible in reports.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid pairing id %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := newResolver(store).IgnoreCycle(ctx, id, args[1]); err != nil {
				return err
			}
			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Cycle %s ignored for pairing %d", args[1], id)))
			return nil
		},
	}
}

func addFeeCmd() *cobra.Command {
	var feeName string

	cmd := &cobra.Command{
		Use:   "add-fee <pairing-id> <cycle-date> <amount>",
		Short: "Record a cycle's unexplained gap as a fee",
		Long: `Create a synthetic fee transaction on the card side covering the gap
between what the bank collected and what the card billed. The next
compute sees the cycle as matched.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid pairing id %q", args[0])
			}
			amount, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[2])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := newResolver(store).AddFeeForCycle(ctx, id, args[1], amount, feeName); err != nil {
				return err
			}
			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Recorded %s fee for cycle %s", amount.StringFixed(2), args[1])))
			return nil
		},
	}

	cmd.Flags().StringVar(&feeName, "name", "", "fee transaction name (required)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func acknowledgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "acknowledge <pairing-id>",
		Short: "Acknowledge a pairing's discrepancy report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid pairing id %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := newResolver(store).Acknowledge(ctx, id); err != nil {
				return err
			}
			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Acknowledged discrepancies for pairing %d", id)))
			return nil
		},
	}
}
