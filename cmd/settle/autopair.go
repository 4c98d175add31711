package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clarify-app/settle/internal/autopair"
	"github.com/clarify-app/settle/internal/cli"
)

func autopairCmd() *cobra.Command {
	var (
		ccVendor      string
		ccAccount     string
		computeReport bool
		categorize    bool
	)

	cmd := &cobra.Command{
		Use:   "autopair",
		Short: "Find the settlement account for a card and pair them",
		Long: `Rank every known bank account by how strongly its repayment
transactions point at the given card and, when one clears the
confidence threshold, create the pairing. An existing pairing for the
same accounts counts as success.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			orchestrator := autopair.NewOrchestrator(store, newMatcher(), newResolver(store))
			if threshold := viper.GetFloat64("autopair.threshold"); threshold > 0 {
				orchestrator = orchestrator.WithThreshold(threshold)
			}

			result, err := orchestrator.AutoPair(ctx, autopair.Params{
				CreditCardVendor:        ccVendor,
				CreditCardAccountNumber: optionalString(ccAccount),
				ComputeReport:           computeReport,
				CategorizeMatches:       categorize,
			})
			if err != nil {
				return err
			}

			if !result.Success {
				fmt.Println(cli.WarningStyle.Render(fmt.Sprintf("No pairing created: %s", result.Reason)))
				return nil
			}

			if result.WasCreated {
				fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Created pairing %d (confidence %.2f)", result.PairingID, result.Confidence)))
				if result.CategorizedCount > 0 {
					fmt.Println(cli.InfoStyle.Render(fmt.Sprintf("Recategorized %d repayment transactions", result.CategorizedCount)))
				}
			} else {
				fmt.Println(cli.InfoStyle.Render(fmt.Sprintf("Pairing %d already exists", result.PairingID)))
			}

			if result.Report != nil {
				fmt.Println()
				cli.RenderDiscrepancyReport(os.Stdout, result.PairingID, result.Report)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ccVendor, "cc-vendor", "", "credit card vendor (required)")
	cmd.Flags().StringVar(&ccAccount, "cc-account", "", "credit card account number")
	cmd.Flags().BoolVar(&computeReport, "report", false, "compute the discrepancy report after pairing")
	cmd.Flags().BoolVar(&categorize, "categorize", false, "recategorize the matched bank transactions as repayments/refunds")
	_ = cmd.MarkFlagRequired("cc-vendor")
	return cmd
}
