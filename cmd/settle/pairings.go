package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/clarify-app/settle/internal/cli"
	"github.com/clarify-app/settle/internal/service"
)

func pairingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pairings",
		Short: "Manage credit-card to bank-account pairings",
		Long:  `Create, list, update, and delete the pairings that link each credit card to the bank account settling its statements.`,
	}

	cmd.AddCommand(listPairingsCmd())
	cmd.AddCommand(createPairingCmd())
	cmd.AddCommand(updatePairingCmd())
	cmd.AddCommand(deletePairingCmd())

	return cmd
}

func listPairingsCmd() *cobra.Command {
	var includeInactive bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pairings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			pairings, err := store.ListPairings(ctx, includeInactive)
			if err != nil {
				return fmt.Errorf("failed to list pairings: %w", err)
			}
			if len(pairings) == 0 {
				fmt.Println(cli.InfoStyle.Render("No pairings found. Use 'settle pairings create' or 'settle autopair'."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.HeaderStyle.Render("ID"),
				cli.HeaderStyle.Render("Credit card"),
				cli.HeaderStyle.Render("Bank"),
				cli.HeaderStyle.Render("Patterns"),
				cli.HeaderStyle.Render("Active"))

			for i := range pairings {
				p := &pairings[i]
				active := cli.SuccessStyle.Render("yes")
				if !p.IsActive {
					active = cli.SubtleStyle.Render("no")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					p.ID,
					accountLabel(p.CreditCardVendor, p.CreditCardAccountNumber),
					accountLabel(p.BankVendor, p.BankAccountNumber),
					strings.Join(p.MatchPatterns, ", "),
					active)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeInactive, "all", false, "include inactive pairings")
	return cmd
}

func createPairingCmd() *cobra.Command {
	var (
		ccVendor    string
		ccAccount   string
		bankVendor  string
		bankAccount string
		patterns    []string
		txnIDs      []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pairing",
		Long: `Create a pairing between a credit card and a bank account. Match
patterns are substrings tested against bank transaction names; with
none supplied the card vendor's default repayment keywords are used.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ccAccountPtr := optionalString(ccAccount)
			if len(patterns) == 0 {
				patterns = newMatcher().BuildMatchPatterns(ccVendor, ccAccountPtr)
			}

			updates, err := store.CreatePairing(ctx, service.CreatePairingParams{
				CreditCardVendor:        ccVendor,
				CreditCardAccountNumber: ccAccountPtr,
				BankVendor:              bankVendor,
				BankAccountNumber:       optionalString(bankAccount),
				MatchPatterns:           patterns,
				SelectedTransactionIDs:  txnIDs,
			})
			if err != nil {
				return err
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Created pairing %d", updates.Pairing.ID)))
			if updates.CategorizedCount > 0 {
				fmt.Println(cli.InfoStyle.Render(fmt.Sprintf("Recategorized %d transactions", updates.CategorizedCount)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ccVendor, "cc-vendor", "", "credit card vendor (required)")
	cmd.Flags().StringVar(&ccAccount, "cc-account", "", "credit card account number")
	cmd.Flags().StringVar(&bankVendor, "bank-vendor", "", "bank vendor (required)")
	cmd.Flags().StringVar(&bankAccount, "bank-account", "", "bank account number")
	cmd.Flags().StringSliceVar(&patterns, "pattern", nil, "match pattern (repeatable)")
	cmd.Flags().StringSliceVar(&txnIDs, "categorize", nil, "transaction identifiers to recategorize as repayments/refunds")
	_ = cmd.MarkFlagRequired("cc-vendor")
	_ = cmd.MarkFlagRequired("bank-vendor")
	return cmd
}

func updatePairingCmd() *cobra.Command {
	var (
		patterns []string
		active   bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a pairing's patterns or active flag",
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

			var params service.UpdatePairingParams
			if cmd.Flags().Changed("pattern") {
				params.MatchPatterns = &patterns
			}
			if cmd.Flags().Changed("active") {
				params.IsActive = &active
			}

			if err := store.UpdatePairing(ctx, id, params); err != nil {
				return err
			}
			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Updated pairing %d", id)))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&patterns, "pattern", nil, "replace the match patterns (repeatable)")
	cmd.Flags().BoolVar(&active, "active", true, "set the active flag")
	return cmd
}

func deletePairingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a pairing",
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

			if err := store.DeletePairing(ctx, id); err != nil {
				return err
			}
			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Deleted pairing %d", id)))
			return nil
		},
	}
}

func accountLabel(vendor string, accountNumber *string) string {
	if accountNumber == nil || *accountNumber == "" {
		return vendor
	}
	return fmt.Sprintf("%s/%s", vendor, *accountNumber)
}
