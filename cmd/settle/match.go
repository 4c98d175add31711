package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/clarify-app/settle/internal/cli"
	"github.com/clarify-app/settle/internal/model"
)

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match account names and repayments",
	}

	cmd.AddCommand(detectTypeCmd())
	cmd.AddCommand(matchAccountCmd())
	cmd.AddCommand(matchExpensesCmd())

	return cmd
}

func detectTypeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect-type <account-name>",
		Short: "Guess an account's type from its name",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			detected := newMatcher().DetectAccountType(args[0])
			if detected == nil {
				fmt.Println(cli.WarningStyle.Render("No account type recognized"))
				return nil
			}
			fmt.Println(cli.SuccessStyle.Render(string(*detected)))
			return nil
		},
	}
}

func matchAccountCmd() *cobra.Command {
	var accountType string

	cmd := &cobra.Command{
		Use:   "account <account-name>",
		Short: "Score an account name against the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			result := newMatcher().MatchAccount(args[0], model.AccountType(accountType))

			verdict := cli.WarningStyle.Render("no match")
			if result.Match {
				verdict = cli.SuccessStyle.Render("match")
			}
			pattern := ""
			if result.Pattern != nil {
				pattern = *result.Pattern
			}
			fmt.Printf("%s  confidence=%.2f  type=%s  pattern=%q\n",
				verdict, result.Confidence, result.MatchType, pattern)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountType, "type", "bank", "account type to score against (bank, creditCard, pension, savings, investment)")
	return cmd
}

func matchExpensesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expenses",
		Short: "Attribute card expenses to the repayments covering them",
		Long: `For every active pairing, walk its bank repayments chronologically
and record which card expenses each one covers. Already-covered
expenses are never reused.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			pairings, err := store.ListPairings(ctx, false)
			if err != nil {
				return fmt.Errorf("failed to list pairings: %w", err)
			}
			if len(pairings) == 0 {
				fmt.Println(cli.InfoStyle.Render("No active pairings to match."))
				return nil
			}

			resolver := newResolver(store)
			bar := progressbar.Default(int64(len(pairings)), "Matching expenses")

			var total int
			for i := range pairings {
				matches, matchErr := resolver.RunExpenseMatching(ctx, pairings[i].ID)
				if matchErr != nil {
					return matchErr
				}
				total += len(matches)
				_ = bar.Add(1)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Recorded %d expense matches across %d pairings", total, len(pairings))))
			return nil
		},
	}
}
