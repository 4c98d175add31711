package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/clarify-app/settle/internal/model"
)

// RenderDiscrepancyReport writes a human-readable cycle-by-cycle view of
// a discrepancy report.
func RenderDiscrepancyReport(w io.Writer, pairingID int64, report *model.DiscrepancyReport) {
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Discrepancy report for pairing %d", pairingID)))

	if len(report.Cycles) == 0 {
		fmt.Fprintln(w, InfoStyle.Render("No bank repayments matched this pairing's patterns yet."))
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		HeaderStyle.Render("Cycle"),
		HeaderStyle.Render("Bank net"),
		HeaderStyle.Render("Card total"),
		HeaderStyle.Render("Difference"),
		HeaderStyle.Render("Status"))
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		strings.Repeat("-", 10),
		strings.Repeat("-", 10),
		strings.Repeat("-", 10),
		strings.Repeat("-", 10),
		strings.Repeat("-", 18))

	for i := range report.Cycles {
		cycle := &report.Cycles[i]

		ccTotal := "-"
		if cycle.CCTotal != nil {
			ccTotal = cycle.CCTotal.StringFixed(2)
		}
		difference := "-"
		if cycle.Difference != nil {
			difference = cycle.Difference.StringFixed(2)
		}

		status := string(cycle.Status)
		if cycle.Resolved {
			status += " (ignored)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			cycle.CycleDate,
			cycle.BankNetTotal().StringFixed(2),
			ccTotal,
			difference,
			statusStyle(cycle.Status, cycle.Resolved).Render(status))
	}
	_ = tw.Flush()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Bank repayments: %s  Card expenses: %s  Difference: %s (%s%%)\n",
		report.TotalBankRepayments.StringFixed(2),
		report.TotalCCExpenses.StringFixed(2),
		report.Difference.StringFixed(2),
		report.DifferencePercentage.StringFixed(2))

	switch {
	case !report.Exists:
		fmt.Fprintln(w, SuccessStyle.Render("All comparable cycles reconcile."))
	case report.Acknowledged:
		fmt.Fprintln(w, SubtleStyle.Render(fmt.Sprintf("Discrepancy acknowledged (%s).", report.Reason)))
	default:
		fmt.Fprintln(w, WarningStyle.Render(fmt.Sprintf("Unresolved discrepancy: %s.", report.Reason)))
	}
}

func statusStyle(status model.CycleStatus, resolved bool) lipgloss.Style {
	if resolved {
		return SubtleStyle
	}
	switch status {
	case model.CycleMatched:
		return SuccessStyle
	case model.CycleLargeDiscrepancy, model.CycleCCOverBank:
		return ErrorStyle
	case model.CycleFeeCandidate, model.CycleMissingCCCycle:
		return WarningStyle
	}
	return SubtleStyle
}
