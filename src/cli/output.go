package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/username/bondflow/src/models"
)

func printReport(w io.Writer, report models.BatchReport) {
	fmt.Fprintf(w, "%s run %s: %d/%d succeeded in %s\n", report.Job, report.RunID,
		report.Succeeded, report.Total, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	if !report.HasFailures() {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEC ID\tISIN\tREASON\tRETRYABLE\tERROR")
	for _, s := range report.Skipped {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n", s.SecurityID, s.ISIN, s.Reason, s.Retryable, s.Error)
	}
	tw.Flush()
}

// printYields writes quotes in the order given; top > 0 keeps only the first top rows.
func printYields(w io.Writer, quotes []models.YieldQuote, top int) {
	if top > 0 && top < len(quotes) {
		quotes = quotes[:top]
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SYMBOL\tASK\tQTY\tYIELD %\t")
	for _, q := range quotes {
		if !q.Available {
			fmt.Fprintf(tw, "%s\t-\t-\t%s\t\n", q.TradingSymbol, q.Reason)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t\n", q.TradingSymbol,
			humanize.CommafWithDigits(q.Price, 2), humanize.Comma(q.Quantity), q.YieldPercent)
	}
	tw.Flush()
}
