package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/tim-schneider/nexsync/reconcile"
	"github.com/tim-schneider/nexsync/yamlutil"
)

// renderReport prints one row per reconciled item plus a totals line. The
// report is rendered the same way for plans and applies; the dry-run
// marker on the totals line is the only difference.
func renderReport(writer io.Writer, report *reconcile.Report) {
	rows := make([][]string, 0)
	totals := reconcile.Summary{}

	for _, result := range report.Types {
		switch {
		case result.Skipped:
			rows = append(rows, []string{result.ResourceType, "-", "skipped", result.SkipReason})
			continue
		case result.Err != nil:
			rows = append(rows, []string{result.ResourceType, "-", "failed", result.Err.Error()})
			continue
		}

		for _, item := range result.Items {
			rows = append(rows, itemRow(result.ResourceType, item))
		}

		summary := result.Summary()
		totals.Created += summary.Created
		totals.Updated += summary.Updated
		totals.Deleted += summary.Deleted
		totals.Unchanged += summary.Unchanged
		totals.Failed += summary.Failed
	}

	if len(rows) > 0 {
		printTable(writer, []string{"type", "item", "action", "details"}, rows)
	}

	suffix := ""
	if report.DryRun {
		suffix = " (dry run)"
	}
	fmt.Fprintf(writer, "%d created, %d updated, %d deleted, %d unchanged, %d failed%s\n",
		totals.Created, totals.Updated, totals.Deleted, totals.Unchanged, totals.Failed, suffix)
}

func itemRow(resourceType string, item reconcile.ItemResult) []string {
	if item.Err != nil {
		return []string{resourceType, item.NaturalKey, "failed", item.Err.Error()}
	}

	details := ""
	if len(item.ChangedPaths) > 0 {
		details = strings.Join(item.ChangedPaths, ", ")
	}
	return []string{resourceType, item.NaturalKey, string(item.Action), details}
}

// renderDesiredDocuments prints the full canonical document for every
// pending create and update, one YAML block per item.
func renderDesiredDocuments(writer io.Writer, report *reconcile.Report) error {
	for _, result := range report.Types {
		for _, item := range result.Items {
			if item.Err != nil || len(item.Desired) == 0 {
				continue
			}
			rendered, err := yamlutil.MarshalDoc(item.Desired)
			if err != nil {
				return err
			}
			fmt.Fprintf(writer, "\n# %s/%s (%s)\n%s", result.ResourceType, item.NaturalKey, item.Action, rendered)
		}
	}
	return nil
}

func printTable(writer io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(writer)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}
