package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/realtime-nav-crawler/internal/crawler"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the crawl cursor and stored observations per entity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			store := appInstance.Store()
			report, err := crawler.BuildReport(cmd.Context(), store, store, appInstance.Entities())
			if err != nil {
				return fmt.Errorf("build status report: %w", err)
			}
			return printReport(cmd, report)
		},
	}
}

func printReport(cmd *cobra.Command, report crawler.Report) error {
	out := cmd.OutOrStdout()
	switch cur := report.Cursor; {
	case cur == nil:
		fmt.Fprintln(out, "cursor: none (next crawl starts at the first entity)")
	case cur.Status == crawler.StatusCompleted:
		fmt.Fprintf(out, "cursor: completed at %s (next crawl restarts)\n", cur.UpdatedAt.Format("2006-01-02 15:04:05"))
	default:
		fmt.Fprintf(out, "cursor: %s %s page %d (entity %d/%d, updated %s)\n",
			cur.EntityID, cur.EntityName, cur.Page, cur.EntityIndex+1, cur.TotalEntities,
			cur.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tROWS\tLATEST")
	for _, ent := range report.Entities {
		latest := ent.LatestDate
		if latest == "" {
			latest = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", ent.ID, ent.Name, ent.Observations, latest)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	fmt.Fprintf(out, "total observations: %d\n", report.TotalObservations)
	return nil
}
