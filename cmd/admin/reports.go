package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"omechat/backend/internal/models"
)

var (
	flagStatus string
	flagLimit  int
	flagReject bool
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List reports, newest first",
	Args:  cobra.NoArgs,
	RunE:  runReports,
}

var resolveReportCmd = &cobra.Command{
	Use:   "resolve-report <report_id>",
	Short: "Mark a report as resolved (or rejected with --reject)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openModeration(cmd.Context())
		if err != nil {
			return err
		}
		if err := svc.ResolveReport(args[0], flagReject); err != nil {
			return err
		}
		status := models.ReportResolved
		if flagReject {
			status = models.ReportRejected
		}
		fmt.Printf("Report %s is now %s.\n", args[0], status)
		return nil
	},
}

func init() {
	reportsCmd.Flags().StringVar(&flagStatus, "status", string(models.ReportNew), "filter by status (empty for all)")
	reportsCmd.Flags().IntVar(&flagLimit, "limit", 50, "maximum number of reports")
	resolveReportCmd.Flags().BoolVar(&flagReject, "reject", false, "reject instead of resolve")
}

func runReports(cmd *cobra.Command, _ []string) error {
	svc, err := openModeration(cmd.Context())
	if err != nil {
		return err
	}
	reports, err := svc.ListReports(models.ReportStatus(strings.ToUpper(flagStatus)), flagLimit)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Println("No reports.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREASON\tSTATUS\tREPORTED\tCREATED")
	for _, r := range reports {
		reported := "-"
		if r.ReportedSessionID != nil {
			reported = *r.ReportedSessionID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Reason, r.Status, reported, r.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
