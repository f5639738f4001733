package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots [location]",
	Short: "List the snapshots of the current table metadata",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSnapshots,
}

func init() {
	snapshotsCmd.Flags().Bool("json", false, "print snapshots as JSON")
	rootCmd.AddCommand(snapshotsCmd)
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	tbl, err := openTable(cmd.Context(), args)
	if err != nil {
		return err
	}
	meta, err := tbl.CurrentTableMetadata()
	if err != nil {
		return err
	}
	if asJSON {
		return writeOutput(cmd.OutOrStdout(), "json", meta.Snapshots)
	}

	current, hasCurrent := meta.CurrentSnapshot()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CURRENT\tSNAPSHOT ID\tPARENT\tTIMESTAMP\tOPERATION\tMANIFEST LIST")
	for _, s := range meta.Snapshots {
		marker := ""
		if hasCurrent && s.SnapshotID == current {
			marker = "*"
		}
		parent := "-"
		if s.ParentSnapshotID != nil {
			parent = fmt.Sprint(*s.ParentSnapshotID)
		}
		ts := time.UnixMilli(s.TimestampMS).UTC().Format(time.RFC3339)
		manifests := s.ManifestList
		if manifests == "" {
			manifests = fmt.Sprintf("(%d embedded manifests)", len(s.Manifests))
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n", marker, s.SnapshotID, parent, ts, s.Summary["operation"], manifests)
	}
	return w.Flush()
}
