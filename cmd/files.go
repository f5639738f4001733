package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var filesCmd = &cobra.Command{
	Use:   "files [location]",
	Short: "List the data files of the current snapshot",
	Long: `Walks the manifest list and manifests of the current snapshot and prints one
line per data file, in manifest order. Paths are shown relative to the table
location.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFiles,
}

func init() {
	filesCmd.Flags().Bool("json", false, "print one JSON object per data file")
	rootCmd.AddCommand(filesCmd)
}

func runFiles(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	tbl, err := openTable(cmd.Context(), args)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		for f, err := range tbl.DataFiles(cmd.Context()) {
			if err != nil {
				return err
			}
			if err := enc.Encode(f); err != nil {
				return err
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PATH\tFORMAT\tRECORDS\tSIZE")
	var count, records int64
	for f, err := range tbl.DataFiles(cmd.Context()) {
		if err != nil {
			_ = w.Flush()
			return err
		}
		rel, err := tbl.RelPath(f.FilePath)
		if err != nil {
			rel = f.FilePath
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", rel, f.FileFormat, f.RecordCount, f.FileSizeBytes)
		count++
		records += f.RecordCount
	}
	_, _ = fmt.Fprintf(w, "\n%d files\t\t%d\t\n", count, records)
	return w.Flush()
}
