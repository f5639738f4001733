package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/florinutz/icelake/iceberg"
	"github.com/florinutz/icelake/internal/safegoroutine"
)

type verifyResult struct {
	path    string
	status  string
	message string
}

var verifyCmd = &cobra.Command{
	Use:   "verify [location]",
	Short: "Check every data file of the current snapshot against its manifest entry",
	Long: `Reads each data file of the current snapshot and compares the row count in
its Parquet footer with the record_count recorded in the manifest. Files in
other formats are skipped. Exits non-zero when a file is missing or a count
does not match.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().Int("concurrency", 4, "data files read in parallel")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency < 1 {
		concurrency = 1
	}

	tbl, err := openTable(cmd.Context(), args)
	if err != nil {
		return err
	}
	files, err := tbl.CurrentDataFiles(cmd.Context())
	if err != nil {
		return err
	}

	results := make([]verifyResult, len(files))
	g, ctx := safegoroutine.WithContext(cmd.Context(), slog.Default())
	g.SetLimit(concurrency)
	for i, f := range files {
		g.Go("verify", func() error {
			rel, err := tbl.RelPath(f.FilePath)
			if err != nil {
				rel = f.FilePath
			}
			results[i] = verifyResult{path: rel}
			if !strings.EqualFold(f.FileFormat, "parquet") {
				results[i].status = "SKIP"
				results[i].message = "format " + f.FileFormat
				return nil
			}
			data, err := tbl.ReadFile(ctx, f.FilePath)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				results[i].status = "FAIL"
				results[i].message = err.Error()
				return nil
			}
			rows, err := iceberg.ParquetRowCount(data)
			switch {
			case err != nil:
				results[i].status = "FAIL"
				results[i].message = err.Error()
			case rows != f.RecordCount:
				results[i].status = "FAIL"
				results[i].message = fmt.Sprintf("footer has %d rows, manifest says %d", rows, f.RecordCount)
			default:
				results[i].status = "OK"
				results[i].message = fmt.Sprintf("%d rows", rows)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATUS\tPATH\tDETAIL")
	for _, r := range results {
		if r.status == "FAIL" {
			failed++
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.status, r.path, r.message)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("verify: %d of %d data files failed", failed, len(files))
	}
	return nil
}
