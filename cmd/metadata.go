package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata [location]",
	Short: "Print the current table metadata",
	Long: `Loads the table and prints the metadata file the current version points at.
The location defaults to table.location from the config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMetadata,
}

func init() {
	metadataCmd.Flags().StringP("output", "o", "json", "output format: json, yaml")
	rootCmd.AddCommand(metadataCmd)
}

func runMetadata(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "json" && output != "yaml" {
		return fmt.Errorf("unknown output format %q (expected json, yaml)", output)
	}

	tbl, err := openTable(cmd.Context(), args)
	if err != nil {
		return err
	}
	meta, err := tbl.CurrentTableMetadata()
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), output, meta)
}

func writeOutput(w io.Writer, format string, v any) error {
	if format == "yaml" {
		data, err := toYAML(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// toYAML renders v as block-style YAML with the same keys and key order as
// its JSON encoding.
func toYAML(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("convert to yaml: %w", err)
	}
	blockStyle(&doc)
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return out, nil
}

// blockStyle drops the flow and quoting styles JSON input leaves on nodes.
// The encoder still quotes strings that would otherwise resolve to another
// type.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
