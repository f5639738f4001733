package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/florinutz/icelake/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate an icelake.yaml holding the default configuration",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate an icelake.yaml configuration file offline",
	Long:  `Parses and validates a YAML configuration file without touching storage. Checks structural correctness, valid enum values, and cross-field rules.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringP("output", "o", "icelake.yaml", "output file path (- for stdout)")
	configInitCmd.Flags().String("location", "s3://bucket/warehouse/db/table", "table.location to write")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	location, _ := cmd.Flags().GetString("location")

	cfg := config.Default()
	cfg.Table.Location = location
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append([]byte("# icelake configuration\n"), data...)

	if output == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		viper.SetConfigFile(args[0])
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	} else if viper.ConfigFileUsed() == "" {
		return fmt.Errorf("no config file found; specify a path or ensure icelake.yaml exists in the current directory")
	}

	cfg := config.Default()
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	location := cfg.Table.Location
	if location == "" {
		location = "(none, pass it as an argument)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config %s is valid (table: %s)\n", viper.ConfigFileUsed(), location)
	return nil
}
