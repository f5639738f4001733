package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/florinutz/icelake"
	"github.com/florinutz/icelake/internal/config"
	"github.com/florinutz/icelake/tracing"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "icelake",
	Short: "Read Apache Iceberg tables from a local directory or S3",
	Long: `icelake resolves the current metadata version of an Iceberg table, follows
its current snapshot through the manifest list and manifests, and reports the
data files it finds. It can also serve the table state over HTTP and keep it
fresh in the background.

Locations are s3://bucket/prefix URIs or local directories (optionally as
file:// URIs).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger()
	},
	SilenceUsage: true,
}

// Execute is called by main.go and is the entry point for the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default: ./icelake.yaml)")
	f.String("log-level", "info", "log level: debug, info, warn, error")
	f.String("log-format", "text", "log format: text, json")
	f.Int("cache-capacity", 0, "metadata versions kept in memory (0 = unbounded)")
	f.String("s3-endpoint", "", "S3-compatible endpoint URL (env: ICELAKE_S3_ENDPOINT)")
	f.String("s3-region", "us-east-1", "S3 region (env: ICELAKE_S3_REGION)")

	mustBindPFlag("log_level", f.Lookup("log-level"))
	mustBindPFlag("log_format", f.Lookup("log-format"))
	mustBindPFlag("table.cache_capacity", f.Lookup("cache-capacity"))
	mustBindPFlag("s3.endpoint", f.Lookup("s3-endpoint"))
	mustBindPFlag("s3.region", f.Lookup("s3-region"))

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("icelake")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("ICELAKE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Only warn if a config file was explicitly specified but could not be read.
			if cfgFile != "" {
				fmt.Fprintf(os.Stderr, "Warning: could not read config file: %v\n", err)
			}
		}
	}
}

func setupLogger() error {
	level := viper.GetString("log_level")
	format := viper.GetString("log_format")

	var slogLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return fmt.Errorf("unknown log level: %q (expected debug, info, warn, error)", level)
	}

	opts := &slog.HandlerOptions{Level: slogLevel}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format: %q (expected text, json)", format)
	}

	slog.SetDefault(slog.New(tracing.NewLogHandler(handler)))
	return nil
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("viper.BindPFlag(%q): %v", key, err))
	}
}

// loadConfig merges defaults, config file, env and flags. A positional
// location argument overrides table.location.
func loadConfig(args []string) (config.Config, error) {
	cfg := config.Default()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if len(args) > 0 {
		cfg.Table.Location = args[0]
	}
	if err := cfg.ValidateLocation(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func tableOptions(cfg config.Config) []icelake.Option {
	return []icelake.Option{
		icelake.WithLogger(slog.Default()),
		icelake.WithCacheCapacity(cfg.Table.CacheCapacity),
		icelake.WithS3Config(icelake.S3Config(cfg.S3)),
		icelake.WithRateLimit(cfg.Storage.RequestsPerSecond, cfg.Storage.Burst),
		icelake.WithCircuitBreaker(cfg.Storage.BreakerMaxFailures, cfg.Storage.BreakerResetTimeout),
	}
}

// openTable loads the table named by args or config.
func openTable(ctx context.Context, args []string) (*icelake.Table, error) {
	cfg, err := loadConfig(args)
	if err != nil {
		return nil, err
	}
	return icelake.Open(ctx, cfg.Table.Location, tableOptions(cfg)...)
}
