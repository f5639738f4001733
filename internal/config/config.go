package config

import "time"

type Config struct {
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format" yaml:"log_format" validate:"oneof=text json"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
	Table           TableConfig   `mapstructure:"table" yaml:"table"`
	S3              S3Config      `mapstructure:"s3" yaml:"s3"`
	Storage         StorageConfig `mapstructure:"storage" yaml:"storage"`
	Server          ServerConfig  `mapstructure:"server" yaml:"server"`
	Refresh         RefreshConfig `mapstructure:"refresh" yaml:"refresh"`
	OTel            OTelConfig    `mapstructure:"otel" yaml:"otel"`
}

type TableConfig struct {
	Location      string `mapstructure:"location" yaml:"location"`
	CacheCapacity int    `mapstructure:"cache_capacity" yaml:"cache_capacity" validate:"gte=0"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint" validate:"omitempty,url"`
	Region          string `mapstructure:"region" yaml:"region"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
}

// StorageConfig guards the backend against overload. Zero values disable
// each guard.
type StorageConfig struct {
	RequestsPerSecond   float64       `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	Burst               int           `mapstructure:"burst" yaml:"burst" validate:"gte=0"`
	BreakerMaxFailures  int           `mapstructure:"breaker_max_failures" yaml:"breaker_max_failures" validate:"gte=0"`
	BreakerResetTimeout time.Duration `mapstructure:"breaker_reset_timeout" yaml:"breaker_reset_timeout" validate:"gte=0"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr" validate:"required,hostname_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"gt=0"`
}

// RefreshConfig controls the background reload loop of the serve command.
// An Interval of 0 disables it.
type RefreshConfig struct {
	Interval    time.Duration `mapstructure:"interval" yaml:"interval" validate:"gte=0"`
	BackoffBase time.Duration `mapstructure:"backoff_base" yaml:"backoff_base" validate:"gt=0"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap" yaml:"backoff_cap" validate:"gtefield=BackoffBase"`
}

type OTelConfig struct {
	Exporter    string  `mapstructure:"exporter" yaml:"exporter" validate:"oneof=none stdout otlp"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

func Default() Config {
	return Config{
		LogLevel:        "info",
		LogFormat:       "text",
		ShutdownTimeout: 5 * time.Second,
		S3: S3Config{
			Region: "us-east-1",
		},
		Storage: StorageConfig{
			Burst:               10,
			BreakerResetTimeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Refresh: RefreshConfig{
			Interval:    30 * time.Second,
			BackoffBase: 1 * time.Second,
			BackoffCap:  30 * time.Second,
		},
		OTel: OTelConfig{
			Exporter:    "none",
			SampleRatio: 1.0,
		},
	}
}
