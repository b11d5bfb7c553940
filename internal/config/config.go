package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load
const EnvPrefix = "BMDSCREEN"

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Screening ScreeningConfig `yaml:"screening" envconfig:"SCREENING"`
	Input     InputConfig     `yaml:"input" envconfig:"INPUT"`
	Output    OutputConfig    `yaml:"output" envconfig:"OUTPUT"`
	Store     StoreConfig     `yaml:"store" envconfig:"STORE"`
	Blob      BlobConfig      `yaml:"blob" envconfig:"BLOB"`
	ModelFit  ModelFitConfig  `yaml:"model_fit" envconfig:"MODELFIT"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format      string `yaml:"format" validate:"oneof=json text"`
	Output      string `yaml:"output" validate:"oneof=console file both"`
	FilePath    string `yaml:"file_path" split_words:"true"`
	Development bool   `yaml:"development"`
}

// ScreeningConfig selects the endpoint catalogue and classifier policy
type ScreeningConfig struct {
	Variant           string        `yaml:"variant" validate:"oneof=standard brai dnc"`
	TrendStrategy     string        `yaml:"trend_strategy" validate:"oneof=average_pair spearman" split_words:"true"`
	BucketTable       string        `yaml:"bucket_table" validate:"oneof=three_bucket four_bucket" split_words:"true"`
	ZeroControlPolicy string        `yaml:"zero_control_policy" validate:"oneof=retain exclude" split_words:"true"`
	Endpoints         []string      `yaml:"endpoints"`
	Workers           int           `yaml:"workers" validate:"min=1,max=256"`
	UnitTimeout       time.Duration `yaml:"unit_timeout" validate:"gt=0" split_words:"true"`
}

// InputConfig describes the master well-observation table
type InputConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format" validate:"oneof=auto csv xlsx"`
	Sheet  string `yaml:"sheet"`
}

// OutputConfig controls the batch report files
type OutputConfig struct {
	Dir       string `yaml:"dir" validate:"required"`
	WriteXLSX bool   `yaml:"write_xlsx"`
}

// StoreConfig selects the SQL result store
type StoreConfig struct {
	Driver string `yaml:"driver" validate:"oneof=none sqlite pgx"`
	DSN    string `yaml:"dsn" validate:"required_unless=Driver none"`
}

// BlobConfig selects where report artifacts are published after a run
type BlobConfig struct {
	Driver    string `yaml:"driver" validate:"oneof=none fs s3"`
	Dir       string `yaml:"dir" validate:"required_if=Driver fs"`
	Bucket    string `yaml:"bucket" validate:"required_if=Driver s3"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style" split_words:"true"`
	Prefix    string `yaml:"prefix"`
	// Optional static key pair; the default AWS chain is used when empty
	AccessKeyID     string `yaml:"access_key_id" split_words:"true"`
	SecretAccessKey string `yaml:"secret_access_key" split_words:"true" validate:"required_with=AccessKeyID"`
}

// ModelFitConfig configures the external model-fitting executable
type ModelFitConfig struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// ServerConfig contains the results API configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0" split_words:"true"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" validate:"gt=0" split_words:"true"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" validate:"min=1" split_words:"true"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	TraceExporter  string  `yaml:"trace_exporter" validate:"oneof=none stdout" split_words:"true"`
	MetricExporter string  `yaml:"metric_exporter" validate:"oneof=none prometheus" split_words:"true"`
	SampleRatio    float64 `yaml:"sample_ratio" validate:"min=0,max=1" split_words:"true"`
	Environment    string  `yaml:"environment"`
}

// Load resolves configuration from defaults, an optional YAML file and the
// environment. An empty path falls back to the well-known file locations.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Only variables that are actually set override file values
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML values onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks struct constraints and normalises logging settings
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/bmdscreen.log"
	}

	return nil
}

// Paths derives the report layout from the output section
func (c *Config) Paths() (*Paths, error) {
	return NewPaths(c.Output.Dir)
}

// getConfigFilePath returns the first well-known config file that exists
func getConfigFilePath() string {
	locations := []string{
		"bmdscreen.yaml",
		"configs/bmdscreen.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/bmdscreen.log",
		},
		Screening: ScreeningConfig{
			Variant:           "standard",
			TrendStrategy:     "average_pair",
			BucketTable:       "four_bucket",
			ZeroControlPolicy: "retain",
			Workers:           4,
			UnitTimeout:       2 * time.Minute,
		},
		Input: InputConfig{
			Format: "auto",
		},
		Output: OutputConfig{
			Dir:       "output",
			WriteXLSX: true,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "output/results.db",
		},
		Blob: BlobConfig{
			Driver: "none",
		},
		ModelFit: ModelFitConfig{
			Timeout: 5 * time.Minute,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPS:    100,
			RateLimitBurst:  50,
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
			Environment:    "development",
		},
	}
}
