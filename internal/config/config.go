package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"nsecli/pkg/contracts/domain"
)

// Config is the complete application configuration. Values are loaded from
// an optional YAML file and overridden by NSE_-prefixed environment
// variables.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Provider ProviderConfig `yaml:"provider" envconfig:"PROVIDER"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
	Drive    DriveConfig    `yaml:"drive" envconfig:"DRIVE"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15m"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" default:"100"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" default:"50"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/nsecli.log"`
}

// PathsConfig contains file system layout configuration. Relative paths are
// resolved against the working directory at load time.
type PathsConfig struct {
	DataDir      string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	CacheDir     string `yaml:"cache_dir" envconfig:"CACHE_DIR" default:"data/cache"`
	AveragesDir  string `yaml:"averages_dir" envconfig:"AVERAGES_DIR" default:"data/averages"`
	ArtifactsDir string `yaml:"artifacts_dir" envconfig:"ARTIFACTS_DIR" default:"data/artifacts"`
	LogsDir      string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// ProviderConfig configures the NSE remote data provider client.
type ProviderConfig struct {
	BaseURL        string        `yaml:"base_url" envconfig:"BASE_URL" default:"https://www.nseindia.com"`
	UserAgent      string        `yaml:"user_agent" envconfig:"USER_AGENT" default:"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"`
	Timeout        time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"30s"`
	RequestsPerSec float64       `yaml:"requests_per_sec" envconfig:"REQUESTS_PER_SEC" default:"5"`
	Burst          int           `yaml:"burst" envconfig:"BURST" default:"1"`
}

// PipelineConfig contains tunables for the acquisition and dashboard stages.
type PipelineConfig struct {
	PreviewRows         int `yaml:"preview_rows" envconfig:"PREVIEW_ROWS" default:"10"`
	DefaultBatchSize    int `yaml:"default_batch_size" envconfig:"DEFAULT_BATCH_SIZE" default:"50"`
	MaxDashboardSymbols int `yaml:"max_dashboard_symbols" envconfig:"MAX_DASHBOARD_SYMBOLS" default:"500"`
	// Holidays lists non-trading weekdays as YYYY-MM-DD strings. Weekends
	// are always excluded regardless of this list.
	Holidays []string `yaml:"holidays" envconfig:"HOLIDAYS"`
}

// DriveConfig configures the optional Google Drive artifact upload.
type DriveConfig struct {
	Enabled         bool   `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE" default:"credentials.json"`
	FolderName      string `yaml:"folder_name" envconfig:"FOLDER_NAME" default:"Automation"`
}

// Load loads configuration from the optional config file and environment.
// Environment variables take precedence over file values.
func Load() (*Config, error) {
	return LoadFrom(configFilePath())
}

// LoadFrom loads configuration using the given YAML file path. A missing
// file is not an error; defaults plus environment apply.
func LoadFrom(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("NSE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// EnsureDirectories creates every configured directory that does not exist.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DataDir,
		c.Paths.CacheDir,
		c.Paths.AveragesDir,
		c.Paths.ArtifactsDir,
		c.Paths.LogsDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// HolidaySet returns the configured holiday list as a lookup set keyed by
// YYYY-MM-DD. Malformed entries are rejected at load time by validate.
func (c *Config) HolidaySet() map[string]bool {
	set := make(map[string]bool, len(c.Pipeline.Holidays))
	for _, h := range c.Pipeline.Holidays {
		set[h] = true
	}
	return set
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	if c.Provider.RequestsPerSec <= 0 {
		return fmt.Errorf("provider requests_per_sec must be positive")
	}
	if c.Pipeline.PreviewRows < 1 {
		return fmt.Errorf("preview_rows must be at least 1")
	}
	for _, h := range c.Pipeline.Holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return fmt.Errorf("invalid holiday date %q: %w", h, err)
		}
	}
	return nil
}

// CachedFilename returns the canonical cache file name for a (date, kind)
// pair, matching the exchange's own naming: mcapDDMMYYYY.csv / prDDMMYYYY.csv.
func CachedFilename(date time.Time, kind domain.DataKind) string {
	return fmt.Sprintf("%s%s.csv", kind, date.Format("02012006"))
}

func configFilePath() string {
	if p := os.Getenv("NSE_CONFIG_FILE"); p != "" {
		return p
	}
	return filepath.Join(".", "config.yaml")
}
