package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Engine    EngineConfig    `yaml:"engine" envconfig:"ENGINE"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// EngineConfig controls how tables are read and how work is split
type EngineConfig struct {
	DefaultThreads int    `yaml:"default_threads" envconfig:"DEFAULT_THREADS" default:"1"`
	MaxThreads     int    `yaml:"max_threads" envconfig:"MAX_THREADS" default:"256"`
	Delimiter      string `yaml:"delimiter" envconfig:"DELIMITER" default:","`
	TrimSpace      bool   `yaml:"trim_space" envconfig:"TRIM_SPACE" default:"true"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"5m"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"5m"`
	// MaxBodyBytes bounds JSON request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES" default:"67108864"`
	// DataDir is the root that request paths are resolved against.
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"20"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"40"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/tabstat.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// TelemetryConfig controls tracing and metrics export
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME" default:"tabstat"`
	TracingEnabled bool    `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED" default:"false"`
	MetricsEnabled bool    `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED" default:"true"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1"`
}

// Load loads configuration from environment variables and an optional YAML
// file. configFile may be empty, in which case the usual locations are searched.
func Load(configFile string) (*Config, error) {
	var envCfg Config
	if err := envconfig.Process(EnvPrefix, &envCfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg := envCfg
	if configFile == "" {
		configFile = getConfigFilePath()
	}
	if configFile != "" {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configFile, err)
		}
		cfg = mergeConfigs(*fileCfg, envCfg, *Default())
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile reads a YAML file on top of the defaults, so keys that the
// file leaves out keep their default values.
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// pick returns env when it was moved off its default, else the file value
func pick[T comparable](file, env, def T) T {
	if env != def {
		return env
	}
	return file
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(file, env, def Config) Config {
	out := file

	out.Engine.DefaultThreads = pick(file.Engine.DefaultThreads, env.Engine.DefaultThreads, def.Engine.DefaultThreads)
	out.Engine.MaxThreads = pick(file.Engine.MaxThreads, env.Engine.MaxThreads, def.Engine.MaxThreads)
	out.Engine.Delimiter = pick(file.Engine.Delimiter, env.Engine.Delimiter, def.Engine.Delimiter)
	out.Engine.TrimSpace = pick(file.Engine.TrimSpace, env.Engine.TrimSpace, def.Engine.TrimSpace)

	out.Server.Port = pick(file.Server.Port, env.Server.Port, def.Server.Port)
	out.Server.ReadTimeout = pick(file.Server.ReadTimeout, env.Server.ReadTimeout, def.Server.ReadTimeout)
	out.Server.WriteTimeout = pick(file.Server.WriteTimeout, env.Server.WriteTimeout, def.Server.WriteTimeout)
	out.Server.IdleTimeout = pick(file.Server.IdleTimeout, env.Server.IdleTimeout, def.Server.IdleTimeout)
	out.Server.MaxHeaderBytes = pick(file.Server.MaxHeaderBytes, env.Server.MaxHeaderBytes, def.Server.MaxHeaderBytes)
	out.Server.ShutdownTimeout = pick(file.Server.ShutdownTimeout, env.Server.ShutdownTimeout, def.Server.ShutdownTimeout)
	out.Server.RequestTimeout = pick(file.Server.RequestTimeout, env.Server.RequestTimeout, def.Server.RequestTimeout)
	out.Server.MaxBodyBytes = pick(file.Server.MaxBodyBytes, env.Server.MaxBodyBytes, def.Server.MaxBodyBytes)
	out.Server.DataDir = pick(file.Server.DataDir, env.Server.DataDir, def.Server.DataDir)

	if !slices.Equal(env.Security.AllowedOrigins, def.Security.AllowedOrigins) {
		out.Security.AllowedOrigins = env.Security.AllowedOrigins
	}
	out.Security.RateLimit.Enabled = pick(file.Security.RateLimit.Enabled, env.Security.RateLimit.Enabled, def.Security.RateLimit.Enabled)
	out.Security.RateLimit.RPS = pick(file.Security.RateLimit.RPS, env.Security.RateLimit.RPS, def.Security.RateLimit.RPS)
	out.Security.RateLimit.Burst = pick(file.Security.RateLimit.Burst, env.Security.RateLimit.Burst, def.Security.RateLimit.Burst)

	out.Logging.Level = pick(file.Logging.Level, env.Logging.Level, def.Logging.Level)
	out.Logging.Format = pick(file.Logging.Format, env.Logging.Format, def.Logging.Format)
	out.Logging.Output = pick(file.Logging.Output, env.Logging.Output, def.Logging.Output)
	out.Logging.FilePath = pick(file.Logging.FilePath, env.Logging.FilePath, def.Logging.FilePath)
	out.Logging.Development = pick(file.Logging.Development, env.Logging.Development, def.Logging.Development)

	out.Telemetry.ServiceName = pick(file.Telemetry.ServiceName, env.Telemetry.ServiceName, def.Telemetry.ServiceName)
	out.Telemetry.TracingEnabled = pick(file.Telemetry.TracingEnabled, env.Telemetry.TracingEnabled, def.Telemetry.TracingEnabled)
	out.Telemetry.MetricsEnabled = pick(file.Telemetry.MetricsEnabled, env.Telemetry.MetricsEnabled, def.Telemetry.MetricsEnabled)
	out.Telemetry.SampleRatio = pick(file.Telemetry.SampleRatio, env.Telemetry.SampleRatio, def.Telemetry.SampleRatio)

	return out
}

// NormalizeDelimiter maps the spellings accepted on the command line and in
// env vars ("tab", `\t`) onto the delimiter itself.
func NormalizeDelimiter(d string) string {
	switch strings.ToLower(d) {
	case "tab", `\t`:
		return "\t"
	case "":
		return DefaultDelimiter
	}
	return d
}

// validate validates the configuration
func (c *Config) validate() error {
	c.Engine.Delimiter = NormalizeDelimiter(c.Engine.Delimiter)
	if !slices.Contains(AllowedDelimiters, c.Engine.Delimiter) {
		return fmt.Errorf("unsupported delimiter %q", c.Engine.Delimiter)
	}

	if c.Engine.DefaultThreads < 1 {
		return fmt.Errorf("default threads must be at least 1, got %d", c.Engine.DefaultThreads)
	}

	if c.Engine.MaxThreads < c.Engine.DefaultThreads {
		return fmt.Errorf("max threads (%d) below default threads (%d)", c.Engine.MaxThreads, c.Engine.DefaultThreads)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server max body bytes must be positive")
	}

	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst < 1) {
		return fmt.Errorf("rate limit needs positive rps and burst")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		c.Logging.Format = DefaultLogFormat
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("sample ratio must be within [0,1], got %g", c.Telemetry.SampleRatio)
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(ConfigFileEnv); p != "" {
		return p
	}

	locations := []string{
		DefaultConfigFile,
		filepath.Join("configs", DefaultConfigFile),
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
		Engine: EngineConfig{
			DefaultThreads: DefaultThreads,
			MaxThreads:     DefaultMaxThreads,
			Delimiter:      DefaultDelimiter,
			TrimSpace:      true,
		},
		Server: ServerConfig{
			Port:            DefaultPort,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    DefaultRequestTimeout,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: DefaultShutdownTimeout,
			RequestTimeout:  DefaultRequestTimeout,
			MaxBodyBytes:    DefaultMaxBodyBytes,
			DataDir:         "data",
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   DefaultLogOutput,
			FilePath: DefaultLogFile,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			MetricsEnabled: true,
			SampleRatio:    1,
		},
	}
}
