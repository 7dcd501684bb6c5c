package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all client configuration
//
//nolint:govet // Field alignment optimization would reduce readability
type Config struct {
	API           APIConfig
	State         StateConfig
	Shell         ShellConfig
	Logging       LoggingConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
}

type APIConfig struct {
	BaseURL               string
	RequestTimeoutSeconds int
	RestoreTimeoutSeconds int
	RequestsPerSecond     float64
	AppEnv                string
}

type StateConfig struct {
	Dir string
}

type ShellConfig struct {
	Addr           string
	AllowedOrigins []string
}

type LoggingConfig struct {
	Level string
	Dir   string
}

type ObservabilityConfig struct {
	ExporterEndpoint  string
	ServiceName       string
	ServiceNamespace  string
	ServiceVersion    string
	ServiceInstanceID string
}

type ProfilingConfig struct {
	Enabled               bool
	Endpoint              string
	AppName               string
	SampleTypes           string
	UploadIntervalSeconds int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("API_BASE_URL", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 0) // 0 disables the deadline
	v.SetDefault("RESTORE_TIMEOUT_SECONDS", 15)
	v.SetDefault("REQUESTS_PER_SECOND", 0) // 0 disables the throttle
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("STATE_DIR", "")
	v.SetDefault("SHELL_ADDR", ":8080")
	v.SetDefault("SHELL_ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DIR", "")
	v.SetDefault("O11Y_EXPORTER_ENDPOINT", "")
	v.SetDefault("O11Y_SERVICE_NAME", "educonnect-client")
	v.SetDefault("O11Y_SERVICE_NAMESPACE", "educonnect")
	v.SetDefault("O11Y_SERVICE_VERSION", "1.0.0")
	v.SetDefault("O11Y_PROFILING_ENABLED", false)
	v.SetDefault("O11Y_PROFILING_APP_NAME", "educonnect-client")
	v.SetDefault("O11Y_PROFILING_SAMPLE_TYPES", "cpu,alloc_space,alloc_objects,goroutines,mutex,block")
	v.SetDefault("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS", 15)

	// Automatically read environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	_ = v.ReadInConfig() //nolint:errcheck // Ignore error if .env file doesn't exist

	// Parse allowed shell origins (comma-separated)
	allowedOrigins := []string{}
	originsStr := v.GetString("SHELL_ALLOWED_ORIGINS")
	if originsStr != "" {
		for _, origin := range strings.Split(originsStr, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins = append(allowedOrigins, origin)
			}
		}
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL:               NormalizeBaseURL(v.GetString("API_BASE_URL")),
			RequestTimeoutSeconds: v.GetInt("REQUEST_TIMEOUT_SECONDS"),
			RestoreTimeoutSeconds: v.GetInt("RESTORE_TIMEOUT_SECONDS"),
			RequestsPerSecond:     v.GetFloat64("REQUESTS_PER_SECOND"),
			AppEnv:                v.GetString("APP_ENV"),
		},
		State: StateConfig{
			Dir: v.GetString("STATE_DIR"),
		},
		Shell: ShellConfig{
			Addr:           v.GetString("SHELL_ADDR"),
			AllowedOrigins: allowedOrigins,
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
			Dir:   v.GetString("LOG_DIR"),
		},
		Observability: ObservabilityConfig{
			ExporterEndpoint:  v.GetString("O11Y_EXPORTER_ENDPOINT"),
			ServiceName:       v.GetString("O11Y_SERVICE_NAME"),
			ServiceNamespace:  v.GetString("O11Y_SERVICE_NAMESPACE"),
			ServiceVersion:    v.GetString("O11Y_SERVICE_VERSION"),
			ServiceInstanceID: v.GetString("SERVICE_INSTANCE_ID"),
		},
		Profiling: ProfilingConfig{
			Enabled:               v.GetBool("O11Y_PROFILING_ENABLED"),
			Endpoint:              v.GetString("O11Y_PROFILING_ENDPOINT"),
			AppName:               v.GetString("O11Y_PROFILING_APP_NAME"),
			SampleTypes:           v.GetString("O11Y_PROFILING_SAMPLE_TYPES"),
			UploadIntervalSeconds: v.GetInt("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NormalizeBaseURL applies the API origin conventions: a missing scheme gets
// https:// prefixed, trailing slashes are stripped.
func NormalizeBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return base
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return strings.TrimRight(base, "/")
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}

	if c.API.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must not be negative")
	}
	if c.API.RestoreTimeoutSeconds < 0 {
		return fmt.Errorf("RESTORE_TIMEOUT_SECONDS must not be negative")
	}

	if c.Shell.Addr == "" {
		return fmt.Errorf("SHELL_ADDR is required")
	}

	if c.Profiling.Enabled && c.Profiling.Endpoint == "" {
		return fmt.Errorf("O11Y_PROFILING_ENDPOINT is required when profiling is enabled")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.API.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.API.AppEnv == "production"
}
