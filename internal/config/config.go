package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of every configuration environment variable.
const EnvPrefix = "GADEV"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Site     SiteConfig     `yaml:"site" envconfig:"SITE"`
	Google   GoogleConfig   `yaml:"google" envconfig:"GOOGLE"`
	Bitly    BitlyConfig    `yaml:"bitly" envconfig:"BITLY"`
	Export   ExportConfig   `yaml:"export" envconfig:"EXPORT"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"60s"`
	// ServerName is compared against the site host to pick the environment.
	ServerName string `yaml:"server_name" envconfig:"SERVER_NAME" default:"localhost"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// SiteConfig locates the site metadata and page templates.
type SiteConfig struct {
	MetaFile       string `yaml:"meta_file" envconfig:"META_FILE" default:"web/meta.yaml"`
	TemplatesDir   string `yaml:"templates_dir" envconfig:"TEMPLATES_DIR" default:"web/templates"`
	CacheTemplates bool   `yaml:"cache_templates" envconfig:"CACHE_TEMPLATES" default:"true"`
}

// GoogleConfig holds the Google API endpoints and credentials.
type GoogleConfig struct {
	ReportingURL       string        `yaml:"reporting_url" envconfig:"REPORTING_URL" default:"https://www.googleapis.com/analytics/v3/data/ga"`
	MetadataURL        string        `yaml:"metadata_url" envconfig:"METADATA_URL" default:"https://www.googleapis.com/analytics/v3/metadata/ga/columns"`
	CubesURL           string        `yaml:"cubes_url" envconfig:"CUBES_URL"`
	ServiceAccountFile string        `yaml:"service_account_file" envconfig:"SERVICE_ACCOUNT_FILE"`
	Scopes             []string      `yaml:"scopes" envconfig:"SCOPES" default:"https://www.googleapis.com/auth/analytics.readonly"`
	TokenExpirySkew    time.Duration `yaml:"token_expiry_skew" envconfig:"TOKEN_EXPIRY_SKEW" default:"60s"`
	CacheTTL           time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL" default:"1h"`
	RequestTimeout     time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"30s"`
}

// BitlyConfig holds the bit.ly OAuth application settings.
type BitlyConfig struct {
	ClientID     string `yaml:"client_id" envconfig:"CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" envconfig:"CLIENT_SECRET"`
	// BaseURI is the public site origin; the redirect URI is BaseURI + "/bitly-auth".
	BaseURI                string `yaml:"base_uri" envconfig:"BASE_URI" default:"http://localhost:8080"`
	IntegrationRedirectURI string `yaml:"integration_redirect_uri" envconfig:"INTEGRATION_REDIRECT_URI" default:"https://ga-dev-tools-integration.web.app/bitly-auth"`
	AuthURL                string `yaml:"auth_url" envconfig:"AUTH_URL" default:"https://bitly.com/oauth/authorize"`
	TokenURL               string `yaml:"token_url" envconfig:"TOKEN_URL" default:"https://api-ssl.bitly.com/oauth/access_token"`
}

// RedirectURI returns the bit.ly OAuth callback registered for this site.
func (b BitlyConfig) RedirectURI() string {
	return strings.TrimRight(b.BaseURI, "/") + "/bitly-auth"
}

// Enabled reports whether bit.ly credentials are configured.
func (b BitlyConfig) Enabled() bool {
	return b.ClientID != "" && b.ClientSecret != ""
}

// ExportConfig holds defaults for report downloads.
type ExportConfig struct {
	Encoding     string `yaml:"encoding" envconfig:"ENCODING" default:"utf-16le"`
	Filename     string `yaml:"filename" envconfig:"FILENAME" default:"query_explorer"`
	StrictTotals bool   `yaml:"strict_totals" envconfig:"STRICT_TOTALS" default:"false"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES" default:"10485760"`
}

// Load loads configuration from environment variables and an optional
// config file. Environment variables take precedence over the file, which
// takes precedence over the defaults.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if configFile := getConfigFilePath(); configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configFile, err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	paths, err := GetPaths()
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(paths)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs overlays values set in the file onto envConfig wherever
// envConfig still holds the default. A variable explicitly set to its
// default value therefore loses to the file.
func mergeConfigs(fileConfig, envConfig Config) Config {
	merged := envConfig
	overlay(reflect.ValueOf(&merged).Elem(), reflect.ValueOf(Default()).Elem(), reflect.ValueOf(fileConfig))
	return merged
}

func overlay(dst, def, file reflect.Value) {
	for i := 0; i < dst.NumField(); i++ {
		d, df, f := dst.Field(i), def.Field(i), file.Field(i)
		if d.Kind() == reflect.Struct {
			overlay(d, df, f)
			continue
		}
		if f.IsZero() {
			continue
		}
		if reflect.DeepEqual(d.Interface(), df.Interface()) {
			d.Set(f)
		}
	}
}

// resolvePaths anchors relative site and log paths.
func (c *Config) resolvePaths(paths *Paths) {
	c.Site.MetaFile = paths.Resolve(c.Site.MetaFile)
	c.Site.TemplatesDir = paths.Resolve(c.Site.TemplatesDir)
	if c.Logging.Output != "console" {
		c.Logging.FilePath = paths.Resolve(c.Logging.FilePath)
	}
	if c.Google.ServiceAccountFile != "" {
		c.Google.ServiceAccountFile = paths.Resolve(c.Google.ServiceAccountFile)
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		return fmt.Errorf("invalid logging output: %q", c.Logging.Output)
	}

	// Logs are always JSON.
	c.Logging.Format = "json"

	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	if c.Site.MetaFile == "" {
		return fmt.Errorf("site meta file must be specified")
	}

	if c.Google.ReportingURL == "" {
		return fmt.Errorf("google reporting url must be specified")
	}

	if c.Google.CacheTTL <= 0 {
		return fmt.Errorf("google cache ttl must be positive")
	}

	if c.Google.TokenExpirySkew < 0 {
		return fmt.Errorf("google token expiry skew must not be negative")
	}

	if (c.Bitly.ClientID == "") != (c.Bitly.ClientSecret == "") {
		return fmt.Errorf("bitly client id and secret must be set together")
	}

	if c.Export.Filename == "" {
		c.Export.Filename = "query_explorer"
	}

	if c.Export.MaxBodyBytes <= 0 {
		return fmt.Errorf("export max body bytes must be positive")
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}

	// Check for config file in common locations
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,
			ServerName:      "localhost",
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Site: SiteConfig{
			MetaFile:       "web/meta.yaml",
			TemplatesDir:   "web/templates",
			CacheTemplates: true,
		},
		Google: GoogleConfig{
			ReportingURL:    "https://www.googleapis.com/analytics/v3/data/ga",
			MetadataURL:     "https://www.googleapis.com/analytics/v3/metadata/ga/columns",
			Scopes:          []string{"https://www.googleapis.com/auth/analytics.readonly"},
			TokenExpirySkew: 60 * time.Second,
			CacheTTL:        time.Hour,
			RequestTimeout:  30 * time.Second,
		},
		Bitly: BitlyConfig{
			BaseURI:                "http://localhost:8080",
			IntegrationRedirectURI: "https://ga-dev-tools-integration.web.app/bitly-auth",
			AuthURL:                "https://bitly.com/oauth/authorize",
			TokenURL:               "https://api-ssl.bitly.com/oauth/access_token",
		},
		Export: ExportConfig{
			Encoding:     "utf-16le",
			Filename:     "query_explorer",
			MaxBodyBytes: 10 << 20,
		},
	}
}
