package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (e.g. CHEMSTOCK_API_BASE_URL)
const EnvPrefix = "CHEMSTOCK"

// Config holds all application configuration
type Config struct {
	App     AppConfig
	API     APIConfig
	Session SessionConfig
	Log     LogConfig
	UI      UIConfig
	Storage StorageConfig
	Metrics MetricsConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Env     string
	Profile string // name of the saved session, allows several API accounts side by side
}

// APIConfig holds settings of the remote inventory API
type APIConfig struct {
	BaseURL         string // scheme://host[:port] without the /api suffix
	Timeout         time.Duration
	RateLimit       float64 // requests per second, 0 = unlimited
	RateBurst       int
	CoalesceRefresh bool // share one refresh between concurrent 401s
	UserAgent       string
}

// SessionConfig selects where tokens are persisted
type SessionConfig struct {
	Backend string // file, redis, memory
	Path    string
	Redis   RedisConfig
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// UIConfig holds terminal presentation settings
type UIConfig struct {
	Debounce time.Duration
	Output   string // table, json, yaml
}

// StorageConfig holds S3-compatible object storage settings used for archiving
// uploaded daily reports and exported spreadsheets
type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
	Prefix       string
}

// MetricsConfig holds prometheus settings
type MetricsConfig struct {
	Textfile string // node-exporter textfile collector target, empty = disabled
}

// Load loads configuration without command-line overrides.
func Load(configFile string) (*Config, error) {
	return LoadWithFlags(configFile, nil)
}

// LoadWithFlags loads configuration from TOML file, environment variables and flags
// Priority (highest to lowest):
// 1. Flags that were explicitly set
// 2. Environment variables with CHEMSTOCK_ prefix (e.g., CHEMSTOCK_API_BASE_URL)
// 3. chemstock.toml
// 4. Built-in defaults
func LoadWithFlags(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("chemstock")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "chemstock"))
		}
		v.AddConfigPath("/etc/chemstock")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		App: AppConfig{
			Env:     v.GetString("app.env"),
			Profile: v.GetString("app.profile"),
		},
		API: APIConfig{
			BaseURL:         v.GetString("api.base_url"),
			Timeout:         v.GetDuration("api.timeout"),
			RateLimit:       v.GetFloat64("api.rate_limit"),
			RateBurst:       v.GetInt("api.rate_burst"),
			CoalesceRefresh: v.GetBool("api.coalesce_refresh"),
			UserAgent:       v.GetString("api.user_agent"),
		},
		Session: SessionConfig{
			Backend: v.GetString("session.backend"),
			Path:    v.GetString("session.path"),
			Redis: RedisConfig{
				Host:     v.GetString("session.redis.host"),
				Port:     v.GetInt("session.redis.port"),
				Password: v.GetString("session.redis.password"),
				DB:       v.GetInt("session.redis.db"),
			},
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		UI: UIConfig{
			Debounce: v.GetDuration("ui.debounce"),
			Output:   v.GetString("ui.output"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("storage.enabled"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
			Prefix:       v.GetString("storage.prefix"),
		},
		Metrics: MetricsConfig{
			Textfile: v.GetString("metrics.textfile"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// flagKeys maps command-line flag names to config keys
var flagKeys = map[string]string{
	"env":       "app.env",
	"profile":   "app.profile",
	"base-url":  "api.base_url",
	"timeout":   "api.timeout",
	"output":    "ui.output",
	"debounce":  "ui.debounce",
	"log-level": "log.level",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Profile == "" {
		cfg.App.Profile = "default"
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = inferBaseURL(net.InterfaceAddrs)
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 30 * time.Second
	}
	if cfg.API.RateLimit > 0 && cfg.API.RateBurst == 0 {
		cfg.API.RateBurst = 1
	}
	if cfg.API.UserAgent == "" {
		cfg.API.UserAgent = "chemctl/1.0"
	}
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "file"
	}
	if cfg.Session.Path == "" {
		cfg.Session.Path = defaultSessionPath(cfg.App.Profile)
	}
	if cfg.Session.Redis.Host == "" {
		cfg.Session.Redis.Host = "localhost"
	}
	if cfg.Session.Redis.Port == 0 {
		cfg.Session.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		// stdout is reserved for command output
		cfg.Log.Output = "stderr"
	}
	if cfg.UI.Debounce == 0 {
		cfg.UI.Debounce = 500 * time.Millisecond
	}
	if cfg.UI.Output == "" {
		cfg.UI.Output = "table"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "chemstock"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https, got %q", c.API.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("api.base_url must include a host, got %q", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout cannot be negative")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit cannot be negative")
	}

	switch c.Session.Backend {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("session.backend must be one of file, redis, memory, got %q", c.Session.Backend)
	}

	switch c.UI.Output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("ui.output must be one of table, json, yaml, got %q", c.UI.Output)
	}

	if c.Storage.Enabled {
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required when storage is enabled")
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return fmt.Errorf("storage.access_key and storage.secret_key are required when storage is enabled")
		}
	}

	// Production-specific validations
	if c.App.Env == "production" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url must use https in production")
	}

	return nil
}

// APIRoot returns the prefix of resource endpoints ("<base>/api")
func (a *APIConfig) APIRoot() string {
	return a.BaseURL + "/api"
}

// Addr returns the Redis address in host:port form
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// defaultSessionPath returns $XDG_CONFIG_HOME/chemstock/<profile>.session.json
func defaultSessionPath(profile string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chemstock", profile+".session.json")
}

// inferBaseURL guesses the API origin from the host's own network address,
// the way the web build derived it from the page origin. The API listens on 8000.
func inferBaseURL(addrs func() ([]net.Addr, error)) string {
	const fallback = "http://localhost:8000"

	list, err := addrs()
	if err != nil {
		return fallback
	}
	for _, a := range list {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return "http://" + ip4.String() + ":8000"
		}
	}
	return fallback
}
