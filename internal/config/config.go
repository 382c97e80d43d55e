package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("passport version %s, commit %s, built at %s", version, commit, date)
}

const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 4000
	DefaultFlowTTL         = 10 * time.Minute
	DefaultCleanupInterval = time.Minute
	DefaultMaxPending      = 10000
)

// ErrInvalidConfig is returned by Validate for any configuration problem.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server     ServerConfig              `mapstructure:"server"`
	Logging    LoggingConfig             `mapstructure:"logging"`
	Flow       FlowConfig                `mapstructure:"flow"`
	Strategies map[string]StrategyConfig `mapstructure:"strategies"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// Address returns host:port for the listener.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"`
	Color             bool   `mapstructure:"color"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path"`
	AppendToFile      bool   `mapstructure:"append_to_file"`
	DisableConsole    bool   `mapstructure:"disable_console"`
}

// FlowConfig bounds the pending authorization flows kept in memory.
type FlowConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxPending      int           `mapstructure:"max_pending"`
}

// StrategyConfig describes one registered login strategy. The map key in
// Config.Strategies is the name used with Passport.Authenticate; Provider
// selects the implementation and defaults to that key.
type StrategyConfig struct {
	Provider        string   `mapstructure:"provider"` // microsoft, google, github, facebook, discord
	ClientID        string   `mapstructure:"client_id"`
	ClientSecret    string   `mapstructure:"client_secret"`
	Scopes          []string `mapstructure:"scopes"`
	RedirectURL     string   `mapstructure:"redirect_url"`
	FailureRedirect string   `mapstructure:"failure_redirect"`
	PKCE            *bool    `mapstructure:"pkce"` // nil keeps the provider default
	Tenant          string   `mapstructure:"tenant"`
	VerifyIDToken   bool     `mapstructure:"verify_id_token"`
}

// InitFlags registers command line flags on fs (without parsing)
func InitFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to the config file")
	fs.String("host", DefaultHost, "Address to listen on")
	fs.Int("port", DefaultPort, "Port to listen on")
	fs.String("log-level", "info", "Log level (debug|info|warn|error)")
}

// Load reads configuration from the config file, PASSPORT_* environment
// variables and the flags in fs, in increasing order of precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("PASSPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("flow.ttl", DefaultFlowTTL)
	v.SetDefault("flow.cleanup_interval", DefaultCleanupInterval)
	v.SetDefault("flow.max_pending", DefaultMaxPending)

	configFile := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
		for flag, key := range map[string]string{
			"host":      "server.host",
			"port":      "server.port",
			"log-level": "logging.level",
		} {
			if f := fs.Lookup(flag); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("passport")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/passport")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine, an explicit one is not
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Flow.TTL == 0 {
		c.Flow.TTL = DefaultFlowTTL
	}
	if c.Flow.CleanupInterval == 0 {
		c.Flow.CleanupInterval = DefaultCleanupInterval
	}
	if c.Flow.MaxPending == 0 {
		c.Flow.MaxPending = DefaultMaxPending
	}
	for name, s := range c.Strategies {
		if s.Provider == "" {
			s.Provider = strings.ToLower(name)
			c.Strategies[name] = s
		}
	}
}

// Validate checks the fields that must be present before strategies are built.
// URL syntax is checked by the strategy constructors.
func (c *Config) Validate() error {
	if c.Flow.TTL < 0 {
		return fmt.Errorf("%w: flow.ttl must be positive", ErrInvalidConfig)
	}
	if c.Flow.MaxPending < 0 {
		return fmt.Errorf("%w: flow.max_pending must not be negative", ErrInvalidConfig)
	}
	for name, s := range c.Strategies {
		if s.ClientID == "" {
			return fmt.Errorf("%w: strategies.%s.client_id is required", ErrInvalidConfig, name)
		}
		if s.RedirectURL == "" {
			return fmt.Errorf("%w: strategies.%s.redirect_url is required", ErrInvalidConfig, name)
		}
	}
	return nil
}
