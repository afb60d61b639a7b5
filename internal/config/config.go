package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fallrisk/super-serial/internal/serialcfg"
)

// EnvPrefix prefixes every environment override, e.g. SUPER_SERIAL_SERVER_PORT.
const EnvPrefix = "SUPER_SERIAL"

// Config represents the application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Link        LinkConfig        `mapstructure:"link"`
	Profiles    ProfilesConfig    `mapstructure:"profiles"`
	Preferences PreferencesConfig `mapstructure:"preferences"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig represents the HTTP bridge configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// LinkConfig tunes the serial link
type LinkConfig struct {
	ReadBufferSize int                `mapstructure:"read_buffer_size"`
	PollInterval   time.Duration      `mapstructure:"poll_interval"`
	ReadWindow     time.Duration      `mapstructure:"read_window"`
	Defaults       SerialDefaultsConf `mapstructure:"defaults"`
}

// SerialDefaultsConf holds the settings used when the command line omits them.
// Parity and flow control use the single-letter codes.
type SerialDefaultsConf struct {
	Baud        int     `mapstructure:"baud"`
	DataBits    int     `mapstructure:"data_bits"`
	StopBits    float64 `mapstructure:"stop_bits"`
	Parity      string  `mapstructure:"parity"`
	FlowControl string  `mapstructure:"flow_control"`
}

// ProfilesConfig locates the connection profile file
type ProfilesConfig struct {
	Path string `mapstructure:"path"`
}

// PreferencesConfig locates the preferences file
type PreferencesConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// Load reads configuration from path, or from config.yaml in the working
// directory or ~/.super-serial when path is empty, and applies environment
// overrides. A missing default file is not an error; a missing explicit
// path is.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.super-serial")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	// defaults always decode
	_ = v.Unmarshal(&config)
	return &config
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "super-serial")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8086")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "./logs/super-serial.log")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Link defaults
	v.SetDefault("link.read_buffer_size", 4096)
	v.SetDefault("link.poll_interval", "1s")
	v.SetDefault("link.read_window", "100ms")
	v.SetDefault("link.defaults.baud", 115200)
	v.SetDefault("link.defaults.data_bits", 8)
	v.SetDefault("link.defaults.stop_bits", 1)
	v.SetDefault("link.defaults.parity", "n")
	v.SetDefault("link.defaults.flow_control", "n")

	// Profile and preference files
	v.SetDefault("profiles.path", "connections.json")
	v.SetDefault("preferences.path", "preferences.json")
	v.SetDefault("preferences.watch", true)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Profiles.Path == "" {
		return fmt.Errorf("profiles.path is required")
	}
	if config.Link.ReadBufferSize <= 0 {
		return fmt.Errorf("link.read_buffer_size must be positive")
	}
	if config.Link.PollInterval <= 0 {
		return fmt.Errorf("link.poll_interval must be positive")
	}
	if config.Link.ReadWindow <= 0 {
		return fmt.Errorf("link.read_window must be positive")
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	validFormats := []string{"json", "console"}
	if !contains(validFormats, config.Logging.Format) {
		return fmt.Errorf("logging.format must be one of: %v", validFormats)
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == "development"
}

// CLIDefaults returns the configured serial defaults as command line values.
func (l LinkConfig) CLIDefaults() serialcfg.CLIArgs {
	return serialcfg.CLIArgs{
		Baud:        l.Defaults.Baud,
		DataBits:    l.Defaults.DataBits,
		StopBits:    l.Defaults.StopBits,
		Parity:      l.Defaults.Parity,
		FlowControl: l.Defaults.FlowControl,
	}
}
