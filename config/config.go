// Package config loads cnpjscraper settings from defaults, an optional
// YAML file, a .env file, environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"cnpjscraper/logger"
	"cnpjscraper/snapshot"
)

// EnvPrefix namespaces environment variables, e.g. CNPJSCRAPER_OUTPUT_DIR.
const EnvPrefix = "CNPJSCRAPER"

// Config is the full application configuration.
type Config struct {
	// CNPJ is the identifier to look up when none is given as an argument.
	CNPJ     string         `mapstructure:"cnpj"`
	Portal   PortalConfig   `mapstructure:"portal"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Output   OutputConfig   `mapstructure:"output"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      logger.Config  `mapstructure:"log"`
}

// PortalConfig describes the lookup page.
type PortalConfig struct {
	URL            string `mapstructure:"url"`
	InputSelector  string `mapstructure:"input_selector"`
	UserAgent      string `mapstructure:"user_agent"`
	Locale         string `mapstructure:"locale"`
	AcceptLanguage string `mapstructure:"accept_language"`
}

// BrowserConfig controls the Chrome session.
type BrowserConfig struct {
	ProfileDir string `mapstructure:"profile_dir"`
	ExecPath   string `mapstructure:"exec_path"`
	// ChallengeTimeout bounds the wait for the operator. Zero waits forever.
	ChallengeTimeout time.Duration `mapstructure:"challenge_timeout"`
}

// OutputConfig controls where records go.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
	// Strict rejects records with missing labels instead of saving them.
	Strict bool `mapstructure:"strict"`
}

// SnapshotConfig controls raw page snapshots.
type SnapshotConfig struct {
	Mode string `mapstructure:"mode"`
	// Dir defaults to Output.Dir.
	Dir string `mapstructure:"dir"`
}

// CacheConfig configures the optional Redis record cache.
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// ServerConfig configures the record server.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// Default values.
const (
	DefaultPortalURL     = "https://solucoes.receita.fazenda.gov.br/servicos/cnpjreva/cnpjreva_solicitacao.asp"
	DefaultInputSelector = "#cnpj"
	DefaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"
	DefaultProfileDir    = "./user_data"
	DefaultOutputDir     = "CNPJ_extraidos"
	DefaultCacheTTL      = 24 * time.Hour
	DefaultServerPort    = "8000"
)

// SetDefaults registers every key with its default so environment
// variables are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("cnpj", "")

	v.SetDefault("portal.url", DefaultPortalURL)
	v.SetDefault("portal.input_selector", DefaultInputSelector)
	v.SetDefault("portal.user_agent", DefaultUserAgent)
	v.SetDefault("portal.locale", DefaultLocale)
	v.SetDefault("portal.accept_language", "")

	v.SetDefault("browser.profile_dir", DefaultProfileDir)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.challenge_timeout", time.Duration(0))

	v.SetDefault("output.dir", DefaultOutputDir)
	v.SetDefault("output.strict", false)

	v.SetDefault("snapshot.mode", string(snapshot.ModeNone))
	v.SetDefault("snapshot.dir", "")

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", DefaultCacheTTL)

	v.SetDefault("server.port", DefaultServerPort)

	v.SetDefault("log.level", logger.DefaultLevel)
	v.SetDefault("log.development", true)
	v.SetDefault("log.output_paths", []string{"stderr"})
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// a bare CNPJ variable is accepted too
	_ = v.BindEnv("cnpj", EnvPrefix+"_CNPJ", "CNPJ")
	return v
}

// ReadInConfig loads .env and the YAML config file into v. A missing
// config file is not an error when cfgFile is empty.
func ReadInConfig(v *viper.Viper, cfgFile string) error {
	_ = godotenv.Load()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDerived() {
	if c.Portal.AcceptLanguage == "" {
		if header, ok := Locales[c.Portal.Locale]; ok {
			c.Portal.AcceptLanguage = header
		} else {
			c.Portal.AcceptLanguage = Locales[DefaultLocale]
		}
	}
	if c.Snapshot.Dir == "" {
		c.Snapshot.Dir = c.Output.Dir
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Portal.URL == "":
		return errors.New("portal.url is required")
	case c.Portal.InputSelector == "":
		return errors.New("portal.input_selector is required")
	case strings.TrimSpace(c.Portal.UserAgent) == "":
		return errors.New("portal.user_agent is required")
	case c.Browser.ProfileDir == "":
		return errors.New("browser.profile_dir is required")
	case c.Output.Dir == "":
		return errors.New("output.dir is required")
	case c.Browser.ChallengeTimeout < 0:
		return errors.New("browser.challenge_timeout must not be negative")
	}
	if _, err := snapshot.ParseMode(c.Snapshot.Mode); err != nil {
		return fmt.Errorf("snapshot.mode: %w", err)
	}
	return nil
}
