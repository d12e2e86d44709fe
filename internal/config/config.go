// Package config loads voxpair settings from voxpair.yaml, VOXPAIR_*
// environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/valpere/voxpair/internal/language"
	"github.com/valpere/voxpair/internal/session"
	"github.com/valpere/voxpair/internal/translator"
)

const envPrefix = "VOXPAIR"

var knownServices = map[string]bool{
	"google":         true,
	"mymemory":       true,
	"libretranslate": true,
	"llm":            true,
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// Mode is the gin mode: debug, release or test.
	Mode string `mapstructure:"mode"`
	// SessionTTL closes sessions with no turn for this long. Zero keeps them
	// until they are deleted.
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RecordingConfig struct {
	Min     time.Duration `mapstructure:"min"`
	Max     time.Duration `mapstructure:"max"`
	Default time.Duration `mapstructure:"default"`
}

type RecognizerConfig struct {
	Engine  string `mapstructure:"engine"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

type TranslationConfig struct {
	// Services lists the translation services in priority order.
	Services  []string                            `mapstructure:"services"`
	Timeout   time.Duration                       `mapstructure:"timeout"`
	Validate  bool                                `mapstructure:"validate"`
	Providers map[string]translator.ServiceConfig `mapstructure:"providers"`
}

type SynthConfig struct {
	Engine  string            `mapstructure:"engine"`
	BaseURL string            `mapstructure:"base_url"`
	Voices  map[string]string `mapstructure:"voices"`
}

type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LanguagesConfig extends the built-in language tables.
type LanguagesConfig struct {
	Pairs   []language.Pair   `mapstructure:"pairs"`
	Names   map[string]string `mapstructure:"names"`
	Aliases map[string]string `mapstructure:"aliases"`
	Speech  map[string]string `mapstructure:"speech"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Recording   RecordingConfig   `mapstructure:"recording"`
	Recognizer  RecognizerConfig  `mapstructure:"recognizer"`
	Translation TranslationConfig `mapstructure:"translation"`
	Synth       SynthConfig       `mapstructure:"synth"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Languages   LanguagesConfig   `mapstructure:"languages"`
}

// SetDefaults registers every key so environment overrides apply even
// without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.session_ttl", 30*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("recording.min", session.DefaultBounds.Min)
	v.SetDefault("recording.max", session.DefaultBounds.Max)
	v.SetDefault("recording.default", session.DefaultBounds.Default)

	v.SetDefault("recognizer.engine", "whisper")
	v.SetDefault("recognizer.base_url", "")
	v.SetDefault("recognizer.api_key", "")
	v.SetDefault("recognizer.model", "")

	v.SetDefault("translation.services", []string{"google"})
	v.SetDefault("translation.timeout", 30*time.Second)
	v.SetDefault("translation.validate", true)

	v.SetDefault("synth.engine", "gtts")
	v.SetDefault("synth.base_url", "")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", defaultCachePath())
}

func defaultCachePath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "voxpair", "memory.db")
	}
	return filepath.Join("data", "voxpair.db")
}

// Load reads cfgFile, or voxpair.yaml from the working directory or
// $HOME/.config/voxpair when cfgFile is empty. A missing default file is
// not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("voxpair")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "voxpair"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	r := c.Recording
	if r.Min <= 0 || r.Max < r.Min {
		errs = append(errs, fmt.Errorf("recording: invalid bounds [%s, %s]", r.Min, r.Max))
	} else if r.Default < r.Min || r.Default > r.Max {
		errs = append(errs, fmt.Errorf("recording: default %s outside [%s, %s]", r.Default, r.Min, r.Max))
	}

	switch c.Recognizer.Engine {
	case "whisper":
	case "openai":
		if c.Recognizer.APIKey == "" {
			errs = append(errs, fmt.Errorf("recognizer: openai engine requires api_key"))
		}
	default:
		errs = append(errs, fmt.Errorf("recognizer: unknown engine %q", c.Recognizer.Engine))
	}

	if len(c.Translation.Services) == 0 {
		errs = append(errs, fmt.Errorf("translation: no services configured"))
	}
	for _, name := range c.Translation.Services {
		if !knownServices[name] {
			errs = append(errs, fmt.Errorf("translation: unknown service %q", name))
		}
	}

	switch c.Synth.Engine {
	case "gtts":
	case "piper":
		if c.Synth.BaseURL == "" {
			errs = append(errs, fmt.Errorf("synth: piper engine requires base_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("synth: unknown engine %q", c.Synth.Engine))
	}

	if c.Server.SessionTTL < 0 {
		errs = append(errs, fmt.Errorf("server: negative session_ttl %s", c.Server.SessionTTL))
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log: unknown format %q", c.Log.Format))
	}

	if c.Cache.Enabled && c.Cache.Path == "" {
		errs = append(errs, fmt.Errorf("cache: path is required when enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) Bounds() session.Bounds {
	return session.Bounds{
		Min:     c.Recording.Min,
		Max:     c.Recording.Max,
		Default: c.Recording.Default,
	}
}

// LanguageTables converts the configured additions for language.New.
func (c *Config) LanguageTables() language.Tables {
	t := language.Tables{Pairs: c.Languages.Pairs}
	if len(c.Languages.Names) > 0 {
		t.Names = make(map[language.Code]string, len(c.Languages.Names))
		for k, v := range c.Languages.Names {
			t.Names[language.Code(k)] = v
		}
	}
	if len(c.Languages.Aliases) > 0 {
		t.Aliases = make(map[string]language.Code, len(c.Languages.Aliases))
		for k, v := range c.Languages.Aliases {
			t.Aliases[k] = language.Code(v)
		}
	}
	if len(c.Languages.Speech) > 0 {
		t.Speech = make(map[language.Code]string, len(c.Languages.Speech))
		for k, v := range c.Languages.Speech {
			t.Speech[language.Code(k)] = v
		}
	}
	return t
}

// NewLogger builds the process logger. The level was checked by Validate.
func (l LogConfig) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if l.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		logger.WithError(err).Warn("Invalid log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
