// Package config merges command-line flags, VIDSRT_* environment
// variables, an optional .env file and an optional config file into one
// validated Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "VIDSRT"

const (
	DefaultProvider      = "openai"
	DefaultLanguage      = "en"
	DefaultTask          = "transcribe"
	DefaultChunkDuration = 10 * time.Minute
	DefaultConcurrency   = 3
	DefaultFormat        = "srt"
	DefaultRevealPause   = 200 * time.Millisecond
	DefaultAddr          = ":8501"
	DefaultMaxUploadSize = 512 << 20
)

type Config struct {
	Provider   string `mapstructure:"provider" validate:"required,oneof=openai gemini whisper"`
	APIKey     string `mapstructure:"api-key"`
	Model      string `mapstructure:"model"`
	Language   string `mapstructure:"language" validate:"required,min=2,max=8"`
	Task       string `mapstructure:"task" validate:"required,oneof=transcribe translate"`
	Prompt     string `mapstructure:"prompt"`
	WhisperURL string `mapstructure:"whisper-url" validate:"omitempty,url"`

	ChunkDuration time.Duration `mapstructure:"chunk-duration" validate:"gte=0"`
	Concurrency   int           `mapstructure:"concurrency" validate:"min=1,max=32"`
	Format        string        `mapstructure:"format" validate:"required,oneof=srt vtt"`
	RevealPause   time.Duration `mapstructure:"reveal-pause" validate:"gte=0"`

	TranslateTo       string `mapstructure:"translate-to"`
	TranslateProvider string `mapstructure:"translate-provider" validate:"omitempty,oneof=openai gemini anthropic"`
	TranslateModel    string `mapstructure:"translate-model"`
	TranslateAPIKey   string `mapstructure:"translate-api-key"`

	Addr          string   `mapstructure:"addr" validate:"required"`
	MaxUploadSize int64    `mapstructure:"max-upload-size" validate:"gt=0"`
	CORSOrigins   []string `mapstructure:"cors-origins"`
	TempDir       string   `mapstructure:"temp-dir" validate:"omitempty,dir"`

	Verbose bool `mapstructure:"verbose"`
}

var defaults = map[string]any{
	"provider":           DefaultProvider,
	"api-key":            "",
	"model":              "",
	"language":           DefaultLanguage,
	"task":               DefaultTask,
	"prompt":             "",
	"whisper-url":        "",
	"chunk-duration":     DefaultChunkDuration,
	"concurrency":        DefaultConcurrency,
	"format":             DefaultFormat,
	"reveal-pause":       DefaultRevealPause,
	"translate-to":       "",
	"translate-provider": "",
	"translate-model":    "",
	"translate-api-key":  "",
	"addr":               DefaultAddr,
	"max-upload-size":    DefaultMaxUploadSize,
	"cors-origins":       []string{},
	"temp-dir":           "",
	"verbose":            false,
}

// where to look besides flags and the process environment
type LoadOptions struct {
	ConfigFile string // yaml, toml or json; empty skips
	EnvFile    string // empty means ".env" when present
}

// Load builds a Config. Precedence, highest first: changed flags,
// environment, config file, defaults.
func Load(opts LoadOptions, flagSets ...*pflag.FlagSet) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	}

	for _, fs := range flagSets {
		if fs == nil {
			continue
		}
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.normalize()
	cfg.APIKey = ResolveAPIKey(cfg.Provider, cfg.APIKey)
	if cfg.TranslateProvider != "" {
		cfg.TranslateAPIKey = ResolveAPIKey(cfg.TranslateProvider, cfg.TranslateAPIKey)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// an explicit path must exist; the default .env is optional
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.Task = strings.ToLower(strings.TrimSpace(c.Task))
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	c.TranslateProvider = strings.ToLower(strings.TrimSpace(c.TranslateProvider))

	// "a, b" from env or flags arrives as one element
	var origins []string
	for _, o := range c.CORSOrigins {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				origins = append(origins, part)
			}
		}
	}
	c.CORSOrigins = origins
}

// environment fallbacks for each provider's API key
var apiKeyEnv = map[string][]string{
	"openai":    {"OPENAI_API_KEY"},
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
}

// returns explicit if set, otherwise the provider's conventional env var
func ResolveAPIKey(provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range apiKeyEnv[strings.ToLower(provider)] {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

var validate = newValidator()

// reports fields by their config key
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
	})
	return v
}

// checks field constraints; provider specific checks live in
// RequireTranscriber and RequireTranslator
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fe.Field()+" "+describe(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
}

// checks what transcription needs beyond field constraints
func (c *Config) RequireTranscriber() error {
	if c.Provider != "whisper" && c.APIKey == "" {
		return fmt.Errorf("%s API key is required: use --api-key or set %s", c.Provider, apiKeyHint(c.Provider))
	}
	return nil
}

// checks what translation needs; ok is false when translation is off
func (c *Config) RequireTranslator() (ok bool, err error) {
	if c.TranslateTo == "" {
		return false, nil
	}
	if c.TranslateProvider == "" {
		return false, fmt.Errorf("--translate-provider is required with --translate-to")
	}
	if c.TranslateAPIKey == "" {
		return false, fmt.Errorf("%s API key is required for translation: use --translate-api-key or set %s",
			c.TranslateProvider, apiKeyHint(c.TranslateProvider))
	}
	return true, nil
}

func apiKeyHint(provider string) string {
	names := append([]string{EnvPrefix + "_API_KEY"}, apiKeyEnv[provider]...)
	return strings.Join(names, " or ")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	case "dir":
		return "must be an existing directory"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "is invalid"
	}
}
