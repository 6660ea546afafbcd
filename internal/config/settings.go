package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings holds the runtime configuration of the service.
// It is read once at startup; components copy what they need at construction.
type Settings struct {
	Debug       bool              `yaml:"debug"`
	DatabaseURL string            `yaml:"database_url"`
	RedisURL    string            `yaml:"redis_url"`
	Server      ServerSettings    `yaml:"server"`
	Generator   GeneratorSettings `yaml:"generator"`
	Email       EmailSettings     `yaml:"email"`
	Roster      RosterSettings    `yaml:"roster"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GeneratorSettings configures event detection and text generation.
type GeneratorSettings struct {
	DaysAhead   int    `yaml:"days_ahead"`
	DefaultTone string `yaml:"default_tone"`
	UseAI       bool   `yaml:"use_ai"`
	AIAPIKey    string `yaml:"ai_api_key"`
	Locale      string `yaml:"locale"`
	CachePrefix string `yaml:"cache_prefix"`
}

// RosterSettings holds credentials for CardDAV/WebDAV roster imports.
type RosterSettings struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// AIConfigured reports whether the AI path may be attempted.
func (g GeneratorSettings) AIConfigured() bool {
	return g.UseAI && g.AIAPIKey != ""
}

// EmailSettings configures the email transport.
type EmailSettings struct {
	From         string `yaml:"from"`
	FromName     string `yaml:"from_name"`
	Organization string `yaml:"organization"`
	SimulateDir  string `yaml:"simulate_dir"`
	SESRegion    string `yaml:"ses_region"`
	SESAccessKey string `yaml:"ses_access_key"`
	SESSecretKey string `yaml:"ses_secret_key"`
}

// SESConfigured reports whether real delivery through SES is possible.
func (e EmailSettings) SESConfigured() bool {
	return e.From != "" && e.SESAccessKey != "" && e.SESSecretKey != ""
}

// Addr returns the listen address.
func (s ServerSettings) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// Environment variable names that override file settings.
const (
	EnvDebug        = "DEBUG"
	EnvDatabaseURL  = "DATABASE_URL"
	EnvRedisURL     = "REDIS_URL"
	EnvHost         = "HOST"
	EnvPort         = "PORT"
	EnvDaysAhead    = "BIRTHDAY_DAYS_AHEAD"
	EnvDefaultTone  = "DEFAULT_TONE"
	EnvUseAI        = "USE_REAL_AI"
	EnvAIAPIKey     = "AI_API_KEY"
	EnvLocale       = "LOCALE"
	EnvEmailFrom    = "EMAIL_FROM"
	EnvSESRegion    = "SES_REGION"
	EnvSESAccessKey = "SES_ACCESS_KEY"
	EnvSESSecretKey = "SES_SECRET_KEY"
	EnvRosterUser   = "ROSTER_USER"
	EnvRosterPass   = "ROSTER_PASSWORD"
)

// Keyring accounts used when a secret is absent from file and environment.
const (
	SecretAIAPIKey    = "ai_api_key"
	SecretSESSecret   = "ses_secret_key"
	SecretDatabaseURL = "database_url"
	SecretRosterPass  = "roster_password"
)

// Default returns the settings used when no file is present.
func Default() *Settings {
	s := newSettings()
	s.applyDefaults()
	return s
}

// newSettings marks days_ahead unset so an explicit 0 (today only) survives defaults.
func newSettings() *Settings {
	s := &Settings{}
	s.Generator.DaysAhead = -1
	return s
}

// Load reads settings from a YAML file, then applies .env and environment overrides.
// A missing file is not an error: defaults and environment still apply.
func Load(path string) (*Settings, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	s := newSettings()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("%s: %w", ErrConfigRead, err)
	default:
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("%s: %w", ErrConfigParse, err)
		}
	}

	// .env is optional, like in local development.
	_ = godotenv.Load(EnvFile)

	if err := s.applyEnv(); err != nil {
		return nil, err
	}
	s.applyDefaults()
	return s, nil
}

func (s *Settings) applyDefaults() {
	if s.Server.Host == "" {
		s.Server.Host = DefaultHost
	}
	if s.Server.Port == 0 {
		s.Server.Port = DefaultPort
	}
	if s.Generator.DaysAhead < 0 {
		s.Generator.DaysAhead = DefaultDaysAhead
	}
	if s.Generator.DefaultTone == "" {
		s.Generator.DefaultTone = DefaultTone
	}
	if s.Generator.Locale == "" {
		s.Generator.Locale = DefaultLocale
	}
	if s.Generator.CachePrefix == "" {
		s.Generator.CachePrefix = DefaultCachePrefix
	}
	if s.Email.SimulateDir == "" {
		s.Email.SimulateDir = DefaultSimulateDir
	}
	if s.Email.SESRegion == "" {
		s.Email.SESRegion = DefaultSESRegion
	}
	if s.Email.FromName == "" {
		s.Email.FromName = DefaultFromName
	}
	if s.Email.Organization == "" {
		s.Email.Organization = DefaultOrg
	}
}

func (s *Settings) applyEnv() error {
	setString(&s.DatabaseURL, EnvDatabaseURL)
	setString(&s.RedisURL, EnvRedisURL)
	setString(&s.Server.Host, EnvHost)
	setString(&s.Generator.DefaultTone, EnvDefaultTone)
	setString(&s.Generator.AIAPIKey, EnvAIAPIKey)
	setString(&s.Generator.Locale, EnvLocale)
	setString(&s.Email.From, EnvEmailFrom)
	setString(&s.Email.SESRegion, EnvSESRegion)
	setString(&s.Email.SESAccessKey, EnvSESAccessKey)
	setString(&s.Email.SESSecretKey, EnvSESSecretKey)
	setString(&s.Roster.User, EnvRosterUser)
	setString(&s.Roster.Password, EnvRosterPass)

	if err := setInt(&s.Server.Port, EnvPort); err != nil {
		return err
	}
	if err := setInt(&s.Generator.DaysAhead, EnvDaysAhead); err != nil {
		return err
	}
	if err := setBool(&s.Generator.UseAI, EnvUseAI); err != nil {
		return err
	}
	return setBool(&s.Debug, EnvDebug)
}

// ResolveSecrets fills empty secrets from the OS keyring.
func (s *Settings) ResolveSecrets(store SecretStore) {
	if s.Generator.UseAI && s.Generator.AIAPIKey == "" {
		s.Generator.AIAPIKey = store.Secret(SecretAIAPIKey)
	}
	if s.Email.SESAccessKey != "" && s.Email.SESSecretKey == "" {
		s.Email.SESSecretKey = store.Secret(SecretSESSecret)
	}
	if s.DatabaseURL == "" {
		s.DatabaseURL = store.Secret(SecretDatabaseURL)
	}
	if s.Roster.User != "" && s.Roster.Password == "" {
		s.Roster.Password = store.Secret(SecretRosterPass)
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s %s: %w", ErrConfigValue, key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s %s: %w", ErrConfigValue, key, err)
	}
	*dst = b
	return nil
}
