// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token          string  `yaml:"token"`
	Mode           string  `yaml:"mode"` // webhook | polling
	Username       string  `yaml:"username"`
	Workers        int     `yaml:"workers"` // update workers
	AdminIDs       []int64 `yaml:"admin_ids"`
	AuditChannelID int64   `yaml:"audit_channel_id"`
	WelcomePhoto   string  `yaml:"welcome_photo"`
	TutorialURL    string  `yaml:"tutorial_url"`
	Webhook        struct {
		PublicURL string `yaml:"public_url"` // e.g. https://example.koyeb.app
		Port      int    `yaml:"port"`
	} `yaml:"webhook"`
}

const (
	PolicyAdGated      = "ad_gated"
	PolicyPremiumGated = "premium_gated"
)

type AccessConfig struct {
	Policy          string        `yaml:"policy"` // ad_gated | premium_gated
	VerificationTTL time.Duration `yaml:"verification_ttl"`
	PremiumTTL      time.Duration `yaml:"premium_ttl"`
	TokenLength     int           `yaml:"token_length"`
}

type LinksConfig struct {
	PlaybackTemplates []string `yaml:"playback_templates"` // placeholders: {url} {id}
	ShareSourceBase   string   `yaml:"share_source_base"`
}

type ShortenerConfig struct {
	Endpoint           string        `yaml:"endpoint"`
	APIKey             string        `yaml:"api_key"`
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type StoreConfig struct {
	Driver     string `yaml:"driver"` // postgres | mongo
	QuotaBytes int64  `yaml:"quota_bytes"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AdminConfig guards the admin HTTP API, served on the webhook port. An empty APIKey disables it.
type AdminConfig struct {
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type BroadcastConfig struct {
	Concurrency   int     `yaml:"concurrency"`
	RatePerSecond float64 `yaml:"rate_per_second"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Access    AccessConfig    `yaml:"access"`
	Links     LinksConfig     `yaml:"links"`
	Shortener ShortenerConfig `yaml:"shortener"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Redis     RedisConfig     `yaml:"redis"`
	Admin     AdminConfig     `yaml:"admin"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Log       LogConfig       `yaml:"log"`

	Runtime RuntimeConfig `yaml:"-"`
}

// DefaultPlaybackTemplates are the two stream-proxy players links are rewritten into.
var DefaultPlaybackTemplates = []string{
	"https://streamterabox.blogspot.com/?q={url}&m=0",
	"https://streamterabox.blogspot.com/2024/12/terabox-player.html?q={url}",
}

// LoadConfig reads the YAML file at path, applies environment overrides and defaults, and validates.
// A missing file is tolerated so the service can run from the environment alone.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// env-only deployment
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Bot.Token = v
	}
	if v := os.Getenv("BOT_USERNAME"); v != "" {
		cfg.Bot.Username = v
	}
	if v := os.Getenv("CHANNEL_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CHANNEL_ID: %w", err)
		}
		cfg.Bot.AuditChannelID = id
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.Bot.Webhook.Port = port
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("SHORTENER_API_KEY"); v != "" {
		cfg.Shortener.APIKey = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "webhook"
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.Webhook.Port == 0 {
		cfg.Bot.Webhook.Port = 8080
	}
	if cfg.Access.Policy == "" {
		cfg.Access.Policy = PolicyAdGated
	}
	if cfg.Access.VerificationTTL <= 0 {
		cfg.Access.VerificationTTL = 24 * time.Hour
	}
	if cfg.Access.PremiumTTL <= 0 {
		cfg.Access.PremiumTTL = 24 * time.Hour
	}
	if cfg.Access.TokenLength <= 0 {
		cfg.Access.TokenLength = 16
	}
	if len(cfg.Links.PlaybackTemplates) == 0 {
		cfg.Links.PlaybackTemplates = append([]string(nil), DefaultPlaybackTemplates...)
	}
	if cfg.Links.ShareSourceBase == "" {
		cfg.Links.ShareSourceBase = "https://teraboxapp.com/s/"
	}
	if cfg.Shortener.Timeout <= 0 {
		cfg.Shortener.Timeout = 10 * time.Second
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverPostgres
	}
	if cfg.Store.QuotaBytes <= 0 {
		cfg.Store.QuotaBytes = 512 << 20
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "gateway"
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Broadcast.Concurrency <= 0 {
		cfg.Broadcast.Concurrency = 4
	}
	if cfg.Broadcast.RatePerSecond <= 0 {
		cfg.Broadcast.RatePerSecond = 25
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return errors.New("bot.token is required")
	}
	switch strings.ToLower(c.Bot.Mode) {
	case "webhook":
		if c.Bot.Webhook.PublicURL == "" {
			return errors.New("bot.webhook.public_url is required in webhook mode")
		}
	case "polling":
	default:
		return fmt.Errorf("unknown bot.mode %q", c.Bot.Mode)
	}
	switch c.Access.Policy {
	case PolicyAdGated, PolicyPremiumGated:
	default:
		return fmt.Errorf("unknown access.policy %q", c.Access.Policy)
	}
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("database.url is required")
		}
	case DriverMongo:
		if c.Mongo.URI == "" {
			return errors.New("mongo.uri is required")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	return nil
}

// IsAdmin reports whether the Telegram id is listed in bot.admin_ids.
func (c *BotConfig) IsAdmin(id int64) bool {
	for _, a := range c.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}
