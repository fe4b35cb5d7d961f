//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("should apply defaults", func(t *testing.T) {
		path := writeConfig(t, `
bot:
  token: "123:abc"
  username: "stream_bot"
  webhook:
    public_url: "https://example.org"
database:
  url: "postgres://u:p@localhost/db"
`)
		cfg, err := LoadConfig(path, true)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Access.Policy != PolicyAdGated {
			t.Errorf("expected default policy %q, got %q", PolicyAdGated, cfg.Access.Policy)
		}
		if cfg.Access.VerificationTTL != 24*time.Hour || cfg.Access.PremiumTTL != 24*time.Hour {
			t.Errorf("unexpected ttl defaults: %v / %v", cfg.Access.VerificationTTL, cfg.Access.PremiumTTL)
		}
		if len(cfg.Links.PlaybackTemplates) != 2 {
			t.Errorf("expected 2 default playback templates, got %d", len(cfg.Links.PlaybackTemplates))
		}
		if cfg.Store.Driver != DriverPostgres {
			t.Errorf("expected postgres driver, got %q", cfg.Store.Driver)
		}
		if cfg.Bot.Webhook.Port != 8080 {
			t.Errorf("expected default port 8080, got %d", cfg.Bot.Webhook.Port)
		}
		if !cfg.Runtime.Dev {
			t.Error("expected dev flag to be carried")
		}
	})

	t.Run("should parse durations and policy", func(t *testing.T) {
		path := writeConfig(t, `
bot:
  token: "t"
  mode: polling
access:
  policy: premium_gated
  premium_ttl: 48h
store:
  driver: mongo
mongo:
  uri: "mongodb://localhost:27017"
`)
		cfg, err := LoadConfig(path, false)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Access.Policy != PolicyPremiumGated {
			t.Errorf("unexpected policy %q", cfg.Access.Policy)
		}
		if cfg.Access.PremiumTTL != 48*time.Hour {
			t.Errorf("expected 48h, got %v", cfg.Access.PremiumTTL)
		}
		if cfg.Mongo.Database != "gateway" {
			t.Errorf("expected default mongo database, got %q", cfg.Mongo.Database)
		}
	})

	t.Run("should let env override file values", func(t *testing.T) {
		path := writeConfig(t, `
bot:
  token: "from-file"
  mode: polling
database:
  url: "postgres://file"
`)
		t.Setenv("BOT_TOKEN", "from-env")
		t.Setenv("CHANNEL_ID", "-100123")
		t.Setenv("PORT", "9000")
		cfg, err := LoadConfig(path, false)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Bot.Token != "from-env" {
			t.Errorf("expected env token, got %q", cfg.Bot.Token)
		}
		if cfg.Bot.AuditChannelID != -100123 {
			t.Errorf("expected channel id from env, got %d", cfg.Bot.AuditChannelID)
		}
		if cfg.Bot.Webhook.Port != 9000 {
			t.Errorf("expected port 9000, got %d", cfg.Bot.Webhook.Port)
		}
	})

	t.Run("should tolerate a missing file when env is complete", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "env-only")
		t.Setenv("DATABASE_URL", "postgres://env")
		t.Setenv("PORT", "")
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), false)
		if err == nil {
			t.Fatalf("expected webhook validation error, got config %+v", cfg.Bot)
		}
		if !strings.Contains(err.Error(), "public_url") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("should reject invalid settings", func(t *testing.T) {
		tests := []struct {
			name string
			body string
			want string
		}{
			{"missing token", "bot:\n  mode: polling\n", "bot.token"},
			{"bad policy", "bot:\n  token: t\n  mode: polling\naccess:\n  policy: free\ndatabase:\n  url: x\n", "access.policy"},
			{"bad driver", "bot:\n  token: t\n  mode: polling\nstore:\n  driver: sqlite\n", "store.driver"},
			{"mongo without uri", "bot:\n  token: t\n  mode: polling\nstore:\n  driver: mongo\n", "mongo.uri"},
			{"bad mode", "bot:\n  token: t\n  mode: carrier-pigeon\ndatabase:\n  url: x\n", "bot.mode"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := LoadConfig(writeConfig(t, tt.body), false)
				if err == nil || !strings.Contains(err.Error(), tt.want) {
					t.Errorf("expected error mentioning %q, got %v", tt.want, err)
				}
			})
		}
	})
}

func TestBotConfig_IsAdmin(t *testing.T) {
	cfg := &BotConfig{AdminIDs: []int64{1111, 2222}}
	if !cfg.IsAdmin(1111) {
		t.Fatalf("expected 1111 to be admin")
	}
	if cfg.IsAdmin(3333) {
		t.Fatalf("expected 3333 to NOT be admin")
	}
}
