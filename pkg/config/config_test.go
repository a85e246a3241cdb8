package config

import "testing"

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got error: %v", err)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port must be > 0", func(c *Config) { c.Server.Port = 0 }},
		{"read timeout must be > 0", func(c *Config) { c.Server.ReadTimeout = 0 }},
		{"messages per minute must be > 0", func(c *Config) { c.RateLimit.MessagesPerMinute = 0 }},
		{"connections per ip must be > 0", func(c *Config) { c.RateLimit.ConnectionsPerIP = 0 }},
		{"public signaling url must not be empty", func(c *Config) { c.Bootstrap.PublicSignalingURL = "" }},
		{"default ttl must be > 0", func(c *Config) { c.Rendezvous.DefaultTTL = 0 }},
		{"prune interval must be > 0", func(c *Config) { c.Rendezvous.PruneInterval = 0 }},
		{"handshake timeout must be > 0", func(c *Config) { c.Signaling.HandshakeTimeout = 0 }},
		{"redis address required when enabled", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Address = ""
		}},
		{"tracing service name required when enabled", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.ServiceName = ""
		}},
		{"logging level must not be empty", func(c *Config) { c.Logging.Level = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing config file, got: %v", err)
	}
	if cfg.Server.Port != 8787 {
		t.Fatalf("expected default port 8787, got %d", cfg.Server.Port)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("RATE_LIMIT_MESSAGES_PER_MINUTE", "5")

	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("expected PORT override to take effect, got %d", cfg.Server.Port)
	}
	if cfg.RateLimit.MessagesPerMinute != 5 {
		t.Fatalf("expected RATE_LIMIT_MESSAGES_PER_MINUTE override, got %d", cfg.RateLimit.MessagesPerMinute)
	}
}
