// Package config loads and validates the bootstrap-signaling service
// configuration: a YAML file overlaid with environment variables, the way
// the teacher repository's pkg/config loads its own settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the complete process configuration.
type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Auth struct {
		TokenSHA256 string `yaml:"token_sha256"`
		// JWTSigningKey, when set, lets the bearer token also be a JWT
		// signed with this key whose "sub" claim is the shared secret,
		// so operators can be handed a JWT instead of the raw secret.
		JWTSigningKey string `yaml:"jwt_signing_key"`
	} `yaml:"auth"`

	RateLimit struct {
		MessagesPerMinute int `yaml:"messages_per_minute"`
		ConnectionsPerIP  int `yaml:"connections_per_ip"`
		// HTTPRequestsPerSecond/HTTPBurst rate-limit the HTTP Surface
		// (distinct from the WS message/connection limiter above).
		// <= 0 disables HTTP-layer rate limiting.
		HTTPRequestsPerSecond float64 `yaml:"http_requests_per_second"`
		HTTPBurst             int     `yaml:"http_burst"`
	} `yaml:"rate_limit"`

	Bootstrap struct {
		PublicSignalingURL string `yaml:"public_signaling_url"`
		// ICEServerURLs is passed through verbatim in /bootstrap responses
		// as a webrtc.ICEServer list, for client convenience. The server
		// never dials these; it only echoes the configured list.
		ICEServerURLs []string `yaml:"ice_server_urls"`
	} `yaml:"bootstrap"`

	Rendezvous struct {
		DefaultTTL    time.Duration `yaml:"default_ttl"`
		PruneInterval time.Duration `yaml:"prune_interval"`
		DiscoverLimit int           `yaml:"discover_limit"`
	} `yaml:"rendezvous"`

	Signaling struct {
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
		SendBufferSize   int           `yaml:"send_buffer_size"`
		DrainTimeout     time.Duration `yaml:"drain_timeout"`
	} `yaml:"signaling"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.RateLimit.MessagesPerMinute <= 0 {
		return fmt.Errorf("rate_limit.messages_per_minute must be > 0")
	}
	if c.RateLimit.ConnectionsPerIP <= 0 {
		return fmt.Errorf("rate_limit.connections_per_ip must be > 0")
	}

	if c.Bootstrap.PublicSignalingURL == "" {
		return fmt.Errorf("bootstrap.public_signaling_url must not be empty")
	}

	if c.Rendezvous.DefaultTTL <= 0 {
		return fmt.Errorf("rendezvous.default_ttl must be > 0")
	}
	if c.Rendezvous.PruneInterval <= 0 {
		return fmt.Errorf("rendezvous.prune_interval must be > 0")
	}
	if c.Rendezvous.DiscoverLimit <= 0 {
		return fmt.Errorf("rendezvous.discover_limit must be > 0")
	}

	if c.Signaling.HandshakeTimeout <= 0 {
		return fmt.Errorf("signaling.handshake_timeout must be > 0")
	}
	if c.Signaling.SendBufferSize <= 0 {
		return fmt.Errorf("signaling.send_buffer_size must be > 0")
	}
	if c.Signaling.DrainTimeout <= 0 {
		return fmt.Errorf("signaling.drain_timeout must be > 0")
	}

	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
	}

	if c.Tracing.Enabled && c.Tracing.ServiceName == "" {
		return fmt.Errorf("tracing.service_name must not be empty when tracing.enabled=true")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file is not an error: defaults plus env overrides
// are used instead, matching the teacher's fallback behavior.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with the defaults from spec §6.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Port = 8787
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 10 * time.Second

	cfg.Auth.TokenSHA256 = ""

	cfg.RateLimit.MessagesPerMinute = 300
	cfg.RateLimit.ConnectionsPerIP = 12
	cfg.RateLimit.HTTPRequestsPerSecond = 20
	cfg.RateLimit.HTTPBurst = 40

	cfg.Bootstrap.PublicSignalingURL = "wss://example.com/signal"

	cfg.Rendezvous.DefaultTTL = 60 * time.Second
	cfg.Rendezvous.PruneInterval = 30 * time.Second
	cfg.Rendezvous.DiscoverLimit = 32

	cfg.Signaling.HandshakeTimeout = 5 * time.Second
	cfg.Signaling.SendBufferSize = 32
	cfg.Signaling.DrainTimeout = 5 * time.Second

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "bootstrap-signaling"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"

	return cfg
}

// applyEnvOverrides layers environment variables on top of file/defaults,
// per spec §6's configuration table.
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if v, err := parsePositiveInt(port); err == nil {
			c.Server.Port = v
		}
	}
	if digest := os.Getenv("SIGNAL_TOKEN_SHA256"); digest != "" {
		c.Auth.TokenSHA256 = digest
	}
	if key := os.Getenv("SIGNAL_JWT_SIGNING_KEY"); key != "" {
		c.Auth.JWTSigningKey = key
	}
	if v := os.Getenv("RATE_LIMIT_MESSAGES_PER_MINUTE"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			c.RateLimit.MessagesPerMinute = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_CONNECTIONS_PER_IP"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			c.RateLimit.ConnectionsPerIP = n
		}
	}
	if url := os.Getenv("PUBLIC_SIGNALING_URL"); url != "" {
		c.Bootstrap.PublicSignalingURL = url
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("value must be > 0")
	}
	return n, nil
}
