package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Backend struct {
		BaseURL        string        `yaml:"base_url"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		PollInterval   time.Duration `yaml:"poll_interval"`

		Retry struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			InitialDelay time.Duration `yaml:"initial_delay"`
			MaxDelay     time.Duration `yaml:"max_delay"`
			Multiplier   float64       `yaml:"multiplier"`
		} `yaml:"retry"`

		CircuitBreaker struct {
			MaxFailures  int           `yaml:"max_failures"`
			ResetTimeout time.Duration `yaml:"reset_timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"backend"`

	Push struct {
		Transport       string        `yaml:"transport"` // websocket | redis
		URL             string        `yaml:"url"`
		PingInterval    time.Duration `yaml:"ping_interval"`
		PongTimeout     time.Duration `yaml:"pong_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ReconnectDelay  time.Duration `yaml:"reconnect_delay"`
		MaxMessageBytes int64         `yaml:"max_message_bytes"`
		EventsChannel   string        `yaml:"events_channel"`
		CommandsChannel string        `yaml:"commands_channel"`
	} `yaml:"push"`

	Projection struct {
		PingInterval time.Duration `yaml:"ping_interval"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		SendBuffer   int           `yaml:"send_buffer"`
	} `yaml:"projection"`

	Monitoring struct {
		PrometheusEnabled bool   `yaml:"prometheus_enabled"`
		MetricsPath       string `yaml:"metrics_path"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		Enabled        bool          `yaml:"enabled"`
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"http"`

		// Track bounds outbound location lookups triggered by operators.
		Track struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"track"`
	} `yaml:"rate_limiting"`

	Tracing struct {
		Enabled        bool    `yaml:"enabled"`
		JaegerEndpoint string  `yaml:"jaeger_endpoint"`
		SampleRate     float64 `yaml:"sample_rate"`
		Environment    string  `yaml:"environment"`
	} `yaml:"tracing"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
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

	// Backend
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url must not be empty")
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute url, got %q", c.Backend.BaseURL)
	}
	if c.Backend.RequestTimeout <= 0 {
		return fmt.Errorf("backend.request_timeout must be > 0")
	}
	if c.Backend.PollInterval <= 0 {
		return fmt.Errorf("backend.poll_interval must be > 0")
	}
	if c.Backend.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("backend.retry.max_attempts must be > 0")
	}
	if c.Backend.Retry.Multiplier < 1 {
		return fmt.Errorf("backend.retry.multiplier must be >= 1")
	}
	if c.Backend.CircuitBreaker.MaxFailures <= 0 {
		return fmt.Errorf("backend.circuit_breaker.max_failures must be > 0")
	}
	if c.Backend.CircuitBreaker.ResetTimeout <= 0 {
		return fmt.Errorf("backend.circuit_breaker.reset_timeout must be > 0")
	}

	// Push channel
	switch c.Push.Transport {
	case "websocket":
		if c.Push.URL == "" {
			return fmt.Errorf("push.url must not be empty when push.transport=websocket")
		}
	case "redis":
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when push.transport=redis")
		}
		if c.Push.EventsChannel == "" || c.Push.CommandsChannel == "" {
			return fmt.Errorf("push.events_channel and push.commands_channel must be set when push.transport=redis")
		}
	default:
		return fmt.Errorf("push.transport must be websocket or redis, got %q", c.Push.Transport)
	}
	if c.Push.PingInterval <= 0 {
		return fmt.Errorf("push.ping_interval must be > 0")
	}
	if c.Push.PongTimeout <= c.Push.PingInterval {
		return fmt.Errorf("push.pong_timeout must be > push.ping_interval")
	}
	if c.Push.ReconnectDelay <= 0 {
		return fmt.Errorf("push.reconnect_delay must be > 0")
	}

	// Projection
	if c.Projection.PingInterval <= 0 {
		return fmt.Errorf("projection.ping_interval must be > 0")
	}
	if c.Projection.SendBuffer <= 0 {
		return fmt.Errorf("projection.send_buffer must be > 0")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Auth
	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret must not be empty when auth.enabled=true")
		}
		if c.Auth.AccessTokenTTL <= 0 {
			return fmt.Errorf("auth.access_token_ttl must be > 0 when auth.enabled=true")
		}
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
	}
	if c.RateLimiting.Track.RequestsPerSecond <= 0 || c.RateLimiting.Track.Burst <= 0 {
		return fmt.Errorf("rate_limiting.track requests_per_second and burst must be > 0")
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerEndpoint == "" {
			return fmt.Errorf("tracing.jaeger_endpoint must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.ShutdownTimeout = 10 * time.Second

	cfg.Backend.BaseURL = "http://localhost:5000"
	cfg.Backend.RequestTimeout = 5 * time.Second
	cfg.Backend.PollInterval = 10 * time.Second
	cfg.Backend.Retry.MaxAttempts = 3
	cfg.Backend.Retry.InitialDelay = 200 * time.Millisecond
	cfg.Backend.Retry.MaxDelay = 2 * time.Second
	cfg.Backend.Retry.Multiplier = 2
	cfg.Backend.CircuitBreaker.MaxFailures = 5
	cfg.Backend.CircuitBreaker.ResetTimeout = 30 * time.Second

	cfg.Push.Transport = "websocket"
	cfg.Push.URL = "ws://localhost:5000/camera"
	cfg.Push.PingInterval = 30 * time.Second
	cfg.Push.PongTimeout = 60 * time.Second
	cfg.Push.WriteTimeout = 10 * time.Second
	cfg.Push.ReconnectDelay = 3 * time.Second
	cfg.Push.MaxMessageBytes = 4 << 20
	cfg.Push.EventsChannel = "cctvdash:events"
	cfg.Push.CommandsChannel = "cctvdash:commands"

	cfg.Projection.PingInterval = 30 * time.Second
	cfg.Projection.WriteTimeout = 10 * time.Second
	cfg.Projection.SendBuffer = 8

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.MetricsPath = "/metrics"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Auth.Enabled = false
	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 12 * time.Hour

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.Track.RequestsPerSecond = 2
	cfg.RateLimiting.Track.Burst = 5

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerEndpoint = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 0.1
	cfg.Tracing.Environment = "development"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("CCTVDASH_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if base := os.Getenv("CCTVDASH_BACKEND_URL"); base != "" {
		c.Backend.BaseURL = base
	}
	if interval := os.Getenv("CCTVDASH_POLL_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			c.Backend.PollInterval = d
		}
	}
	if transport := os.Getenv("CCTVDASH_PUSH_TRANSPORT"); transport != "" {
		c.Push.Transport = transport
	}
	if pushURL := os.Getenv("CCTVDASH_PUSH_URL"); pushURL != "" {
		c.Push.URL = pushURL
	}
	if addr := os.Getenv("CCTVDASH_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
	if level := os.Getenv("CCTVDASH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("CCTVDASH_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if enabled := os.Getenv("CCTVDASH_AUTH_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			c.Auth.Enabled = b
		}
	}
}
