package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the signalling broker's full configuration: the wire-facing
// keys named in §6 of the core spec, plus the ambient sections (logging,
// monitoring, redis, auth, rate_limiting) every teacher-style service
// carries alongside its domain config.
type Config struct {
	Signal struct {
		Host string `yaml:"host"`

		UnifiedPort       int  `yaml:"unifiedPort"`
		EnableUnifiedPort bool `yaml:"enableUnifiedPort"`

		PlayerPort   int `yaml:"playerPort"`
		StreamerPort int `yaml:"streamerPort"`
		SFUPort      int `yaml:"sfuPort"`

		HTTPPort int `yaml:"httpPort"`

		MaxSubscribers int  `yaml:"maxSubscribers"`
		EnableSFU      bool `yaml:"enableSfu"`
		MaxFrameSize   int64 `yaml:"maxFrameSize"`

		PingIntervalSeconds      int `yaml:"pingIntervalSeconds"`
		ConnectionTimeoutSeconds int `yaml:"connectionTimeoutSeconds"`

		PlayerPath   string `yaml:"playerPath"`
		StreamerPath string `yaml:"streamerPath"`
		SFUPath      string `yaml:"sfuPath"`
		UnrealPath   string `yaml:"unrealPath"`

		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"iceServers"`
	} `yaml:"signal"`

	Monitoring struct {
		PrometheusEnabled bool          `yaml:"prometheus_enabled"`
		PrometheusPort    int           `yaml:"prometheus_port"`
		MetricsInterval   time.Duration `yaml:"metrics_interval"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`

		MirrorInterval time.Duration `yaml:"mirror_interval"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"`
		} `yaml:"http"`

		WebSocket struct {
			ConnectionsPerMinute int `yaml:"connections_per_minute"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`
}

// PingInterval is the typed form of PingIntervalSeconds.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Signal.PingIntervalSeconds) * time.Second
}

// ConnectionTimeout is the typed form of ConnectionTimeoutSeconds.
func (c *Config) ConnectionTimeout() time.Duration {
	return time.Duration(c.Signal.ConnectionTimeoutSeconds) * time.Second
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Signal.Host == "" {
		return fmt.Errorf("signal.host must not be empty")
	}
	if c.Signal.EnableUnifiedPort && c.Signal.UnifiedPort <= 0 {
		return fmt.Errorf("signal.unifiedPort must be > 0 when enableUnifiedPort=true")
	}
	if !c.Signal.EnableUnifiedPort {
		if c.Signal.PlayerPort <= 0 || c.Signal.StreamerPort <= 0 {
			return fmt.Errorf("signal.playerPort and signal.streamerPort must be > 0 in split mode")
		}
		if c.Signal.EnableSFU && c.Signal.SFUPort <= 0 {
			return fmt.Errorf("signal.sfuPort must be > 0 in split mode when enableSfu=true")
		}
	}
	if c.Signal.HTTPPort <= 0 {
		return fmt.Errorf("signal.httpPort must be > 0")
	}
	if c.Signal.MaxSubscribers <= 0 {
		return fmt.Errorf("signal.maxSubscribers must be > 0")
	}
	if c.Signal.MaxFrameSize <= 0 {
		return fmt.Errorf("signal.maxFrameSize must be > 0")
	}
	if c.Signal.PingIntervalSeconds <= 0 {
		return fmt.Errorf("signal.pingIntervalSeconds must be > 0")
	}
	if c.Signal.ConnectionTimeoutSeconds <= 0 {
		return fmt.Errorf("signal.connectionTimeoutSeconds must be > 0")
	}
	if c.Signal.PlayerPath == "" || c.Signal.StreamerPath == "" || c.Signal.SFUPath == "" || c.Signal.UnrealPath == "" {
		return fmt.Errorf("signal.playerPath, streamerPath, sfuPath and unrealPath must all be set")
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort <= 0 {
		return fmt.Errorf("monitoring.prometheus_port must be > 0 when prometheus_enabled=true")
	}
	if c.Monitoring.MetricsInterval <= 0 {
		return fmt.Errorf("monitoring.metrics_interval must be > 0")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
		if c.Redis.MirrorInterval <= 0 {
			return fmt.Errorf("redis.mirror_interval must be > 0 when redis.enabled=true")
		}
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.ConnectionsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.websocket.connections_per_minute must be > 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file is not an error: defaults apply.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
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

// DefaultConfig returns configuration with the defaults named in §6.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Signal.Host = "0.0.0.0"
	cfg.Signal.UnifiedPort = 8888
	cfg.Signal.EnableUnifiedPort = true
	cfg.Signal.PlayerPort = 8889
	cfg.Signal.StreamerPort = 8888
	cfg.Signal.SFUPort = 8890
	cfg.Signal.HTTPPort = 8080
	cfg.Signal.MaxSubscribers = 100
	cfg.Signal.EnableSFU = true
	cfg.Signal.MaxFrameSize = 65536
	cfg.Signal.PingIntervalSeconds = 30
	cfg.Signal.ConnectionTimeoutSeconds = 60
	cfg.Signal.PlayerPath = "/player"
	cfg.Signal.StreamerPath = "/streamer"
	cfg.Signal.SFUPath = "/sfu"
	cfg.Signal.UnrealPath = "/unreal"

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.PrometheusPort = 9090
	cfg.Monitoring.MetricsInterval = 30 * time.Second

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.MirrorInterval = 15 * time.Second

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 60

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("SIGNALBROKER_HOST"); host != "" {
		c.Signal.Host = host
	}
	if level := os.Getenv("SIGNALBROKER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("SIGNALBROKER_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if addr := os.Getenv("SIGNALBROKER_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
}
