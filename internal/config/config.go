package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"droidview/client/internal/domain"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config holds the client configuration. Values come from defaults, then an
// optional YAML file, then DROIDVIEW_* environment variables (highest
// precedence). A .env file is honored the way the environment is.
type Config struct {
	API struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"api"`

	Signal struct {
		PingInterval time.Duration `yaml:"ping_interval"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"signal"`

	WebRTC struct {
		// Ordered connectivity-assist servers. Expected to carry at least
		// one STUN entry; TURN entries supply credentials here, never in
		// code.
		ICEServers []domain.ICEServer `yaml:"ice_servers"`
	} `yaml:"webrtc"`

	Session struct {
		// Grace period after remote video arrives during which the manager
		// assumes the connection succeeded even if the transport has not
		// confirmed yet. A UX compromise, not a connectivity guarantee.
		ConnectGracePeriod time.Duration `yaml:"connect_grace_period"`
	} `yaml:"session"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	// Session target, environment-only (DROIDVIEW_USER_ID, DROIDVIEW_DEVICE_ID).
	UserID   int `yaml:"-"`
	DeviceID int `yaml:"-"`
}

func defaults() *Config {
	cfg := &Config{}
	cfg.API.BaseURL = "http://localhost:8000"
	cfg.API.Timeout = 10 * time.Second
	cfg.Signal.PingInterval = 30 * time.Second
	cfg.Signal.WriteTimeout = 10 * time.Second
	cfg.WebRTC.ICEServers = []domain.ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
	}
	cfg.Session.ConnectGracePeriod = 3 * time.Second
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	return cfg
}

// Load reads the configuration. A missing file is not an error; defaults and
// the environment still apply.
func Load(path string) (*Config, error) {
	// godotenv does not overwrite variables already set.
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DROIDVIEW_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("DROIDVIEW_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DROIDVIEW_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("DROIDVIEW_GRACE_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.ConnectGracePeriod = d
		}
	}
	if v := os.Getenv("DROIDVIEW_USER_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.UserID = n
		}
	}
	if v := os.Getenv("DROIDVIEW_DEVICE_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DeviceID = n
		}
	}
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0")
	}
	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be > 0")
	}
	if c.Signal.WriteTimeout <= 0 {
		return fmt.Errorf("signal.write_timeout must be > 0")
	}
	if len(c.WebRTC.ICEServers) == 0 {
		return fmt.Errorf("webrtc.ice_servers must not be empty")
	}
	for i, s := range c.WebRTC.ICEServers {
		if len(s.URLs) == 0 {
			return fmt.Errorf("webrtc.ice_servers[%d].urls must not be empty", i)
		}
	}
	if c.Session.ConnectGracePeriod <= 0 {
		return fmt.Errorf("session.connect_grace_period must be > 0")
	}
	return nil
}
