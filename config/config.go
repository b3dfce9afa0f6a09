package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Sweeper    SweeperConfig    `yaml:"sweeper"`
	Billing    BillingConfig    `yaml:"billing"`
	Log        LogConfig        `yaml:"log"`
	Player     PlayerConfig     `yaml:"player"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port                    int           `yaml:"port"`
	RateLimitPerSec         float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst          int           `yaml:"rate_limit_burst"`
	ScheduleCacheTTLSeconds int           `yaml:"schedule_cache_ttl_seconds"`
	ScheduleCacheTTL        time.Duration `yaml:"-"`
	JWTSecret               string        `yaml:"jwt_secret"`
	TokenTTLHours           int           `yaml:"token_ttl_hours"`
	MetricsEnabled          bool          `yaml:"metrics_enabled"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "postgres" or "sqlite"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// SweeperConfig controls the background expiry sweep.
type SweeperConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// BillingConfig holds per-organization plan limits.
type BillingConfig struct {
	MaxRooms   int `yaml:"max_rooms"`
	MaxDevices int `yaml:"max_devices"`
}

// LogConfig holds zap logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PlayerConfig holds the device-side player settings.
type PlayerConfig struct {
	BackendURL               string        `yaml:"backend_url"`
	DataDir                  string        `yaml:"data_dir"`
	ScheduleIntervalSeconds  int           `yaml:"schedule_interval_seconds"`
	EmergencyIntervalSeconds int           `yaml:"emergency_interval_seconds"`
	HeartbeatIntervalSeconds int           `yaml:"heartbeat_interval_seconds"`
	RequestTimeoutSeconds    int           `yaml:"request_timeout_seconds"`
	ScheduleInterval         time.Duration `yaml:"-"`
	EmergencyInterval        time.Duration `yaml:"-"`
	HeartbeatInterval        time.Duration `yaml:"-"`
	RequestTimeout           time.Duration `yaml:"-"`
	Breaker                  BreakerConfig `yaml:"breaker"`
	Audio                    AudioConfig   `yaml:"audio"`
	MetricsAddr              string        `yaml:"metrics_addr"`
}

// BreakerConfig tunes the circuit breaker in front of backend calls.
type BreakerConfig struct {
	FailureThreshold uint32 `yaml:"failure_threshold"`
	OpenSeconds      int    `yaml:"open_seconds"`
}

// AudioConfig names the external programs used for speech and file playback.
// Arguments may contain {text}, {lang} and {url} placeholders.
type AudioConfig struct {
	SpeakCommand []string `yaml:"speak_command"`
	PlayCommand  []string `yaml:"play_command"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values with the built-in defaults and derives durations.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.ScheduleCacheTTLSeconds <= 0 {
		cfg.Server.ScheduleCacheTTLSeconds = 30
	}
	cfg.Server.ScheduleCacheTTL = time.Duration(cfg.Server.ScheduleCacheTTLSeconds) * time.Second
	if cfg.Server.TokenTTLHours <= 0 {
		cfg.Server.TokenTTLHours = 24 * 30
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.Sweeper.IntervalSeconds <= 0 {
		cfg.Sweeper.IntervalSeconds = 60
	}
	cfg.Sweeper.Interval = time.Duration(cfg.Sweeper.IntervalSeconds) * time.Second

	// Starter plan.
	if cfg.Billing.MaxRooms <= 0 {
		cfg.Billing.MaxRooms = 3
	}
	if cfg.Billing.MaxDevices <= 0 {
		cfg.Billing.MaxDevices = 3
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	p := &cfg.Player
	if p.DataDir == "" {
		p.DataDir = "./data/player"
	}
	if p.ScheduleIntervalSeconds <= 0 {
		p.ScheduleIntervalSeconds = 60
	}
	if p.EmergencyIntervalSeconds <= 0 {
		p.EmergencyIntervalSeconds = 15
	}
	if p.HeartbeatIntervalSeconds <= 0 {
		p.HeartbeatIntervalSeconds = 60
	}
	if p.RequestTimeoutSeconds <= 0 {
		p.RequestTimeoutSeconds = 10
	}
	p.ScheduleInterval = time.Duration(p.ScheduleIntervalSeconds) * time.Second
	p.EmergencyInterval = time.Duration(p.EmergencyIntervalSeconds) * time.Second
	p.HeartbeatInterval = time.Duration(p.HeartbeatIntervalSeconds) * time.Second
	p.RequestTimeout = time.Duration(p.RequestTimeoutSeconds) * time.Second
	if p.Breaker.FailureThreshold == 0 {
		p.Breaker.FailureThreshold = 3
	}
	if p.Breaker.OpenSeconds <= 0 {
		p.Breaker.OpenSeconds = 30
	}
	if len(p.Audio.SpeakCommand) == 0 {
		p.Audio.SpeakCommand = []string{"espeak-ng", "-v", "{lang}", "{text}"}
	}
	if len(p.Audio.PlayCommand) == 0 {
		p.Audio.PlayCommand = []string{"mpg123", "-q", "{url}"}
	}
}
