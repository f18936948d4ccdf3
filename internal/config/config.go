package config

import (
    "errors"
    "fmt"
    "io/fs"
    "os"
    "time"

    "github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
    LogLevel string   `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
    Language string   `yaml:"language" env:"DEFAULT_LANGUAGE" env-default:"en"`
    HTTP     HTTP     `yaml:"http"`
    Sessions Sessions `yaml:"sessions"`
}

type HTTP struct {
    Port              string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
    ReadHeaderTimeout time.Duration `yaml:"read-header-timeout" env:"HTTP_READ_HEADER_TIMEOUT" env-default:"5s"`
    IdleTimeout       time.Duration `yaml:"idle-timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
    ShutdownTimeout   time.Duration `yaml:"shutdown-timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
    HeartbeatInterval time.Duration `yaml:"heartbeat-interval" env:"SSE_HEARTBEAT" env-default:"15s"`
    // AllowedOrigins lists extra origins accepted for WebSocket upgrades.
    AllowedOrigins []string `yaml:"allowed-origins" env:"ALLOWED_ORIGINS" env-separator:","`
}

type Sessions struct {
    TTL          time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"24h"`
    ReapInterval time.Duration `yaml:"reap-interval" env:"SESSION_REAP_INTERVAL" env-default:"10m"`
}

// Load reads the yaml file at path, then applies environment overrides.
// A missing file is not an error: defaults and environment are used instead.
func Load(path string) (*Config, error) {
    config := &Config{}

    if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
        if err = cleanenv.ReadEnv(config); err != nil {
            return nil, fmt.Errorf("unable to read environment: %w", err)
        }
        return config, config.validate()
    }

    if err := cleanenv.ReadConfig(path, config); err != nil {
        return nil, fmt.Errorf("unable to load config file: %w", err)
    }

    return config, config.validate()
}

// MustLoad - load configuration or panic.
func MustLoad(path string) *Config {
    config, err := Load(path)
    if err != nil {
        panic(err)
    }

    return config
}

func (that *Config) validate() error {
    switch that.LogLevel {
    case "debug", "info", "warn", "error":
    default:
        return fmt.Errorf("unknown log level %q", that.LogLevel)
    }
    if that.Sessions.TTL <= 0 {
        return errors.New("sessions.ttl must be positive")
    }
    if that.Sessions.ReapInterval <= 0 {
        return errors.New("sessions.reap-interval must be positive")
    }
    if that.HTTP.ShutdownTimeout <= 0 {
        return errors.New("http.shutdown-timeout must be positive")
    }
    if that.HTTP.HeartbeatInterval <= 0 {
        return errors.New("http.heartbeat-interval must be positive")
    }
    return nil
}

// Addr returns the listen address for the HTTP server.
func (that *HTTP) Addr() string {
    return ":" + that.Port
}
