package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobhost"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/spf13/viper"
)

// Config is the command line configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Port            string        `mapstructure:"port"`
	Engine          string        `mapstructure:"engine"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects the job storage. Driver is memory, postgres or sqlite3.
type StorageConfig struct {
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
	Migrate bool   `mapstructure:"migrate"`
}

// DashboardConfig configures the dashboard. Without a token only local
// requests are allowed.
type DashboardConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Path     string `mapstructure:"path"`
	ReadOnly bool   `mapstructure:"read_only"`
	Token    string `mapstructure:"token"`
}

type ServerConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Name    string   `mapstructure:"name"`
	Workers int      `mapstructure:"workers"`
	Queues  []string `mapstructure:"queues"`
}

// TelemetryConfig selects where metrics and logs go. The prometheus exporter
// serves metrics on the dashboard; otlp pushes traces, metrics and logs to a
// collector.
type TelemetryConfig struct {
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	Insecure    bool    `mapstructure:"insecure"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.engine", "chi")
	v.SetDefault("http.shutdown_timeout", 30*time.Second)
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.migrate", true)
	v.SetDefault("dashboard.enabled", true)
	v.SetDefault("dashboard.path", jobhost.DefaultDashboardPath)
	v.SetDefault("dashboard.read_only", false)
	v.SetDefault("dashboard.token", "")
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.name", "")
	v.SetDefault("server.workers", 0)
	v.SetDefault("server.queues", []string{jobs.DefaultQueue})
	v.SetDefault("telemetry.exporter", "prometheus")
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.protocol", "grpc")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.sample_rate", 1.0)
}

// LoadConfig reads configPath, when set, and JOBKIT_* environment variables
// over the defaults.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("JOBKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "postgres", "sqlite3":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %s", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}

	switch c.HTTP.Engine {
	case "chi", "fiber":
	default:
		return fmt.Errorf("unsupported http engine: %s", c.HTTP.Engine)
	}

	switch c.Telemetry.Exporter {
	case "prometheus", "otlp":
	default:
		return fmt.Errorf("unsupported telemetry exporter: %s", c.Telemetry.Exporter)
	}

	if c.Server.Workers < 0 {
		return errors.New("server.workers cannot be negative")
	}
	return nil
}
