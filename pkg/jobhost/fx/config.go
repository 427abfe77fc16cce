package jobhostfx

import (
	"os"
	"strconv"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobhost"
	"go.uber.org/fx"
)

// Config selects what the module wires into the host.
type Config struct {
	// DashboardEnabled mounts the dashboard. Default: true
	DashboardEnabled bool

	// DashboardPath is the dashboard mount point. Default: "/hangfire"
	DashboardPath string

	// ServerEnabled starts a background job server. Default: true
	ServerEnabled bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DashboardEnabled: true,
		DashboardPath:    jobhost.DefaultDashboardPath,
		ServerEnabled:    true,
	}
}

// ConfigModule provides the configuration from environment variables.
// Environment variables:
//   - JOBS_DASHBOARD_ENABLED: Mount the dashboard (default: true)
//   - JOBS_DASHBOARD_PATH: Dashboard path (default: "/hangfire")
//   - JOBS_SERVER_ENABLED: Start a job server (default: true)
var ConfigModule = fx.Provide(ConfigFromEnv)

// ConfigFromEnv creates the configuration from environment variables.
func ConfigFromEnv() *Config {
	return &Config{
		DashboardEnabled: getEnvBool("JOBS_DASHBOARD_ENABLED", true),
		DashboardPath:    getEnv("JOBS_DASHBOARD_PATH", jobhost.DefaultDashboardPath),
		ServerEnabled:    getEnvBool("JOBS_SERVER_ENABLED", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
