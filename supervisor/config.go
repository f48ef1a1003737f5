package supervisor

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds supervisor client configuration.
type Config struct {
	// Name identifies the remote target. Paths constructed against clients
	// with different names never compare equal.
	Name string `envconfig:"SUPERVISOR_NAME" default:"workload"`
	// Socket is the path of the supervisor's unix control socket.
	Socket string `envconfig:"SUPERVISOR_SOCKET" default:"/run/supervisor/files.sock"`
	// Timeout bounds a single request. Zero disables the bound.
	Timeout time.Duration `envconfig:"SUPERVISOR_TIMEOUT" default:"30s"`
}

// LoadConfig loads client configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("PATHKIT", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load supervisor config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the configuration used when no environment is set.
func DefaultConfig() Config {
	return Config{
		Name:    "workload",
		Socket:  "/run/supervisor/files.sock",
		Timeout: 30 * time.Second,
	}
}
