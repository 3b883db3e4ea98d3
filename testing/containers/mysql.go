//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gaborage/go-rowkit/config"
)

// MySQLContainerConfig holds configuration for the MySQL test container
type MySQLContainerConfig struct {
	// ImageTag specifies the MySQL version (default: "8.4")
	ImageTag string
	Username string
	Password string
	Database string
	// StartupTimeout for container initialization (default: 90 seconds)
	StartupTimeout time.Duration
}

// DefaultMySQLConfig returns the default MySQL container settings.
func DefaultMySQLConfig() *MySQLContainerConfig {
	return &MySQLContainerConfig{
		ImageTag:       "8.4",
		Username:       "testuser",
		Password:       "testpass",
		Database:       "testdb",
		StartupTimeout: 90 * time.Second,
	}
}

// StartMySQLContainer starts a MySQL server. A nil cfg uses DefaultMySQLConfig.
func StartMySQLContainer(ctx context.Context, t *testing.T, cfg *MySQLContainerConfig) (*DatabaseContainer, error) {
	t.Helper()

	if cfg == nil {
		cfg = DefaultMySQLConfig()
	}

	return start(ctx, t, startRequest{
		dbType: config.MySQL,
		port:   "3306/tcp",
		request: testcontainers.ContainerRequest{
			Image:        fmt.Sprintf("mysql:%s", cfg.ImageTag),
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": cfg.Password,
				"MYSQL_DATABASE":      cfg.Database,
				"MYSQL_USER":          cfg.Username,
				"MYSQL_PASSWORD":      cfg.Password,
			},
			// the entrypoint runs a temporary server first; only the final one listens on 3306
			WaitingFor: wait.ForAll(
				wait.ForLog("port: 3306  MySQL Community Server"),
				wait.ForListeningPort("3306/tcp"),
			).WithStartupTimeout(cfg.StartupTimeout),
		},
		database: cfg.Database,
		username: cfg.Username,
		password: cfg.Password,
	})
}

// MustStartMySQLContainer is StartMySQLContainer that fails the test on error.
func MustStartMySQLContainer(ctx context.Context, t *testing.T, cfg *MySQLContainerConfig) *DatabaseContainer {
	t.Helper()

	container, err := StartMySQLContainer(ctx, t, cfg)
	if err != nil {
		t.Fatalf("Failed to start MySQL container: %v", err)
	}
	return container
}
