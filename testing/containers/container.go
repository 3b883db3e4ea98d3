//go:build integration

// Package containers starts disposable MySQL and PostgreSQL servers for
// integration tests. Every helper skips the calling test when Docker is not reachable.
package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"

	"github.com/gaborage/go-rowkit/config"
)

// DatabaseContainer is a running database server together with the settings
// needed to connect to it.
type DatabaseContainer struct {
	container testcontainers.Container
	dbType    string
	host      string
	port      int
	database  string
	username  string
	password  string
}

// Config returns a DatabaseConfig pointing at the container.
func (c *DatabaseContainer) Config() *config.DatabaseConfig {
	cfg := &config.DatabaseConfig{
		Type:     c.dbType,
		Host:     c.host,
		Port:     c.port,
		Database: c.database,
		Username: c.username,
		Password: c.password,
	}
	cfg.Pool.Max.Connections = 5
	cfg.Pool.Idle.Connections = 2
	cfg.Pool.Lifetime.Max = time.Minute
	return cfg
}

// Terminate stops and removes the container
func (c *DatabaseContainer) Terminate(ctx context.Context) error {
	if c.container == nil {
		return nil
	}
	return c.container.Terminate(ctx)
}

// WithCleanup terminates the container when the test finishes.
func (c *DatabaseContainer) WithCleanup(t *testing.T) *DatabaseContainer {
	t.Helper()
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate %s container: %v", c.dbType, err)
		}
	})
	return c
}

type startRequest struct {
	dbType   string
	port     string
	request  testcontainers.ContainerRequest
	database string
	username string
	password string
}

func start(ctx context.Context, t *testing.T, sr startRequest) (*DatabaseContainer, error) {
	t.Helper()

	if !isDockerAvailable(ctx) {
		t.Skip("Docker is not available - skipping integration test. Install Docker Desktop or ensure Docker daemon is running.")
		return nil, nil
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: sr.request,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start %s container: %w", sr.dbType, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get %s container host: %w", sr.dbType, err)
	}
	mappedPort, err := container.MappedPort(ctx, nat.Port(sr.port))
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get %s container port: %w", sr.dbType, err)
	}

	t.Logf("%s container started successfully at %s:%d (database: %s, user: %s)",
		sr.dbType, host, mappedPort.Int(), sr.database, sr.username)

	return &DatabaseContainer{
		container: container,
		dbType:    sr.dbType,
		host:      host,
		port:      mappedPort.Int(),
		database:  sr.database,
		username:  sr.username,
		password:  sr.password,
	}, nil
}

// isDockerAvailable reports whether the Docker daemon can be contacted.
func isDockerAvailable(ctx context.Context) bool {
	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}
