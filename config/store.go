package config

import (
	"context"
	"fmt"
	"sort"
)

// ConnectionStore resolves database configurations by connection name.
// The empty name selects the default database section.
type ConnectionStore struct {
	defaultDB   *DatabaseConfig
	connections map[string]DatabaseConfig
}

// NewConnectionStore creates a store backed by cfg.
func NewConnectionStore(cfg *Config) *ConnectionStore {
	store := &ConnectionStore{
		connections: make(map[string]DatabaseConfig, len(cfg.Connections)),
	}
	if IsDatabaseConfigured(&cfg.Database) {
		db := cfg.Database
		store.defaultDB = &db
	}
	for name := range cfg.Connections {
		store.connections[name] = cfg.Connections[name]
	}
	return store
}

// DBConfig returns the configuration registered under key.
func (s *ConnectionStore) DBConfig(_ context.Context, key string) (*DatabaseConfig, error) {
	if key == "" {
		if s.defaultDB == nil {
			return nil, NewNotConfiguredError("database.host")
		}
		return s.defaultDB, nil
	}

	db, ok := s.connections[key]
	if !ok {
		return nil, &ConfigError{
			Category: "missing",
			Field:    "connections." + key,
			Message:  "configuration not found",
			Action:   fmt.Sprintf("add a connections.%s section to %s", key, DefaultConfigFile),
		}
	}
	return &db, nil
}

// Names lists the named connections in sorted order, excluding the default.
func (s *ConnectionStore) Names() []string {
	names := make([]string, 0, len(s.connections))
	for name := range s.connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
