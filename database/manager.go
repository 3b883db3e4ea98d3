package database

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gaborage/go-rowkit/config"
	"github.com/gaborage/go-rowkit/database/types"
	"github.com/gaborage/go-rowkit/logger"
)

// ConfigStore provides per-key database configurations.
type ConfigStore interface {
	// DBConfig returns the database configuration for the given key.
	// The empty key selects the default connection.
	DBConfig(ctx context.Context, key string) (*config.DatabaseConfig, error)
}

// Connector creates drivers from configuration
type Connector func(*config.DatabaseConfig, logger.Logger) (types.Driver, error)

// Manager manages drivers by connection name.
// It provides lazy initialization, LRU eviction, and cleanup of idle drivers.
// A driver whose connection is lost is evicted so the next Get reconnects.
type Manager struct {
	logger    logger.Logger
	store     ConfigStore
	connector Connector

	mu      sync.RWMutex
	drivers map[string]*driverEntry

	lru     *list.List
	maxSize int

	idleTTL   time.Duration
	cleanupMu sync.Mutex
	cleanupCh chan struct{}

	sfg singleflight.Group
}

type driverEntry struct {
	driver   types.Driver
	element  *list.Element
	lastUsed time.Time
	key      string
}

// ManagerOptions configures the Manager
type ManagerOptions struct {
	MaxSize int           // Maximum number of drivers to keep (0 = default of 100)
	IdleTTL time.Duration // Time after which idle drivers are closed (0 = default of 30m)
}

// NewManager creates a new driver manager. A nil connector uses NewDriver.
func NewManager(store ConfigStore, log logger.Logger, opts ManagerOptions, connector Connector) *Manager {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 100
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	if connector == nil {
		connector = NewDriver
	}

	return &Manager{
		logger:    log,
		store:     store,
		connector: connector,
		drivers:   make(map[string]*driverEntry),
		lru:       list.New(),
		maxSize:   opts.MaxSize,
		idleTTL:   opts.IdleTTL,
	}
}

// Get returns the driver for key, connecting on first use.
func (m *Manager) Get(ctx context.Context, key string) (types.Driver, error) {
	if drv := m.getExisting(key); drv != nil {
		return drv, nil
	}

	result, err, _ := m.sfg.Do(key, func() (any, error) {
		if drv := m.getExisting(key); drv != nil {
			return drv, nil
		}
		return m.createDriver(ctx, key)
	})
	if err != nil {
		return nil, err
	}

	return result.(types.Driver), nil
}

func (m *Manager) getExisting(key string) types.Driver {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.drivers[key]
	if !exists {
		return nil
	}

	entry.lastUsed = time.Now()
	m.lru.MoveToFront(entry.element)

	return entry.driver
}

func (m *Manager) createDriver(ctx context.Context, key string) (types.Driver, error) {
	dbConfig, err := m.store.DBConfig(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get database config for key %s: %w", key, err)
	}

	drv, err := m.connector(dbConfig, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver for key %s: %w", key, err)
	}

	m.mu.Lock()
	if existing, exists := m.drivers[key]; exists {
		m.mu.Unlock()
		if closeErr := drv.Close(); closeErr != nil {
			m.logger.Warn().Err(closeErr).Str("key", key).Msg("Error closing duplicate driver")
		}
		return existing.driver, nil
	}

	m.evictIfNeeded()

	element := m.lru.PushFront(key)
	m.drivers[key] = &driverEntry{
		driver:   drv,
		element:  element,
		lastUsed: time.Now(),
		key:      key,
	}
	m.mu.Unlock()

	// callbacks may fire synchronously when the connection is already lost
	drv.RegisterOnClose(func(err error) {
		go m.evictLost(key, drv, err)
	})

	m.logger.Info().
		Str("key", key).
		Str("db_type", dbConfig.Type).
		Msg("Created new database driver")

	return drv, nil
}

// evictLost drops drv from the cache if it is still registered under key.
func (m *Manager) evictLost(key string, drv types.Driver, cause error) {
	m.mu.Lock()
	entry, exists := m.drivers[key]
	if !exists || entry.driver != drv {
		m.mu.Unlock()
		return
	}
	delete(m.drivers, key)
	m.lru.Remove(entry.element)
	m.mu.Unlock()

	if err := drv.Close(); err != nil {
		m.logger.Error().Err(err).Str("key", key).Msg("Error closing lost database driver")
	}
	m.logger.Warn().
		Err(cause).
		Str("key", key).
		Msg("Evicted database driver after connection loss")
}

// evictIfNeeded removes the least recently used driver if at capacity.
// Callers must hold m.mu.
func (m *Manager) evictIfNeeded() {
	if len(m.drivers) < m.maxSize {
		return
	}

	oldest := m.lru.Back()
	if oldest == nil {
		return
	}

	key := oldest.Value.(string)
	entry := m.drivers[key]

	if err := entry.driver.Close(); err != nil {
		m.logger.Error().
			Err(err).
			Str("key", key).
			Msg("Error closing evicted database driver")
	}

	delete(m.drivers, key)
	m.lru.Remove(oldest)

	m.logger.Debug().
		Str("key", key).
		Msg("Evicted database driver due to LRU limit")
}

// StartCleanup starts the background cleanup routine for idle drivers
func (m *Manager) StartCleanup(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	m.cleanupMu.Lock()
	if m.cleanupCh != nil {
		m.cleanupMu.Unlock()
		return
	}
	done := make(chan struct{})
	m.cleanupCh = done
	m.cleanupMu.Unlock()

	go m.cleanupLoop(interval, done)
}

// StopCleanup stops the background cleanup routine
func (m *Manager) StopCleanup() {
	m.cleanupMu.Lock()
	if m.cleanupCh == nil {
		m.cleanupMu.Unlock()
		return
	}
	close(m.cleanupCh)
	m.cleanupCh = nil
	m.cleanupMu.Unlock()
}

func (m *Manager) cleanupLoop(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupIdleDrivers()
		case <-done:
			return
		}
	}
}

// cleanupIdleDrivers closes drivers that have been idle longer than idleTTL
func (m *Manager) cleanupIdleDrivers() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var toRemove []string

	for key, entry := range m.drivers {
		if now.Sub(entry.lastUsed) > m.idleTTL {
			toRemove = append(toRemove, key)
		}
	}

	for _, key := range toRemove {
		entry := m.drivers[key]

		if err := entry.driver.Close(); err != nil {
			m.logger.Error().
				Err(err).
				Str("key", key).
				Msg("Error closing idle database driver")
		}

		delete(m.drivers, key)
		m.lru.Remove(entry.element)

		m.logger.Debug().
			Str("key", key).
			Dur("idle_time", now.Sub(entry.lastUsed)).
			Msg("Cleaned up idle database driver")
	}
}

// Close closes all drivers and stops cleanup
func (m *Manager) Close() error {
	m.StopCleanup()

	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for key, entry := range m.drivers {
		if err := entry.driver.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing driver for key %s: %w", key, err))
		}
	}

	m.drivers = make(map[string]*driverEntry)
	m.lru.Init()

	if len(errs) > 0 {
		return fmt.Errorf("errors closing database drivers: %v", errs)
	}
	return nil
}

// Size returns the number of open drivers
func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.drivers)
}

// Stats returns statistics about the open drivers
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]any)
	stats["active_drivers"] = len(m.drivers)
	stats["max_drivers"] = m.maxSize
	stats["idle_ttl_seconds"] = int(m.idleTTL.Seconds())

	drivers := make([]map[string]any, 0, len(m.drivers))
	now := time.Now()
	for key, entry := range m.drivers {
		drivers = append(drivers, map[string]any{
			"key":           key,
			"dialect":       string(entry.driver.Dialect()),
			"last_used":     entry.lastUsed.Format(time.RFC3339),
			"idle_duration": int(now.Sub(entry.lastUsed).Seconds()),
		})
	}

	stats["drivers"] = drivers
	return stats
}
