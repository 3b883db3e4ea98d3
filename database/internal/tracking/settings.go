// Package tracking wraps the *sql.DB of a rowkit driver so every browse,
// save, delete and raw statement is logged, traced and counted the same way
// on MySQL and PostgreSQL.
package tracking

import (
	"time"

	"github.com/gaborage/go-rowkit/config"
	"github.com/gaborage/go-rowkit/database/types"
	"github.com/gaborage/go-rowkit/logger"
)

// Used when database.query.slow.threshold or database.query.log.maxlength is unset.
const (
	DefaultSlowQueryThreshold = 200 * time.Millisecond
	DefaultMaxQueryLength     = 1000
)

// Settings controls how a connection reports its statements: when a row
// query counts as slow, how much SQL text reaches the log, and whether bound
// row values are logged alongside it.
type Settings struct {
	slowQueryThreshold time.Duration
	maxQueryLength     int
	logQueryParameters bool
}

// Context is what TrackDBOperation needs from the owning driver.
type Context struct {
	Logger   logger.Logger
	Dialect  types.Dialect
	Settings Settings
}

// NewSettings reads the database.query section of cfg. A nil cfg yields the defaults.
func NewSettings(cfg *config.DatabaseConfig) Settings {
	if cfg == nil {
		return Settings{slowQueryThreshold: DefaultSlowQueryThreshold, maxQueryLength: DefaultMaxQueryLength}
	}
	return Settings{
		slowQueryThreshold: positiveOr(cfg.Query.Slow.Threshold, DefaultSlowQueryThreshold),
		maxQueryLength:     positiveOr(cfg.Query.Log.MaxLength, DefaultMaxQueryLength),
		logQueryParameters: cfg.Query.Log.Parameters,
	}
}

func positiveOr[T int | time.Duration](v, fallback T) T {
	if v > 0 {
		return v
	}
	return fallback
}

func (s Settings) SlowQueryThreshold() time.Duration { return s.slowQueryThreshold }

// MaxQueryLength is the number of SQL bytes logged before truncation.
func (s Settings) MaxQueryLength() int { return s.maxQueryLength }

// LogQueryParameters reports whether bound values are logged. They may carry
// secret column contents, so it is off unless configured.
func (s Settings) LogQueryParameters() bool { return s.logQueryParameters }
