// Package eventlog stores bounded, append-only event streams (risk changes, drawings, feedback).
package eventlog

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"ChartDesk/internal/domain/repository"
)

// DefaultMaxEntries bounds each stream when no limit is configured.
const DefaultMaxEntries = 500

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config selects and sizes the backend.
type Config struct {
	Backend    string `yaml:"backend" default:"memory"`
	MaxEntries int    `yaml:"max_entries" default:"500"`
	SQLitePath string `yaml:"sqlite_path" default:"data/events.db"`
	KeyPrefix  string `yaml:"key_prefix" default:"chartdesk:events"`
}

// New opens the configured backend. rdb is only used by the redis backend.
func New(cfg Config, rdb *redis.Client) (repository.EventLog, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendMemory:
		return NewMemory(cfg.MaxEntries), nil
	case BackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("eventlog: redis backend requires a redis client")
		}
		return NewRedis(rdb, cfg.KeyPrefix, cfg.MaxEntries), nil
	case BackendSQLite:
		return NewSQLite(cfg.SQLitePath, cfg.MaxEntries)
	default:
		return nil, fmt.Errorf("eventlog: unknown backend %q", cfg.Backend)
	}
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return DefaultMaxEntries
	}
	return n
}
