package cache

import (
	"context"
	"time"
)

// BytesCache stores raw bytes with a TTL. A miss is (nil, false, nil).
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config selects the response cache backend.
type Config struct {
	Backend   string        `yaml:"backend" default:"memory" validate:"oneof=memory redis layered none"`
	TTL       time.Duration `yaml:"ttl" default:"15s"`
	LocalTTL  time.Duration `yaml:"local_ttl" default:"3s"` // L1 lifetime of the layered backend
	KeyPrefix string        `yaml:"key_prefix" default:"chartdesk:candles:"`
}
