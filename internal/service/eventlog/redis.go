package eventlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ChartDesk/internal/domain/models"
)

// Redis keeps each stream in a capped list.
type Redis struct {
	cli    *redis.Client
	prefix string
	max    int
}

func NewRedis(cli *redis.Client, prefix string, maxEntries int) *Redis {
	if prefix == "" {
		prefix = "chartdesk:events"
	}
	return &Redis{cli: cli, prefix: prefix, max: limitOrDefault(maxEntries)}
}

func (r *Redis) key(stream string) string { return r.prefix + ":" + stream }

func (r *Redis) Append(ctx context.Context, e models.LogEvent) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	key := r.key(e.Stream)
	_, err = r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, string(b))
		pipe.LTrim(ctx, key, int64(-r.max), -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append %s: %w", key, err)
	}
	return nil
}

func (r *Redis) ReadLast(ctx context.Context, stream string, n int) ([]models.LogEvent, error) {
	if n <= 0 || n > r.max {
		n = r.max
	}
	key := r.key(stream)
	raw, err := r.cli.LRange(ctx, key, int64(-n), -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []models.LogEvent{}, nil
		}
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	out := make([]models.LogEvent, 0, len(raw))
	for _, item := range raw {
		var e models.LogEvent
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Close leaves the shared client open; its owner closes it.
func (r *Redis) Close() error { return nil }
