package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChartDesk/internal/domain/models"
)

var t0 = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func event(stream string, i int) models.LogEvent {
	return models.LogEvent{
		Stream:  stream,
		Kind:    "risk",
		Payload: map[string]any{"seq": float64(i)},
		At:      t0.Add(time.Duration(i) * time.Second),
	}
}

func TestMemory_TrimsAndReadsLast(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Append(ctx, event("risk", i)))
	}
	require.NoError(t, m.Append(ctx, event("feedback", 9)))

	all, err := m.ReadLast(ctx, "risk", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, float64(2), all[0].Payload["seq"])
	assert.Equal(t, float64(4), all[2].Payload["seq"])

	last, _ := m.ReadLast(ctx, "risk", 1)
	require.Len(t, last, 1)
	assert.Equal(t, float64(4), last[0].Payload["seq"])

	none, _ := m.ReadLast(ctx, "unknown", 5)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestRedis_AppendPushesAndTrims(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	log := NewRedis(rdb, "test", 100)

	e := event("risk", 1)
	b, err := json.Marshal(e)
	require.NoError(t, err)

	mock.ExpectTxPipeline()
	mock.ExpectRPush("test:risk", string(b)).SetVal(1)
	mock.ExpectLTrim("test:risk", -100, -1).SetVal("OK")
	mock.ExpectTxPipelineExec()

	require.NoError(t, log.Append(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_AppendPropagatesErrors(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	log := NewRedis(rdb, "test", 100)

	e := event("risk", 1)
	b, _ := json.Marshal(e)
	mock.ExpectTxPipeline()
	mock.ExpectRPush("test:risk", string(b)).SetErr(errors.New("connection refused"))
	mock.ExpectLTrim("test:risk", -100, -1).SetVal("OK")
	mock.ExpectTxPipelineExec()

	err := log.Append(context.Background(), e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append test:risk")
}

func TestRedis_ReadLastDecodesAndSkipsGarbage(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	log := NewRedis(rdb, "test", 100)

	first, _ := json.Marshal(event("risk", 1))
	second, _ := json.Marshal(event("risk", 2))
	mock.ExpectLRange("test:risk", -10, -1).SetVal([]string{string(first), "not-json", string(second)})

	got, err := log.ReadLast(context.Background(), "risk", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, float64(1), got[0].Payload["seq"])
	assert.True(t, got[1].At.Equal(t0.Add(2*time.Second)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_AppendTrimReadLast(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "events.db")
	log, err := NewSQLite(path, 4)
	require.NoError(t, err)
	defer log.Close()

	for i := 0; i < 6; i++ {
		require.NoError(t, log.Append(ctx, event("drawings", i)))
	}
	require.NoError(t, log.Append(ctx, event("feedback", 42)))

	got, err := log.ReadLast(ctx, "drawings", 0)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, e := range got {
		assert.Equal(t, float64(i+2), e.Payload["seq"])
		assert.Equal(t, "drawings", e.Stream)
		assert.True(t, e.At.Equal(t0.Add(time.Duration(i+2)*time.Second)))
	}

	last2, err := log.ReadLast(ctx, "drawings", 2)
	require.NoError(t, err)
	require.Len(t, last2, 2)
	assert.Equal(t, float64(5), last2[1].Payload["seq"])

	other, err := log.ReadLast(ctx, "feedback", 10)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, float64(42), other[0].Payload["seq"])
}

func TestNew_SelectsBackend(t *testing.T) {
	mem, err := New(Config{Backend: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, mem)

	_, err = New(Config{Backend: "redis"}, nil)
	assert.Error(t, err)

	rdb, _ := redismock.NewClientMock()
	r, err := New(Config{Backend: "REDIS"}, rdb)
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, r)

	s, err := New(Config{Backend: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "e.db")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = New(Config{Backend: "kafka"}, nil)
	assert.EqualError(t, err, fmt.Sprintf("eventlog: unknown backend %q", "kafka"))
}
