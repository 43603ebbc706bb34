package eventlog

import (
	"context"
	"sync"

	"ChartDesk/internal/domain/models"
)

// Memory keeps streams in process.
type Memory struct {
	mu      sync.RWMutex
	max     int
	streams map[string][]models.LogEvent
}

func NewMemory(maxEntries int) *Memory {
	return &Memory{max: limitOrDefault(maxEntries), streams: map[string][]models.LogEvent{}}
}

func (m *Memory) Append(_ context.Context, e models.LogEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := append(m.streams[e.Stream], e)
	if len(s) > m.max {
		s = append([]models.LogEvent(nil), s[len(s)-m.max:]...)
	}
	m.streams[e.Stream] = s
	return nil
}

func (m *Memory) ReadLast(_ context.Context, stream string, n int) ([]models.LogEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.streams[stream]
	if n <= 0 || n > len(s) {
		n = len(s)
	}
	return append([]models.LogEvent{}, s[len(s)-n:]...), nil
}

func (m *Memory) Close() error { return nil }
