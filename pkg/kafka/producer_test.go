package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	require.Error(t, err)

	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithTopic("candles"))
	require.NoError(t, err)
	assert.Equal(t, "candles", p.Topic())
}

func TestProducer_PublishEncodesAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	w := &memWriter{}
	p, err := NewProducerWithWriter(w, WithTopic("candles"), WithMetrics(NewProducerMetrics(reg)))
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), "", []byte("AAPL"), map[string]int{"count": 2}))
	require.NoError(t, p.Publish(context.Background(), "other", nil, "raw"))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "candles", w.msgs[0].Topic)
	assert.Equal(t, []byte("AAPL"), w.msgs[0].Key)
	var decoded map[string]int
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, 2, decoded["count"])
	assert.Equal(t, "raw", string(w.msgs[1].Value))

	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.msgs.WithLabelValues("candles", "snappy", "ok")))
}

func TestProducer_PublishError(t *testing.T) {
	reg := prometheus.NewRegistry()
	w := &memWriter{err: errors.New("leader not available")}
	p, err := NewProducerWithWriter(w, WithMetrics(NewProducerMetrics(reg)))
	require.NoError(t, err)

	err = p.Publish(context.Background(), "", nil, []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, w.err)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.errs.WithLabelValues("chartdesk.candles")))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
