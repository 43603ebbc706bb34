package repository

import (
	"context"
	"time"

	"ChartDesk/internal/domain/models"
	domrepo "ChartDesk/internal/domain/repository"
	pkgkafka "ChartDesk/pkg/kafka"
)

// SeriesMessage is the value written for every published series.
type SeriesMessage struct {
	Symbol      string          `json:"symbol"`
	Interval    string          `json:"interval"`
	Candles     []models.Candle `json:"candles"`
	PublishedAt int64           `json:"publishedAt"`
}

// KafkaPublisher publishes series keyed by symbol.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	now      func() time.Time
}

var _ domrepo.CandlePublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates Kafka publisher. An empty topic uses the producer default.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *KafkaPublisher) PublishSeries(ctx context.Context, iv domrepo.Interval, s models.Series) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Symbol), SeriesMessage{
		Symbol:      s.Symbol,
		Interval:    iv.ProviderCode(),
		Candles:     s.Candles,
		PublishedAt: p.now().Unix(),
	})
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
