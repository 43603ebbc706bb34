package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChartDesk/internal/service/cache"
	"ChartDesk/pkg/config"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Logger.Output = "stderr"
	cfg.Logger.Level = "error"
	return cfg
}

func TestInitializeApp_Defaults(t *testing.T) {
	app, err := InitializeApp(defaultConfig(t))
	require.NoError(t, err)
	assert.NotNil(t, app)
}

func TestInitializeApp_BadEventLogBackend(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.EventLog.Backend = "tape"

	_, err := InitializeApp(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event log")
}

func TestProvideResponseCache(t *testing.T) {
	cfg := defaultConfig(t)
	assert.IsType(t, &cache.TTLCache{}, ProvideResponseCache(cfg, nil))

	cfg.Cache.Backend = "none"
	assert.Nil(t, ProvideResponseCache(cfg, nil))

	cfg.Cache.Backend = "redis"
	assert.Nil(t, ProvideResponseCache(cfg, nil))
}

func TestOptionalBackendsDisabled(t *testing.T) {
	cfg := defaultConfig(t)

	rdb, err := ProvideRedis(cfg)
	require.NoError(t, err)
	assert.Nil(t, rdb)

	ch, err := ProvideClickHouseClient(cfg)
	require.NoError(t, err)
	assert.Nil(t, ch)
	assert.Nil(t, ProvideCandleArchive(cfg, nil, nil))

	producer, err := ProvideKafkaProducer(cfg, ProvideRegistry())
	require.NoError(t, err)
	assert.Nil(t, producer)
	assert.Nil(t, ProvidePublishPipeline(cfg, nil, nil))
	assert.Nil(t, ProvideLimiter(&config.Config{}))
}

func TestProvideHandlers_DeskToggle(t *testing.T) {
	cfg := defaultConfig(t)
	assert.Len(t, ProvideHandlers(cfg, nil, nil, nil, nil, nil, nil, nil), 3)

	cfg.Desk.Enabled = false
	assert.Len(t, ProvideHandlers(cfg, nil, nil, nil, nil, nil, nil, nil), 2)
}
