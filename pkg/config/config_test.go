package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, 4, 5}, c.Model.StateCounts)
	assert.Equal(t, 10, c.Model.Restarts)
	assert.Equal(t, 200, c.Model.MaxIter)
	assert.InDelta(t, 0.01, c.Model.Tol, 1e-12)
	assert.Equal(t, []string{"^GSPC"}, c.Data.Symbols)
	assert.Equal(t, "csv", c.Data.Source)
	assert.Equal(t, 15*time.Second, c.Server.ReadTimeout)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.Equal(t, 1, c.Jobs.Workers)
	assert.InDelta(t, 5.0, c.Server.AnalyzeBurst, 1e-12)
	assert.Equal(t, models.AllocationPolicy{0: 1, 1: 0, 2: 0.3, 3: 1, 4: 0.7}, c.Policy())
	assert.Equal(t, time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), c.DataFrom())
}

func TestLoad_SampleFile(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "console", c.Log.Format)
	assert.Empty(t, c.Backtest.RegimeNames)
}

func TestLoad_RegimeNames(t *testing.T) {
	path := writeConfig(t, `
backtest:
  regime_names:
    0: calm
    4: stress
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{0: "calm", 4: "stress"}, c.Backtest.RegimeNames)
}

func TestLoad_AllocationReplacesDefault(t *testing.T) {
	path := writeConfig(t, `
model:
  state_counts: [2]
backtest:
  allocation:
    0: 0.5
    1: 1.0
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, models.AllocationPolicy{0: 0.5, 1: 1.0}, c.Policy())
}

func TestLoad_PolicyMustCoverLargestModel(t *testing.T) {
	path := writeConfig(t, `
model:
  state_counts: [2, 3]
backtest:
  allocation:
    0: 1.0
    1: 0.0
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConfiguration))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad source", "data:\n  source: parquet\n"},
		{"state count below two", "model:\n  state_counts: [1, 2]\n"},
		{"bad date", "data:\n  from: 01/02/2005\n"},
		{"clickhouse without host", "data:\n  source: clickhouse\n"},
		{"kafka without brokers", "kafka:\n  enabled: true\n"},
		{"jobs without redis", "jobs:\n  enabled: true\n"},
		{"bad cron", "schedule:\n  enabled: true\n  cron: every day\n"},
		{"negative weight", "backtest:\n  allocation: {0: 1, 1: -0.5, 2: 0, 3: 0, 4: 0}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("REGIME_SYMBOLS", "spy, qqq ,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REGIME_DATA_SOURCE", "clickhouse")
	t.Setenv("CLICKHOUSE_HOST", "ch")

	c, err := LoadWithEnv(writeConfig(t, "environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"spy", "qqq"}, c.Data.Symbols)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Cache.Redis.Enabled)
	assert.Equal(t, "redis:6379", c.Cache.Redis.Addr)
	assert.Equal(t, "clickhouse", c.Data.Source)
	assert.Equal(t, "ch", c.ClickHouse.Host)
}
