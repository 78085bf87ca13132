package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
	"RegimeLab/pkg/cache"
)

type capturedMessage struct {
	topic string
	key   []byte
	value interface{}
}

type fakeProducer struct {
	msgs   []capturedMessage
	closed bool
}

func (p *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.msgs = append(p.msgs, capturedMessage{topic, key, value})
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

func TestKafkaEventPublisher(t *testing.T) {
	fp := &fakeProducer{}
	pub := NewKafkaEventPublisher(fp, "regime.analysis")

	require.NoError(t, pub.PublishAnalysis(context.Background(), sampleReport().Summary()))
	require.Len(t, fp.msgs, 1)
	msg := fp.msgs[0]
	assert.Equal(t, "regime.analysis", msg.topic)
	assert.Equal(t, []byte("SPY"), msg.key)

	ev, ok := msg.value.(AnalysisEvent)
	require.True(t, ok)
	assert.Equal(t, EventAnalysisCompleted, ev.Type)
	assert.Equal(t, 2, ev.Summary.NStates)

	_, err := json.Marshal(ev)
	assert.NoError(t, err)

	require.NoError(t, pub.Close())
	assert.True(t, fp.closed)
}

func TestCachedReportsRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := NewCachedReports(mc, time.Hour)

	_, err := store.LatestReport(ctx, "SPY")
	assert.ErrorIs(t, err, models.ErrRunNotFound)

	want := sampleReport()
	require.NoError(t, store.PutReport(ctx, want))

	got, err := store.LatestReport(ctx, "spy")
	require.NoError(t, err)
	assert.Equal(t, want.RunID, got.RunID)
	assert.Equal(t, want.Selection.Regimes, got.Selection.Regimes)
	assert.Equal(t, want.Policy, got.Policy)
	require.NotNil(t, got.Backtest.Strategy.Metrics.Sharpe)
	assert.Equal(t, 0.8, *got.Backtest.Strategy.Metrics.Sharpe)
	assert.Nil(t, got.Backtest.Baseline.Metrics.Sharpe)
	assert.True(t, want.Dates[0].Equal(got.Dates[0]))
}
