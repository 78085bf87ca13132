package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/pkg/logger"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

type fakeJob struct {
	err  error
	seen []json.RawMessage
}

func (j *fakeJob) Name() string { return "fake" }
func (j *fakeJob) Type() string { return "fake.run" }
func (j *fakeJob) Handle(_ context.Context, payload json.RawMessage) error {
	j.seen = append(j.seen, payload)
	return j.err
}

func newTestQueue(t *testing.T, job *fakeJob) (*RedisQueue, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	q := NewRedisQueue(logger.NewNop(), Config{RetryLimit: 1, RetryDelay: time.Minute}, db,
		WithClock(func() time.Time { return fixedNow }, func() string { return "job-1" }))
	q.RegisterJob(job)
	return q, mock
}

func encodeMessage(t *testing.T, msg Message) string {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return string(b)
}

func baseMessage() Message {
	return Message{
		ID:         "job-1",
		Type:       "fake.run",
		Payload:    json.RawMessage(`{"symbol":"SPY"}`),
		EnqueuedAt: fixedNow,
	}
}

func TestEnqueue(t *testing.T) {
	q, mock := newTestQueue(t, &fakeJob{})
	mock.ExpectLPush("regimelab:queue:messages", encodeMessage(t, baseMessage())).SetVal(1)

	id, err := q.Enqueue(context.Background(), "fake.run", map[string]string{"symbol": "SPY"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = q.Enqueue(context.Background(), "unknown", nil)
	assert.Error(t, err)
}

func TestProcessNext_Success(t *testing.T) {
	job := &fakeJob{}
	q, mock := newTestQueue(t, job)
	mock.ExpectBRPop(time.Second, "regimelab:queue:messages").
		SetVal([]string{"regimelab:queue:messages", encodeMessage(t, baseMessage())})

	q.processNext(context.Background())

	require.Len(t, job.seen, 1)
	assert.JSONEq(t, `{"symbol":"SPY"}`, string(job.seen[0]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessNext_Empty(t *testing.T) {
	job := &fakeJob{}
	q, mock := newTestQueue(t, job)
	mock.ExpectBRPop(time.Second, "regimelab:queue:messages").RedisNil()

	q.processNext(context.Background())
	assert.Empty(t, job.seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_FailureSchedulesRetry(t *testing.T) {
	q, mock := newTestQueue(t, &fakeJob{err: errors.New("boom")})

	retried := baseMessage()
	retried.Attempts = 1
	retried.LastError = "boom"
	mock.ExpectZAdd("regimelab:queue:retry", redis.Z{
		Score:  float64(fixedNow.Add(time.Minute).Unix()),
		Member: encodeMessage(t, retried),
	}).SetVal(1)

	q.process(context.Background(), baseMessage())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_DeadLetters(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		attempts int
	}{
		{"permanent", Permanent(errors.New("bad input")), 0},
		{"retries exhausted", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, mock := newTestQueue(t, &fakeJob{err: tt.err})
			msg := baseMessage()
			msg.Attempts = tt.attempts

			dead := msg
			dead.Attempts++
			dead.LastError = tt.err.Error()
			mock.ExpectLPush("regimelab:queue:dlq", encodeMessage(t, dead)).SetVal(1)

			q.process(context.Background(), msg)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPermanent(t *testing.T) {
	base := errors.New("x")
	assert.Nil(t, Permanent(nil))
	assert.True(t, IsPermanent(Permanent(base)))
	assert.ErrorIs(t, Permanent(base), base)
	assert.False(t, IsPermanent(base))
}

func TestParsePayload(t *testing.T) {
	type req struct {
		Symbol string `json:"symbol"`
	}
	got, err := ParsePayload[req](json.RawMessage(`{"symbol":"SPY"}`))
	require.NoError(t, err)
	assert.Equal(t, "SPY", got.Symbol)

	_, err = ParsePayload[req](json.RawMessage(`[`))
	assert.Error(t, err)
}
