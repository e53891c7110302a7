package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewQueue(client, nil), mr, client
}

func TestEnqueueDequeueAttendance(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	meetingID := uuid.New()
	require.NoError(t, q.EnqueueAttendance(ctx, AttendancePayload{MeetingID: meetingID}))

	job, key, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, QueueAttendance, key)
	assert.Equal(t, JobTypeAttendance, job.Type)
	assert.Equal(t, 0, job.Attempt)
	assert.NotEmpty(t, job.ID)

	var payload AttendancePayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, meetingID, payload.MeetingID)
}

func TestRetryReEnqueues(t *testing.T) {
	q, mr, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueAttendance(ctx, AttendancePayload{MeetingID: uuid.New()}))
	job, _, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)

	require.NoError(t, q.Retry(ctx, job))
	assert.Equal(t, 1, job.Attempt)

	retried, _, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, retried)
	assert.Equal(t, job.ID, retried.ID)
	assert.Equal(t, 1, retried.Attempt)
	assert.False(t, mr.Exists(QueueDLQ))
}

func TestRetryMovesToDLQAfterMaxRetries(t *testing.T) {
	q, mr, client := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueAttendance(ctx, AttendancePayload{MeetingID: uuid.New()}))
	job, _, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)

	job.Attempt = MaxRetries - 1
	require.NoError(t, q.Retry(ctx, job))

	assert.False(t, mr.Exists(QueueAttendance), "exhausted job must not return to the work queue")
	dlqLen, err := client.LLen(ctx, QueueDLQ).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), dlqLen)

	raw, err := client.LIndex(ctx, QueueDLQ, 0).Result()
	require.NoError(t, err)
	var dead Job
	require.NoError(t, json.Unmarshal([]byte(raw), &dead))
	assert.Equal(t, job.ID, dead.ID)
	assert.Equal(t, MaxRetries, dead.Attempt)
}
