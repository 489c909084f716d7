package sagaflow

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLetter(step StepName, failedAt time.Time) DeadLetter {
	return DeadLetter{
		ID:         uuid.NewString(),
		SagaID:     NewSagaID().String(),
		Definition: "checkout",
		EntityID:   "order-1",
		Step:       step,
		Error:      "compensation of step " + string(step) + " failed: timeout",
		Entity:     json.RawMessage(`{"id":"order-1"}`),
		FailedAt:   failedAt.UTC(),
	}
}

func TestNewDeadLetter(t *testing.T) {
	sagaID := NewSagaID()
	entity := newTestEntity("order-9")
	entity.Applied["ship"] = true

	letter := newDeadLetter(sagaID, "checkout", entity, CompensationFailed("ship", errors.New("carrier offline")))

	assert.NotEmpty(t, letter.ID)
	assert.Equal(t, sagaID.String(), letter.SagaID)
	assert.Equal(t, "checkout", letter.Definition)
	assert.Equal(t, "order-9", letter.EntityID)
	assert.Equal(t, StepName("ship"), letter.Step)
	assert.Equal(t, "compensation of step ship failed: carrier offline", letter.Error)
	assert.JSONEq(t, `{"id":"order-9","confirmed":false,"applied":{"ship":true}}`, string(letter.Entity))
	assert.WithinDuration(t, time.Now(), letter.FailedAt, time.Minute)
}

func TestMemorySink(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()

	first := testLetter("ship", time.Now())
	second := testLetter("charge", time.Now())
	require.NoError(t, sink.Report(ctx, first))
	require.NoError(t, sink.Report(ctx, second))

	letters, err := sink.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []DeadLetter{first, second}, letters)
	assert.Equal(t, 2, sink.Len())
}

func TestFileSink(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "letters")

	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	now := time.Now()
	later := testLetter("charge", now.Add(time.Second))
	earlier := testLetter("ship", now)
	require.NoError(t, sink.Report(ctx, later))
	require.NoError(t, sink.Report(ctx, earlier))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644))

	letters, err := sink.List(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 2)
	assert.Equal(t, earlier.ID, letters[0].ID)
	assert.Equal(t, later.ID, letters[1].ID)
	assert.Equal(t, earlier.Step, letters[0].Step)
	assert.JSONEq(t, string(earlier.Entity), string(letters[0].Entity))

	require.NoError(t, sink.Delete(ctx, earlier.ID))
	assert.ErrorIs(t, sink.Delete(ctx, earlier.ID), os.ErrNotExist, "a deleted letter is gone")

	letters, err = sink.List(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, later.ID, letters[0].ID)
}

func TestFileSink_RejectsInvalidIDs(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	dir := filepath.Join(root, "letters")

	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	outside := filepath.Join(root, "victim.json")
	require.NoError(t, os.WriteFile(outside, []byte("{}"), 0o644))

	for _, id := range []string{"../victim", "", "not-a-uuid", "../../etc/passwd"} {
		assert.ErrorIs(t, sink.Delete(ctx, id), ErrInvalidDeadLetterID, "id %q", id)
	}
	assert.FileExists(t, outside)

	letter := testLetter("charge", time.Now())
	letter.ID = "../victim"
	assert.ErrorIs(t, sink.Report(ctx, letter), ErrInvalidDeadLetterID)
}

func TestFileSink_DeleteUnknown(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	err = sink.Delete(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NotErrorIs(t, err, ErrInvalidDeadLetterID)
}

func TestFileSink_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))

	_, err = sink.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal dead letter broken.json")
}

func TestFileSink_WithOrchestrator(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	steps := newTestSteps(3, nil)
	steps[2].failForward = errors.New("forward failed")
	steps[0].failCompensate = errors.New("undo failed")

	exec := NewOrchestrator(buildTestDefinition(t, "filed", steps...), WithDeadLetterSink(sink)).
		NewExecution(newTestEntity("e-file"))
	require.Error(t, exec.Execute(context.Background()))

	letters, err := sink.List(context.Background())
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, stepName(1), letters[0].Step)
	assert.Equal(t, "e-file", letters[0].EntityID)
}

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not available on localhost:6379: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisSink(t *testing.T) {
	client := newTestRedisClient(t)
	ctx := context.Background()

	key := "sagaflow:test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	sink := NewRedisSink(client, key)
	first := testLetter("ship", time.Now())
	second := testLetter("charge", time.Now())
	require.NoError(t, sink.Report(ctx, first))
	require.NoError(t, sink.Report(ctx, second))

	letters, err := sink.List(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 2)
	assert.Equal(t, first.ID, letters[0].ID)
	assert.Equal(t, second.ID, letters[1].ID)
	assert.Equal(t, int64(2), client.LLen(ctx, key).Val())
}

func TestNewRedisSink_DefaultKey(t *testing.T) {
	sink := NewRedisSink(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "")
	assert.Equal(t, DefaultRedisKey, sink.key)
}
