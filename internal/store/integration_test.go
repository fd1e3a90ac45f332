//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStore_LockRoundTrip exercises the conditional-write lock protocol
// against a real MongoDB instance. Run with:
//
//	MONGO_TEST_URI=mongodb://localhost:27017 go test -tags=integration ./internal/store/...
func TestStore_LockRoundTrip(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	s, err := Connect(ctx, uri, "taskkeeper_test_"+uuid.NewString(), 10*time.Second)
	require.NoError(t, err)
	defer s.Close(ctx)
	require.NoError(t, s.EnsureIndexes(ctx))

	lockName := "test-lock"
	now := time.Now().UTC()

	acquired, err := s.TryAcquireLock(ctx, lockName, "node-a", now)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquiredAgain, err := s.TryAcquireLock(ctx, lockName, "node-b", now)
	require.NoError(t, err)
	assert.False(t, acquiredAgain)

	kept, err := s.KeepLock(ctx, lockName, "node-a", now.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, kept)

	require.NoError(t, s.ReleaseLock(ctx, lockName, "node-a"))

	acquiredAfterRelease, err := s.TryAcquireLock(ctx, lockName, "node-b", now.Add(2*time.Second))
	require.NoError(t, err)
	assert.True(t, acquiredAfterRelease)
}

func TestStore_ScheduleRunLifecycle(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	s, err := Connect(ctx, uri, "taskkeeper_test_"+uuid.NewString(), 10*time.Second)
	require.NoError(t, err)
	defer s.Close(ctx)
	require.NoError(t, s.EnsureIndexes(ctx))

	name := "test-task"
	require.NoError(t, s.UpsertSchedule(ctx, name, "0 * * * *", nil))

	sched, err := s.GetSchedule(ctx, name)
	require.NoError(t, err)
	require.NotNil(t, sched)
	assert.True(t, sched.Active)

	runID, err := s.AddScheduleRun(ctx, name, "host-a", time.Now().UTC(), "starting")
	require.NoError(t, err)
	assert.Positive(t, runID)

	require.NoError(t, s.SetStatus(ctx, runID, "DONE", time.Now().UTC(), "ok", nil))

	run, err := s.GetScheduleRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "DONE", string(run.Status))
}

func TestStore_SetStatus_RejectsRepeatTerminalWrite(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	s, err := Connect(ctx, uri, "taskkeeper_test_"+uuid.NewString(), 10*time.Second)
	require.NoError(t, err)
	defer s.Close(ctx)
	require.NoError(t, s.EnsureIndexes(ctx))

	name := "test-task"
	require.NoError(t, s.UpsertSchedule(ctx, name, "0 * * * *", nil))

	runID, err := s.AddScheduleRun(ctx, name, "host-a", time.Now().UTC(), "starting")
	require.NoError(t, err)

	require.NoError(t, s.SetStatus(ctx, runID, "DONE", time.Now().UTC(), "ok", nil))

	err = s.SetStatus(ctx, runID, "FAILED", time.Now().UTC(), "should not stick", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errRunAlreadyTerminal))

	run, err := s.GetScheduleRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "DONE", string(run.Status), "the first terminal write must not be overwritten")
}
