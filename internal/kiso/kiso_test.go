package kiso

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startActor(t *testing.T, initial ConfigDTO) (*Handle, context.CancelFunc) {
	t.Helper()
	actor, handle := New(initial)
	ctx, cancel := context.WithCancel(context.Background())
	go actor.Run(ctx)
	t.Cleanup(cancel)
	return handle, cancel
}

func TestGetSnapshotReturnsCurrentState(t *testing.T) {
	h, _ := startActor(t, ConfigDTO{LogLevel: "warn"})

	dto, err := h.GetSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "warn", dto.LogLevel)
}

func TestUpdateChangesSnapshot(t *testing.T) {
	h, _ := startActor(t, ConfigDTO{LogLevel: "warn"})

	require.NoError(t, h.Update(context.Background(), ConfigDTO{LogLevel: "debug"}))

	dto, err := h.GetSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "debug", dto.LogLevel)
}

func TestSubscribeLogLevelDeliversUpdate(t *testing.T) {
	h, _ := startActor(t, ConfigDTO{LogLevel: "warn"})

	ch, err := h.SubscribeLogLevel(context.Background())
	require.NoError(t, err)

	select {
	case <-ch:
		t.Fatal("subscriber must not see a value before any update")
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, h.Update(context.Background(), ConfigDTO{LogLevel: "debug"}))

	select {
	case level := <-ch:
		assert.Equal(t, "debug", level)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not observe the update")
	}
}

func TestSubscribeLogLevelIsLossyUnderBacklog(t *testing.T) {
	h, _ := startActor(t, ConfigDTO{LogLevel: "warn"})

	ch, err := h.SubscribeLogLevel(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.Update(context.Background(), ConfigDTO{LogLevel: "info"}))
	require.NoError(t, h.Update(context.Background(), ConfigDTO{LogLevel: "debug"}))
	require.NoError(t, h.Update(context.Background(), ConfigDTO{LogLevel: "trace"}))

	select {
	case level := <-ch:
		assert.Equal(t, "trace", level, "a lagging subscriber only ever sees the newest value")
	case <-time.After(time.Second):
		t.Fatal("subscriber did not observe any update")
	}

	select {
	case <-ch:
		t.Fatal("no further values should be queued")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestHandleReturnsErrClosedAfterActorShutdown(t *testing.T) {
	h, cancel := startActor(t, ConfigDTO{LogLevel: "warn"})
	cancel()
	time.Sleep(30 * time.Millisecond)

	_, err := h.GetSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
