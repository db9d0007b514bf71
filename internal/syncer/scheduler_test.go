package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_Spec(t *testing.T) {
	s := NewScheduler(NewManager(nil, nil, nil), 15*time.Minute, zap.NewNop())
	assert.Equal(t, "@every 15m0s", s.Spec())
}

func TestScheduler_RejectsNonPositiveInterval(t *testing.T) {
	s := NewScheduler(NewManager(nil, nil, nil), 0, zap.NewNop())
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sync interval")
}

func TestScheduler_RunsUntilCanceled(t *testing.T) {
	store := newTestStore(t)
	source := &fakeSource{result: completeResult(rawJob("uid-1", "1001", "One"))}
	s := NewScheduler(newTestManager(source, store), time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		run, err := store.GetLastSyncRun(context.Background())
		return err == nil && run != nil
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
