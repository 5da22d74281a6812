package inference

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const waitFor = 2 * time.Second

func newTestClient(t *testing.T, loader PipelineLoader) (*Client, *stateRecorder) {
	t.Helper()
	c := NewClient(NewWorker(loader, newTestLogger()), newTestLogger())
	rec := &stateRecorder{}
	c.Subscribe(rec.record)
	return c, rec
}

func statusIs(c *Client, want PipelineStatus) func() bool {
	return func() bool { return c.State().Status == want }
}

func TestClient_StatusSequence(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c, rec := newTestClient(t, staticLoader(&fakeModel{answer: " Overflowing trash can."}))
	defer c.Close()
	assert.Equal(t, StatusIdle, c.State().Status)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, statusIs(c, StatusReady), waitFor, 5*time.Millisecond)

	require.NoError(t, c.Query(InferenceRequest{Image: dataURL(t, 8, 8), Prompt: "What is this?"}))
	require.Eventually(t, func() bool { return c.State().Response != nil }, waitFor, 5*time.Millisecond)

	s := c.State()
	assert.Equal(t, StatusReady, s.Status)
	assert.False(t, s.Pending)
	assert.Nil(t, s.Error)
	assert.Equal(t, "Overflowing trash can.", *s.Response)

	assert.Equal(t, []PipelineStatus{StatusInitializing, StatusReady, StatusWorking, StatusReady}, rec.statuses())

	responses := 0
	var last *string
	for _, st := range rec.all() {
		if st.Response != nil && st.Response != last {
			responses++
		}
		last = st.Response
	}
	assert.Equal(t, 1, responses)
}

func TestClient_QueryWhenNotReadyIsNoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	loader := LoaderFunc(func(ctx context.Context) (*Pipeline, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return testPipeline(&fakeModel{answer: "ok"}), nil
	})
	c, rec := newTestClient(t, loader)
	defer c.Close()

	req := InferenceRequest{Image: dataURL(t, 8, 8), Prompt: "q"}
	assert.ErrorIs(t, c.Query(req), ErrNotReady)
	assert.Equal(t, State{Status: StatusIdle}, c.State())
	assert.Empty(t, rec.all())

	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Query(req), ErrNotReady)
	assert.Equal(t, StatusInitializing, c.State().Status)
	assert.Len(t, rec.all(), 1)

	close(release)
	require.Eventually(t, statusIs(c, StatusReady), waitFor, 5*time.Millisecond)
}

func TestClient_PendingUntilAcknowledged(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	model := &fakeModel{answer: "ok", block: make(chan struct{})}
	c, rec := newTestClient(t, staticLoader(model))
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, statusIs(c, StatusReady), waitFor, 5*time.Millisecond)

	require.NoError(t, c.Query(InferenceRequest{Image: dataURL(t, 8, 8), Prompt: "q"}))
	require.Eventually(t, func() bool {
		s := c.State()
		return s.Status == StatusWorking && !s.Pending
	}, waitFor, 5*time.Millisecond)

	sawPending := false
	for _, s := range rec.all() {
		if s.Status == StatusWorking && s.Pending {
			sawPending = true
			assert.Nil(t, s.Response)
			assert.Nil(t, s.Error)
		}
	}
	assert.True(t, sawPending)

	assert.ErrorIs(t, c.Query(InferenceRequest{Image: dataURL(t, 8, 8), Prompt: "again"}), ErrNotReady)

	close(model.block)
	require.Eventually(t, statusIs(c, StatusReady), waitFor, 5*time.Millisecond)
}

func TestClient_QueryErrorIsTerminal(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c, _ := newTestClient(t, staticLoader(&fakeModel{err: errors.New("boom")}))
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, statusIs(c, StatusReady), waitFor, 5*time.Millisecond)

	require.NoError(t, c.Query(InferenceRequest{Image: dataURL(t, 8, 8), Prompt: "q"}))
	require.Eventually(t, statusIs(c, StatusError), waitFor, 5*time.Millisecond)

	s := c.State()
	require.NotNil(t, s.Error)
	assert.Equal(t, "boom", *s.Error)
	assert.Nil(t, s.Response)
	assert.ErrorIs(t, c.Query(InferenceRequest{Image: dataURL(t, 8, 8), Prompt: "q"}), ErrNotReady)
}

func TestClient_LoadFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	loader := LoaderFunc(func(ctx context.Context) (*Pipeline, error) {
		return nil, errors.New("no such model")
	})
	c, _ := newTestClient(t, loader)
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, statusIs(c, StatusError), waitFor, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	s := c.State()
	require.NotNil(t, s.Error)
	assert.Equal(t, "no such model", *s.Error)
}

func TestClient_WorkerExit(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	c, _ := newTestClient(t, staticLoader(&fakeModel{answer: "ok"}))
	defer c.Close()

	require.NoError(t, c.Start(ctx))
	require.Eventually(t, statusIs(c, StatusReady), waitFor, 5*time.Millisecond)

	cancel()
	require.Eventually(t, statusIs(c, StatusError), waitFor, 5*time.Millisecond)
	assert.Equal(t, "worker exited", *c.State().Error)
}

func TestClient_CloseStopsNotifications(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c, rec := newTestClient(t, staticLoader(&fakeModel{answer: "ok"}))
	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, statusIs(c, StatusReady), waitFor, 5*time.Millisecond)

	c.Close()
	c.Close()
	n := len(rec.all())

	assert.ErrorIs(t, c.Query(InferenceRequest{Image: dataURL(t, 8, 8), Prompt: "q"}), ErrWorkerTerminated)
	for _, s := range rec.all() {
		assert.NotEqual(t, StatusError, s.Status)
	}
	assert.Equal(t, n, len(rec.all()))
}

func TestClient_Unsubscribe(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewClient(NewWorker(staticLoader(&fakeModel{answer: "ok"}), newTestLogger()), newTestLogger())
	defer c.Close()

	rec := &stateRecorder{}
	unsubscribe := c.Subscribe(rec.record)
	unsubscribe()

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, statusIs(c, StatusReady), waitFor, 5*time.Millisecond)
	assert.Empty(t, rec.all())
}

func TestClient_SubscriberMayReadState(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewClient(NewWorker(staticLoader(&fakeModel{answer: "ok"}), newTestLogger()), newTestLogger())
	defer c.Close()

	seen := make(chan PipelineStatus, 16)
	c.Subscribe(func(s State) {
		seen <- c.State().Status
	})

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, statusIs(c, StatusReady), waitFor, 5*time.Millisecond)
	assert.NotEmpty(t, seen)
}

func TestClient_WatchStartsWithCurrentState(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewClient(NewWorker(staticLoader(&fakeModel{answer: "ok"}), newTestLogger()), newTestLogger())
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, statusIs(c, StatusReady), waitFor, 5*time.Millisecond)

	rec := &stateRecorder{}
	c.Watch(rec.record)
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, StatusReady, rec.all()[0].Status)

	require.NoError(t, c.Query(InferenceRequest{Image: dataURL(t, 8, 8), Prompt: "q"}))
	require.Eventually(t, func() bool {
		st := rec.all()
		return st[len(st)-1].Response != nil
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, []PipelineStatus{StatusReady, StatusWorking, StatusReady}, rec.statuses())
}

func TestClient_WatchNeverDeliversOlderStates(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewClient(NewWorker(staticLoader(&fakeModel{answer: "ok"}), newTestLogger()), newTestLogger())
	defer c.Close()

	// A watcher registered from inside another subscriber's callback lands
	// while earlier states may still be queued for delivery.
	watched := &stateRecorder{}
	var once sync.Once
	c.Subscribe(func(s State) {
		once.Do(func() { c.Watch(watched.record) })
	})

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, statusIs(c, StatusReady), waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		st := watched.all()
		return len(st) > 0 && st[len(st)-1].Status == StatusReady
	}, waitFor, 5*time.Millisecond)

	rank := map[PipelineStatus]int{StatusIdle: 0, StatusInitializing: 1, StatusReady: 2}
	prev := -1
	for _, st := range watched.all() {
		r := rank[st.Status]
		assert.GreaterOrEqual(t, r, prev, "watcher saw %s after a newer state", st.Status)
		prev = r
	}
}
