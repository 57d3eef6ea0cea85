package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/violation-lookup/internal/browser"
	"github.com/sells-group/violation-lookup/internal/browser/browsertest"
	"github.com/sells-group/violation-lookup/internal/resilience"
)

func newTestManager(l *browsertest.Launcher, attempts int) (*Manager, *transitions) {
	tr := &transitions{}
	m := NewManager(l, Options{
		Launch:        browser.LaunchOptions{Headless: true, Args: []string{"--no-sandbox"}},
		Context:       browser.ContextOptions{UserAgent: "ua", ViewportWidth: 1366, ViewportHeight: 768, IgnoreHTTPSErrors: true},
		Retry:         resilience.RetryConfig{MaxAttempts: attempts, InitialBackoff: time.Millisecond},
		OnStateChange: tr.record,
	})
	return m, tr
}

type transitions struct {
	mu  sync.Mutex
	log [][2]State
}

func (t *transitions) record(from, to State) {
	t.mu.Lock()
	t.log = append(t.log, [2]State{from, to})
	t.mu.Unlock()
}

func (t *transitions) all() [][2]State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][2]State(nil), t.log...)
}

func TestEnsureReadyLaunchesOnce(t *testing.T) {
	l := browsertest.NewLauncher(&browsertest.Context{})
	m, tr := newTestManager(l, 1)
	ctx := context.Background()

	assert.Equal(t, StateUninitialized, m.State())
	assert.False(t, m.IsHealthy())

	require.NoError(t, m.EnsureReady(ctx))
	require.NoError(t, m.EnsureReady(ctx))

	assert.Equal(t, 1, l.LaunchCount())
	assert.True(t, m.IsHealthy())
	assert.Equal(t, StateReady, m.State())
	assert.Equal(t, [][2]State{{StateUninitialized, StateReady}}, tr.all())

	last := l.Last()
	require.NotNil(t, last)
	require.Len(t, last.CtxOpts, 1)
	assert.Equal(t, 1366, last.CtxOpts[0].ViewportWidth)
	assert.True(t, last.CtxOpts[0].IgnoreHTTPSErrors)
	assert.True(t, l.Opts[0].Headless)
}

func TestEnsureReadyRestartsDisconnectedBrowser(t *testing.T) {
	l := browsertest.NewLauncher(&browsertest.Context{})
	m, tr := newTestManager(l, 1)
	ctx := context.Background()

	require.NoError(t, m.EnsureReady(ctx))
	first := l.Last()
	first.Disconnect()

	assert.False(t, m.IsHealthy())
	assert.Equal(t, StateDegraded, m.State())
	assert.Equal(t, 1, l.LaunchCount(), "IsHealthy and State never relaunch")

	require.NoError(t, m.EnsureReady(ctx))
	assert.Equal(t, 2, l.LaunchCount())
	assert.True(t, first.Closed())
	assert.True(t, m.IsHealthy())

	assert.Equal(t, [][2]State{
		{StateUninitialized, StateReady},
		{StateReady, StateDegraded},
		{StateDegraded, StateRestarting},
		{StateRestarting, StateReady},
	}, tr.all())
}

func TestEnsureReadyLaunchFailure(t *testing.T) {
	l := browsertest.NewLauncher(&browsertest.Context{})
	l.LaunchErrs = []error{errors.New("no chromium"), errors.New("no chromium")}
	m, _ := newTestManager(l, 2)
	ctx := context.Background()

	err := m.EnsureReady(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionInit)
	assert.Contains(t, err.Error(), "no chromium")
	assert.Equal(t, 2, l.LaunchCount())
	assert.Equal(t, StateUninitialized, m.State())

	_, err = m.NewPage(ctx)
	assert.ErrorIs(t, err, ErrNotReady)

	// The next call retries from scratch.
	require.NoError(t, m.EnsureReady(ctx))
	assert.Equal(t, 3, l.LaunchCount())
}

func TestEnsureReadyRetriesLaunch(t *testing.T) {
	l := browsertest.NewLauncher(&browsertest.Context{})
	l.LaunchErrs = []error{errors.New("browser closed unexpectedly")}
	m, _ := newTestManager(l, 2)

	require.NoError(t, m.EnsureReady(context.Background()))
	assert.Equal(t, 2, l.LaunchCount())
	assert.True(t, m.IsHealthy())
}

func TestContextFailureClosesBrowser(t *testing.T) {
	l := browsertest.NewLauncher(&browsertest.Context{})
	l.ContextErr = errors.New("context crashed")
	m, _ := newTestManager(l, 1)

	err := m.EnsureReady(context.Background())
	assert.ErrorIs(t, err, ErrSessionInit)
	require.NotNil(t, l.Last())
	assert.True(t, l.Last().Closed())
	assert.False(t, m.IsHealthy())
}

func TestNewPage(t *testing.T) {
	bctx := &browsertest.Context{}
	l := browsertest.NewLauncher(bctx)
	m, _ := newTestManager(l, 1)
	ctx := context.Background()

	_, err := m.NewPage(ctx)
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, m.EnsureReady(ctx))
	p, err := m.NewPage(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Len(t, bctx.AllPages(), 1)
}

func TestRestartAlwaysRelaunches(t *testing.T) {
	l := browsertest.NewLauncher(&browsertest.Context{})
	m, _ := newTestManager(l, 1)
	ctx := context.Background()

	require.NoError(t, m.EnsureReady(ctx))
	first := l.Last()
	require.NoError(t, m.Restart(ctx))

	assert.Equal(t, 2, l.LaunchCount())
	assert.True(t, first.Closed())
	assert.True(t, m.IsHealthy())
}

func TestConcurrentRestartsCollapse(t *testing.T) {
	l := browsertest.NewLauncher(&browsertest.Context{})
	l.Delay = 250 * time.Millisecond
	m, _ := newTestManager(l, 1)
	ctx := context.Background()

	var ready, wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, 8)
	for i := range errs {
		ready.Add(1)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ready.Done()
			<-start
			if i%2 == 0 {
				errs[i] = m.Restart(ctx)
			} else {
				errs[i] = m.EnsureReady(ctx)
			}
		}(i)
	}
	ready.Wait()
	close(start)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, l.LaunchCount())
	assert.True(t, m.IsHealthy())
}

func TestCallerCancelDoesNotAbortSharedLaunch(t *testing.T) {
	l := browsertest.NewLauncher(&browsertest.Context{})
	l.Delay = 50 * time.Millisecond
	m, _ := newTestManager(l, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := m.EnsureReady(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Eventually(t, m.IsHealthy, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, l.LaunchCount())
}

func TestClose(t *testing.T) {
	l := browsertest.NewLauncher(&browsertest.Context{})
	m, _ := newTestManager(l, 1)
	ctx := context.Background()

	require.NoError(t, m.EnsureReady(ctx))
	b := l.Last()
	require.NoError(t, m.Close())

	assert.True(t, b.Closed())
	assert.Equal(t, StateUninitialized, m.State())
	assert.False(t, m.IsHealthy())
	assert.Equal(t, Health{Healthy: false, State: "uninitialized"}, m.Health())

	require.NoError(t, m.Close(), "close is idempotent")
}

func TestCloseDuringLaunchDiscardsBrowser(t *testing.T) {
	l := browsertest.NewLauncher(&browsertest.Context{})
	l.Delay = 50 * time.Millisecond
	m, _ := newTestManager(l, 1)

	done := make(chan error, 1)
	go func() { done <- m.EnsureReady(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, m.Close())

	err := <-done
	assert.ErrorIs(t, err, ErrSessionInit)
	assert.False(t, m.IsHealthy())
	require.NotNil(t, l.Last())
	assert.True(t, l.Last().Closed())
}

func TestHealth(t *testing.T) {
	l := browsertest.NewLauncher(&browsertest.Context{})
	m, _ := newTestManager(l, 1)

	require.NoError(t, m.EnsureReady(context.Background()))
	assert.Equal(t, Health{Healthy: true, State: "ready"}, m.Health())

	l.Last().Disconnect()
	assert.Equal(t, Health{Healthy: false, State: "degraded"}, m.Health())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "restarting", StateRestarting.String())
	assert.Equal(t, "unknown", State(42).String())
}
