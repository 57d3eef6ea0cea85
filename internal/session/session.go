// Package session owns the process-wide browser and its shared context, and
// replaces them when the browser dies.
package session

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/violation-lookup/internal/browser"
	"github.com/sells-group/violation-lookup/internal/resilience"
)

var (
	// ErrSessionInit is returned when the browser cannot be launched.
	ErrSessionInit = eris.New("browser session init failed")
	// ErrNotReady is returned by NewPage outside the Ready state.
	ErrNotReady = eris.New("browser session not ready")
)

// State is the lifecycle state of the session.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateDegraded
	StateRestarting
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	case StateRestarting:
		return "restarting"
	}
	return "unknown"
}

// Options configures launches.
type Options struct {
	Launch  browser.LaunchOptions
	Context browser.ContextOptions
	Retry   resilience.RetryConfig
	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(from, to State)
}

// Health is a point-in-time view of the session.
type Health struct {
	Healthy bool   `json:"healthy"`
	State   string `json:"state"`
}

// Manager holds at most one browser and one shared context. Transitions
// happen only in EnsureReady, Restart and Close; concurrent callers of the
// first two share a single in-flight launch.
type Manager struct {
	launcher browser.Launcher
	opts     Options
	log      *zap.Logger

	mu    sync.Mutex
	b     browser.Browser
	bctx  browser.Context
	state State
	gen   uint64

	group singleflight.Group
}

// NewManager creates a Manager. Nothing is launched until EnsureReady.
func NewManager(launcher browser.Launcher, opts Options) *Manager {
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("session", "launch")
	}
	return &Manager{
		launcher: launcher,
		opts:     opts,
		log:      zap.L().With(zap.String("component", "session")),
	}
}

// IsHealthy reports whether a connected browser is installed and Ready. It
// never changes state.
func (m *Manager) IsHealthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthyLocked()
}

func (m *Manager) healthyLocked() bool {
	return m.b != nil && m.bctx != nil && m.state == StateReady && m.b.IsConnected()
}

// State returns the recorded state. A Ready session whose browser has
// disconnected reads as Degraded.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateReady && !m.healthyLocked() {
		return StateDegraded
	}
	return m.state
}

// Health returns the session's health for diagnostics.
func (m *Manager) Health() Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	healthy := m.healthyLocked()
	state := m.state
	if state == StateReady && !healthy {
		state = StateDegraded
	}
	return Health{Healthy: healthy, State: state.String()}
}

// EnsureReady leaves a healthy session alone and otherwise tears it down and
// launches a new one.
func (m *Manager) EnsureReady(ctx context.Context) error {
	if m.IsHealthy() {
		return nil
	}
	return m.reinit(ctx, "ensure_ready")
}

// Restart closes the current session and launches a new one.
func (m *Manager) Restart(ctx context.Context) error {
	return m.reinit(ctx, "restart")
}

// NewPage opens a page in the shared context. The caller must close it.
func (m *Manager) NewPage(ctx context.Context) (browser.Page, error) {
	m.mu.Lock()
	bctx := m.bctx
	ready := m.state == StateReady && bctx != nil
	m.mu.Unlock()
	if !ready {
		return nil, ErrNotReady
	}

	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "session: new page")
	}
	return page, nil
}

// Close closes the browser and returns to Uninitialized. A launch that is
// in flight when Close runs is discarded.
func (m *Manager) Close() error {
	m.mu.Lock()
	b, bctx := m.b, m.bctx
	m.b, m.bctx = nil, nil
	m.gen++
	from := m.state
	m.state = StateUninitialized
	m.mu.Unlock()

	m.notify(from, StateUninitialized)
	return teardown(b, bctx)
}

// reinit runs one transition for all concurrent callers. The shared work is
// detached from the first caller's cancellation; each caller still stops
// waiting when its own ctx ends.
func (m *Manager) reinit(ctx context.Context, reason string) error {
	ch := m.group.DoChan("reinit", func() (any, error) {
		return nil, m.relaunch(context.WithoutCancel(ctx), reason)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (m *Manager) relaunch(ctx context.Context, reason string) error {
	m.mu.Lock()
	from := m.state
	if from == StateReady && !m.healthyLocked() {
		m.state = StateDegraded
		m.mu.Unlock()
		m.log.Warn("browser session degraded", zap.String("reason", reason))
		m.notify(StateReady, StateDegraded)
		m.mu.Lock()
		from = StateDegraded
	}
	old, oldCtx := m.b, m.bctx
	m.b, m.bctx = nil, nil
	if from != StateUninitialized {
		m.state = StateRestarting
	}
	gen := m.gen
	m.mu.Unlock()

	if from != StateUninitialized {
		m.notify(from, StateRestarting)
	}
	if err := teardown(old, oldCtx); err != nil {
		m.log.Debug("close previous browser", zap.Error(err))
	}

	m.log.Info("launching browser", zap.String("reason", reason), zap.Int("attempts", m.opts.Retry.MaxAttempts))
	type handles struct {
		b    browser.Browser
		bctx browser.Context
	}
	h, err := resilience.DoVal(ctx, m.opts.Retry, func(ctx context.Context) (handles, error) {
		b, err := m.launcher.Launch(ctx, m.opts.Launch)
		if err != nil {
			return handles{}, err
		}
		bctx, err := b.NewContext(ctx, m.opts.Context)
		if err != nil {
			_ = b.Close()
			return handles{}, err
		}
		return handles{b: b, bctx: bctx}, nil
	})

	m.mu.Lock()
	if err == nil && gen != m.gen {
		m.mu.Unlock()
		_ = teardown(h.b, h.bctx)
		return eris.Wrap(ErrSessionInit, "session closed during launch")
	}
	prev := m.state
	if err != nil {
		m.state = StateUninitialized
	} else {
		m.b, m.bctx = h.b, h.bctx
		m.state = StateReady
	}
	next := m.state
	m.mu.Unlock()

	m.notify(prev, next)
	if err != nil {
		m.log.Error("browser launch failed", zap.Error(err))
		return eris.Wrapf(ErrSessionInit, "launch browser: %v", err)
	}
	m.log.Info("browser session ready")
	return nil
}

func (m *Manager) notify(from, to State) {
	if from == to || m.opts.OnStateChange == nil {
		return
	}
	m.opts.OnStateChange(from, to)
}

func teardown(b browser.Browser, bctx browser.Context) error {
	var err error
	if bctx != nil {
		if cerr := bctx.Close(); cerr != nil {
			err = eris.Wrap(cerr, "session: close context")
		}
	}
	if b != nil {
		if cerr := b.Close(); cerr != nil && err == nil {
			err = eris.Wrap(cerr, "session: close browser")
		}
	}
	return err
}
