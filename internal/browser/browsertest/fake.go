// Package browsertest provides in-memory doubles for the browser capability.
package browsertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sells-group/violation-lookup/internal/browser"
)

// ErrClosed is returned by operations on a closed fake.
var ErrClosed = errors.New("browsertest: target closed")

// Launcher is a fake browser.Launcher. Entries in LaunchErrs are consumed one
// per launch; a nil entry lets that launch succeed.
type Launcher struct {
	mu         sync.Mutex
	LaunchErrs []error
	Launches   int
	Browsers   []*Browser
	Opts       []browser.LaunchOptions

	// Delay is slept inside Launch to widen race windows in tests.
	Delay time.Duration
	// Context is handed out by every browser this launcher creates.
	Context *Context
	// ContextErr makes NewContext fail on every browser launched from now on.
	ContextErr error
}

// NewLauncher returns a launcher whose browsers share ctx.
func NewLauncher(ctx *Context) *Launcher {
	return &Launcher{Context: ctx}
}

func (l *Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	if l.Delay > 0 {
		time.Sleep(l.Delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.Launches++
	l.Opts = append(l.Opts, opts)
	if len(l.LaunchErrs) > 0 {
		err := l.LaunchErrs[0]
		l.LaunchErrs = l.LaunchErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	bctx := l.Context
	if bctx == nil {
		bctx = &Context{}
	}
	b := &Browser{connected: true, ctx: bctx, ContextErr: l.ContextErr}
	l.Browsers = append(l.Browsers, b)
	return b, nil
}

// LaunchCount returns how many Launch calls were made.
func (l *Launcher) LaunchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Launches
}

// Last returns the most recently launched browser, if any.
func (l *Launcher) Last() *Browser {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.Browsers) == 0 {
		return nil
	}
	return l.Browsers[len(l.Browsers)-1]
}

// Browser is a fake browser.Browser.
type Browser struct {
	mu         sync.Mutex
	connected  bool
	closed     bool
	ctx        *Context
	CtxOpts    []browser.ContextOptions
	ContextErr error
}

func (b *Browser) NewContext(_ context.Context, opts browser.ContextOptions) (browser.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CtxOpts = append(b.CtxOpts, opts)
	if b.ContextErr != nil {
		return nil, b.ContextErr
	}
	return b.ctx, nil
}

func (b *Browser) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected && !b.closed
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.connected = false
	return nil
}

// Disconnect simulates a crashed browser process.
func (b *Browser) Disconnect() {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
}

// Closed reports whether Close was called.
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Context is a fake browser.Context. NewPageFunc builds each page; by
// default an empty Page is returned.
type Context struct {
	mu          sync.Mutex
	NewPageFunc func() (*Page, error)
	Pages       []*Page
}

func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var p *Page
	var err error
	if c.NewPageFunc != nil {
		p, err = c.NewPageFunc()
	} else {
		p = &Page{}
	}
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.Pages = append(c.Pages, p)
	c.mu.Unlock()
	return p, nil
}

func (c *Context) Close() error { return nil }

// AllPages returns the pages opened so far.
func (c *Context) AllPages() []*Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Page, len(c.Pages))
	copy(out, c.Pages)
	return out
}

// Page is a scripted browser.Page. Errors are returned from the matching
// step; Locator queries run against ResultHTML keyed by the filled plate,
// falling back to HTML.
type Page struct {
	mu sync.Mutex

	GotoErr     error
	FormErr     error
	SelectErr   error
	FillErr     error
	ClickErr    error
	NetIdleErr  error
	HTML        string
	ResultHTML  map[string]string
	SubmitErrs  map[string]error
	CountErr    error
	Calls       []string
	Selected    string
	Filled      string
	URL         string
	closed      bool
	closedCount int
}

func (p *Page) record(call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, call)
	if p.closed {
		return ErrClosed
	}
	return nil
}

func (p *Page) Goto(ctx context.Context, url string, _ time.Duration) error {
	if err := p.record("goto"); err != nil {
		return err
	}
	p.mu.Lock()
	p.URL = url
	p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.GotoErr
}

func (p *Page) WaitForSelector(_ context.Context, _ string, _ time.Duration) error {
	if err := p.record("wait_form"); err != nil {
		return err
	}
	return p.FormErr
}

func (p *Page) SelectOption(_ context.Context, _ string, value string) error {
	if err := p.record("select"); err != nil {
		return err
	}
	p.mu.Lock()
	p.Selected = value
	p.mu.Unlock()
	return p.SelectErr
}

func (p *Page) Fill(_ context.Context, _ string, value string) error {
	if err := p.record("fill"); err != nil {
		return err
	}
	p.mu.Lock()
	p.Filled = value
	p.mu.Unlock()
	return p.FillErr
}

func (p *Page) Click(_ context.Context, _ string) error {
	if err := p.record("click"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.SubmitErrs[p.Filled]; ok {
		return err
	}
	return p.ClickErr
}

func (p *Page) WaitForNetworkIdle(_ context.Context, _ time.Duration) error {
	if err := p.record("wait_idle"); err != nil {
		return err
	}
	return p.NetIdleErr
}

func (p *Page) Screenshot(_ context.Context) ([]byte, error) {
	if err := p.record("screenshot"); err != nil {
		return nil, err
	}
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (p *Page) Locator(selector string) browser.Node {
	p.mu.Lock()
	html := p.HTML
	if r, ok := p.ResultHTML[p.Filled]; ok {
		html = r
	}
	countErr := p.CountErr
	p.mu.Unlock()

	if countErr != nil {
		return errNode{err: countErr}
	}
	root, err := browser.ParseHTMLString(html)
	if err != nil {
		return errNode{err: err}
	}
	return root.Locator(selector)
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.closedCount++
	return nil
}

// Closed reports whether the page was closed, and how many times.
func (p *Page) Closed() (bool, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.closedCount
}

// errNode fails every query with err.
type errNode struct{ err error }

func (n errNode) Locator(string) browser.Node { return n }
func (n errNode) Nth(int) browser.Node        { return n }
func (n errNode) Count(context.Context) (int, error) {
	return 0, n.err
}
func (n errNode) TextContent(context.Context) (string, bool, error) {
	return "", false, n.err
}

// ErrNode returns a Node that fails every query with err.
func ErrNode(err error) browser.Node { return errNode{err: err} }
