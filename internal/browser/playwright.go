package browser

import (
	"context"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// PlaywrightLauncher launches chromium through the playwright driver. The
// driver process is started on first use and restarted after a failed
// launch.
type PlaywrightLauncher struct {
	mu      sync.Mutex
	pw      *playwright.Playwright
	runOpts *playwright.RunOptions
}

// NewPlaywrightLauncher creates a launcher. runOpts may be nil.
func NewPlaywrightLauncher(runOpts *playwright.RunOptions) *PlaywrightLauncher {
	return &PlaywrightLauncher{runOpts: runOpts}
}

// InstallDriver downloads the playwright driver and the given browsers.
func InstallDriver(browsers ...string) error {
	if len(browsers) == 0 {
		browsers = []string{"chromium"}
	}
	if err := playwright.Install(&playwright.RunOptions{Browsers: browsers, Verbose: true}); err != nil {
		return eris.Wrap(err, "playwright: install driver")
	}
	return nil
}

// Launch implements Launcher.
func (l *PlaywrightLauncher) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw == nil {
		var pw *playwright.Playwright
		var err error
		if l.runOpts != nil {
			pw, err = playwright.Run(l.runOpts)
		} else {
			pw, err = playwright.Run()
		}
		if err != nil {
			return nil, eris.Wrap(err, "playwright: start driver")
		}
		l.pw = pw
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.Args,
	}
	if opts.ExecutablePath != "" {
		launchOpts.ExecutablePath = playwright.String(opts.ExecutablePath)
	}
	if opts.Timeout > 0 {
		launchOpts.Timeout = playwright.Float(millis(opts.Timeout))
	}

	b, err := l.pw.Chromium.Launch(launchOpts)
	if err != nil {
		// A dead driver fails every launch; drop it so the next call starts fresh.
		if stopErr := l.pw.Stop(); stopErr != nil {
			zap.L().Debug("playwright: stop driver after failed launch", zap.Error(stopErr))
		}
		l.pw = nil
		return nil, eris.Wrap(err, "playwright: launch chromium")
	}
	return &pwBrowser{b: b}, nil
}

// Stop shuts the driver down. Browsers must be closed first.
func (l *PlaywrightLauncher) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pw == nil {
		return nil
	}
	err := l.pw.Stop()
	l.pw = nil
	if err != nil {
		return eris.Wrap(err, "playwright: stop driver")
	}
	return nil
}

type pwBrowser struct {
	b playwright.Browser
}

func (b *pwBrowser) NewContext(ctx context.Context, opts ContextOptions) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctxOpts := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(opts.IgnoreHTTPSErrors),
	}
	if opts.UserAgent != "" {
		ctxOpts.UserAgent = playwright.String(opts.UserAgent)
	}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		ctxOpts.Viewport = &playwright.Size{Width: opts.ViewportWidth, Height: opts.ViewportHeight}
	}

	c, err := b.b.NewContext(ctxOpts)
	if err != nil {
		return nil, eris.Wrap(err, "playwright: new context")
	}
	if opts.DefaultTimeout > 0 {
		c.SetDefaultTimeout(millis(opts.DefaultTimeout))
	}
	return &pwContext{c: c}, nil
}

func (b *pwBrowser) IsConnected() bool { return b.b.IsConnected() }

func (b *pwBrowser) Close() error {
	if err := b.b.Close(); err != nil {
		return eris.Wrap(err, "playwright: close browser")
	}
	return nil
}

type pwContext struct {
	c playwright.BrowserContext
}

func (c *pwContext) NewPage(ctx context.Context) (Page, error) {
	var p playwright.Page
	err := await(ctx, func() error {
		var err error
		p, err = c.c.NewPage()
		return err
	})
	if err != nil {
		return nil, eris.Wrap(err, "playwright: new page")
	}
	return &pwPage{p: p}, nil
}

func (c *pwContext) Close() error {
	if err := c.c.Close(); err != nil {
		return eris.Wrap(err, "playwright: close context")
	}
	return nil
}

type pwPage struct {
	p playwright.Page
}

func (p *pwPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	return await(ctx, func() error {
		_, err := p.p.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateNetworkidle,
			Timeout:   playwright.Float(millis(timeout)),
		})
		return err
	})
}

func (p *pwPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return await(ctx, func() error {
		return p.p.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
			Timeout: playwright.Float(millis(timeout)),
		})
	})
}

func (p *pwPage) SelectOption(ctx context.Context, selector, value string) error {
	return await(ctx, func() error {
		_, err := p.p.Locator(selector).SelectOption(playwright.SelectOptionValues{
			Values: playwright.StringSlice(value),
		})
		return err
	})
}

func (p *pwPage) Fill(ctx context.Context, selector, value string) error {
	return await(ctx, func() error {
		return p.p.Locator(selector).Fill(value)
	})
}

func (p *pwPage) Click(ctx context.Context, selector string) error {
	return await(ctx, func() error {
		return p.p.Locator(selector).Click()
	})
}

func (p *pwPage) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	return await(ctx, func() error {
		return p.p.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State:   playwright.LoadStateNetworkidle,
			Timeout: playwright.Float(millis(timeout)),
		})
	})
}

func (p *pwPage) Screenshot(ctx context.Context) ([]byte, error) {
	var png []byte
	err := await(ctx, func() error {
		var err error
		png, err = p.p.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
		return err
	})
	return png, err
}

func (p *pwPage) Locator(selector string) Node {
	return &pwNode{loc: p.p.Locator(selector)}
}

func (p *pwPage) Close() error {
	return p.p.Close()
}

type pwNode struct {
	loc playwright.Locator
}

func (n *pwNode) Locator(selector string) Node {
	return &pwNode{loc: n.loc.Locator(selector)}
}

func (n *pwNode) Count(ctx context.Context) (int, error) {
	var c int
	err := await(ctx, func() error {
		var err error
		c, err = n.loc.Count()
		return err
	})
	return c, err
}

func (n *pwNode) Nth(i int) Node {
	return &pwNode{loc: n.loc.Nth(i)}
}

// TextContent counts first so a missing node reads as absent instead of
// blocking until the action timeout.
func (n *pwNode) TextContent(ctx context.Context) (string, bool, error) {
	c, err := n.Count(ctx)
	if err != nil {
		return "", false, err
	}
	if c == 0 {
		return "", false, nil
	}
	var text string
	err = await(ctx, func() error {
		var err error
		text, err = n.loc.First().TextContent()
		return err
	})
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// await runs a blocking driver call and returns early when ctx ends. The
// call itself stays bounded by its playwright timeout.
func await(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
