// Package browser defines the browser-automation capability the lookup core
// depends on, with a playwright backend for live sessions and a goquery
// backend for static HTML.
package browser

import (
	"context"
	"time"
)

// LaunchOptions configures a browser process.
type LaunchOptions struct {
	Headless       bool
	ExecutablePath string
	Args           []string
	Timeout        time.Duration
}

// ContextOptions configures the shared browsing context.
type ContextOptions struct {
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	IgnoreHTTPSErrors bool
	// DefaultTimeout bounds actions without an explicit timeout (select,
	// fill, click, text reads).
	DefaultTimeout time.Duration
}

// Launcher starts browser processes.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser is a running browser process.
type Browser interface {
	NewContext(ctx context.Context, opts ContextOptions) (Context, error)
	// IsConnected reports whether the automation connection is live.
	IsConnected() bool
	Close() error
}

// Context is an isolated browsing context (cookie jar, cache) shared by pages.
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab. The creator owns it and must Close it.
type Page interface {
	// Goto navigates to url and waits until the network is idle.
	Goto(ctx context.Context, url string, timeout time.Duration) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	SelectOption(ctx context.Context, selector, value string) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error
	Screenshot(ctx context.Context) ([]byte, error)
	Locator(selector string) Node
	Close() error
}

// Node is a lazily evaluated DOM query: a set of zero or more matching
// elements. Extraction code depends only on this interface.
type Node interface {
	// Locator narrows to descendants matching selector.
	Locator(selector string) Node
	Count(ctx context.Context) (int, error)
	// Nth selects the i-th match (0-based).
	Nth(i int) Node
	// TextContent returns the text of the first match. ok is false when
	// nothing matches.
	TextContent(ctx context.Context) (text string, ok bool, err error)
}
