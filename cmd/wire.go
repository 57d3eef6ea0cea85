package main

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/violation-lookup/internal/browser"
	"github.com/sells-group/violation-lookup/internal/cache"
	"github.com/sells-group/violation-lookup/internal/config"
	"github.com/sells-group/violation-lookup/internal/extract"
	"github.com/sells-group/violation-lookup/internal/lookup"
	"github.com/sells-group/violation-lookup/internal/model"
	"github.com/sells-group/violation-lookup/internal/resilience"
	"github.com/sells-group/violation-lookup/internal/session"
)

// lookupEnv holds the initialized lookup stack.
type lookupEnv struct {
	Launcher *browser.PlaywrightLauncher
	Session  *session.Manager
	Cache    *lookup.RecordCache
	Service  *lookup.Service
}

// Close shuts down the browser and then the playwright driver.
func (e *lookupEnv) Close() {
	if e.Session != nil {
		if err := e.Session.Close(); err != nil {
			zap.L().Warn("close browser session", zap.Error(err))
		}
	}
	if e.Launcher != nil {
		if err := e.Launcher.Stop(); err != nil {
			zap.L().Warn("stop playwright driver", zap.Error(err))
		}
	}
}

// initLookup builds the session, orchestrator and service from c. No
// browser is launched until the first lookup or an explicit EnsureReady.
func initLookup(c *config.Config) (*lookupEnv, error) {
	if c == nil {
		return nil, eris.New("init lookup: config not loaded")
	}

	launcher := browser.NewPlaywrightLauncher(nil)
	mgr := session.NewManager(launcher, sessionOptions(c))

	records := cache.New[[]model.ViolationRecord](cache.WithDefaultTTL(c.Cache.TTL()))
	orch := lookup.NewOrchestrator(mgr, extract.New(extractSelectors(c)), orchestratorConfig(c))
	svc := lookup.NewService(mgr, orch, records, lookup.Options{
		TTL:   c.Cache.TTL(),
		Pacer: lookup.SleepPacer{Delay: c.Batch.Pacing()},
	})

	return &lookupEnv{
		Launcher: launcher,
		Session:  mgr,
		Cache:    records,
		Service:  svc,
	}, nil
}

func sessionOptions(c *config.Config) session.Options {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = c.Browser.LaunchAttempts

	return session.Options{
		Launch: browser.LaunchOptions{
			Headless:       c.Browser.Headless,
			ExecutablePath: c.Browser.ExecutablePath,
			Args:           c.Browser.LaunchArgs,
			Timeout:        c.Browser.LaunchTimeout(),
		},
		Context: browser.ContextOptions{
			UserAgent:         c.Browser.UserAgent,
			ViewportWidth:     c.Browser.ViewportWidth,
			ViewportHeight:    c.Browser.ViewportHeight,
			IgnoreHTTPSErrors: c.Browser.IgnoreHTTPSErrors,
			DefaultTimeout:    c.Browser.ActionTimeout(),
		},
		Retry: retry,
		OnStateChange: func(from, to session.State) {
			zap.L().Debug("browser session state changed",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	}
}

func orchestratorConfig(c *config.Config) lookup.Config {
	sel := c.Portal.Selectors
	return lookup.Config{
		SearchURL: c.Portal.SearchURL,
		Form: lookup.FormSelectors{
			Form:        sel.Form,
			VehicleType: sel.VehicleType,
			PlateNumber: sel.PlateNumber,
			Submit:      sel.Submit,
		},
		NavigationTimeout: c.Timing.NavigationTimeout(),
		FormTimeout:       c.Timing.FormTimeout(),
		SubmitTimeout:     c.Timing.SubmitTimeout(),
		InputSettle:       c.Timing.InputSettle(),
		ResultSettle:      c.Timing.ResultSettle(),
		LookupsPerMinute:  c.Batch.MaxLookupsPerMinute,
		ScreenshotDir:     c.Debug.ScreenshotDir,
	}
}

func extractSelectors(c *config.Config) extract.Selectors {
	sel := c.Portal.Selectors
	return extract.Selectors{
		Card:     sel.Card,
		Title:    sel.Title,
		Badge:    sel.Badge,
		InfoItem: sel.InfoItem,
		Label:    sel.Label,
		Value:    sel.Value,
	}
}
