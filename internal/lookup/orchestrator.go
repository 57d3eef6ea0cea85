// Package lookup drives the portal's search form and coordinates batches of
// lookups against the cache and the browser session.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/violation-lookup/internal/browser"
	"github.com/sells-group/violation-lookup/internal/extract"
	"github.com/sells-group/violation-lookup/internal/model"
)

// DefaultSearchURL is the portal's violation search page.
const DefaultSearchURL = "https://www.csgt.vn/tra-cuu-phat-nguoi"

// FormSelectors locate the search form controls.
type FormSelectors struct {
	Form        string
	VehicleType string
	PlateNumber string
	Submit      string
}

// DefaultFormSelectors returns the portal's current form markup.
func DefaultFormSelectors() FormSelectors {
	return FormSelectors{
		Form:        "form#violationsForm",
		VehicleType: `select[name="vehicle_type"]`,
		PlateNumber: `input[name="plate_number"]`,
		Submit:      "#submitBtn",
	}
}

// Config controls one lookup. The two settle delays are fixed waits for the
// portal's client-side scripts and dominate lookup latency.
type Config struct {
	SearchURL         string
	Form              FormSelectors
	NavigationTimeout time.Duration
	FormTimeout       time.Duration
	SubmitTimeout     time.Duration
	InputSettle       time.Duration
	ResultSettle      time.Duration
	// LookupsPerMinute caps browser lookups process-wide. 0 is unlimited.
	LookupsPerMinute int
	// ScreenshotDir receives a full-page PNG when a step fails. Empty
	// disables screenshots.
	ScreenshotDir string
}

// DefaultConfig returns the portal timings.
func DefaultConfig() Config {
	return Config{
		SearchURL:         DefaultSearchURL,
		Form:              DefaultFormSelectors(),
		NavigationTimeout: 30 * time.Second,
		FormTimeout:       20 * time.Second,
		SubmitTimeout:     15 * time.Second,
		InputSettle:       500 * time.Millisecond,
		ResultSettle:      3 * time.Second,
	}
}

// Pages opens browser pages.
type Pages interface {
	NewPage(ctx context.Context) (browser.Page, error)
}

// Orchestrator runs the search protocol for one target at a time.
type Orchestrator struct {
	pages   Pages
	ext     *extract.Extractor
	cfg     Config
	limiter *rate.Limiter
	log     *zap.Logger
	nowFunc func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(pages Pages, ext *extract.Extractor, cfg Config) *Orchestrator {
	if cfg.SearchURL == "" {
		cfg.SearchURL = DefaultSearchURL
	}
	def := DefaultFormSelectors()
	if cfg.Form.Form == "" {
		cfg.Form.Form = def.Form
	}
	if cfg.Form.VehicleType == "" {
		cfg.Form.VehicleType = def.VehicleType
	}
	if cfg.Form.PlateNumber == "" {
		cfg.Form.PlateNumber = def.PlateNumber
	}
	if cfg.Form.Submit == "" {
		cfg.Form.Submit = def.Submit
	}

	o := &Orchestrator{
		pages:   pages,
		ext:     ext,
		cfg:     cfg,
		log:     zap.L().With(zap.String("component", "lookup")),
		nowFunc: time.Now,
	}
	if cfg.LookupsPerMinute > 0 {
		o.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.LookupsPerMinute)), 1)
	}
	return o
}

// Lookup runs the protocol for t. Failures are reported in the outcome; the
// page is closed on every path.
func (o *Orchestrator) Lookup(ctx context.Context, t model.Target) model.LookupOutcome {
	start := o.nowFunc()
	plate := t.Normalized()
	log := o.log.With(zap.String("plate", plate), zap.String("vehicle_type", string(t.VehicleClass)))

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return model.Failed(t, eris.Wrap(err, "lookup: rate limit"))
		}
	}

	records, err := o.run(ctx, t, plate)
	if err != nil {
		log.Warn("lookup failed", zap.Error(err), zap.Duration("elapsed", o.nowFunc().Sub(start)))
		return model.Failed(t, err)
	}
	log.Info("lookup done", zap.Int("violations", len(records)), zap.Duration("elapsed", o.nowFunc().Sub(start)))
	return model.Succeeded(t, records)
}

func (o *Orchestrator) run(ctx context.Context, t model.Target, plate string) (records []model.ViolationRecord, err error) {
	page, err := o.pages.NewPage(ctx)
	if err != nil {
		return nil, stepErr(StepPage, plate, err)
	}
	defer func() {
		var se *StepError
		if errors.As(err, &se) {
			o.screenshot(ctx, page, plate, se.Step)
		}
		if cerr := page.Close(); cerr != nil {
			o.log.Debug("close page", zap.String("plate", plate), zap.Error(cerr))
		}
	}()

	if err := page.Goto(ctx, o.cfg.SearchURL, o.cfg.NavigationTimeout); err != nil {
		return nil, stepErr(StepNavigate, plate, err)
	}
	if err := page.WaitForSelector(ctx, o.cfg.Form.Form, o.cfg.FormTimeout); err != nil {
		return nil, stepErr(StepForm, plate, probeBlock(ctx, page, err))
	}

	if err := page.SelectOption(ctx, o.cfg.Form.VehicleType, string(t.VehicleClass)); err != nil {
		return nil, stepErr(StepSelect, plate, err)
	}
	if err := sleep(ctx, o.cfg.InputSettle); err != nil {
		return nil, err
	}
	if err := page.Fill(ctx, o.cfg.Form.PlateNumber, plate); err != nil {
		return nil, stepErr(StepFill, plate, err)
	}
	if err := sleep(ctx, o.cfg.InputSettle); err != nil {
		return nil, err
	}

	// The form posts via XHR, so start waiting for idle alongside the click.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return page.Click(gctx, o.cfg.Form.Submit) })
	g.Go(func() error { return page.WaitForNetworkIdle(gctx, o.cfg.SubmitTimeout) })
	if err := g.Wait(); err != nil {
		return nil, stepErr(StepSubmit, plate, err)
	}
	if err := sleep(ctx, o.cfg.ResultSettle); err != nil {
		return nil, err
	}

	root := page.Locator("html")
	n, err := o.ext.CountCards(ctx, root)
	if err != nil {
		return nil, stepErr(StepCount, plate, err)
	}
	if n == 0 {
		return nil, nil
	}
	records, err = o.ext.Cards(ctx, root)
	if err != nil {
		return nil, stepErr(StepCount, plate, err)
	}
	return records, nil
}

func (o *Orchestrator) screenshot(ctx context.Context, page browser.Page, plate string, step Step) {
	if o.cfg.ScreenshotDir == "" || step == StepPage {
		return
	}
	png, err := page.Screenshot(context.WithoutCancel(ctx))
	if err != nil {
		o.log.Debug("failure screenshot", zap.String("plate", plate), zap.Error(err))
		return
	}
	name := fmt.Sprintf("%s-%s-%d.png", plate, step, o.nowFunc().Unix())
	path := filepath.Join(o.cfg.ScreenshotDir, name)
	if err := os.MkdirAll(o.cfg.ScreenshotDir, 0o755); err != nil {
		o.log.Debug("failure screenshot dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		o.log.Debug("write failure screenshot", zap.Error(err))
		return
	}
	o.log.Info("saved failure screenshot", zap.String("path", path))
}

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
