package lookup

import (
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/violation-lookup/internal/cache"
	"github.com/sells-group/violation-lookup/internal/model"
	"github.com/sells-group/violation-lookup/internal/session"
)

// Session is the part of the session manager the coordinator needs.
type Session interface {
	EnsureReady(ctx context.Context) error
	Restart(ctx context.Context) error
	Health() session.Health
}

// Looker runs a single browser lookup.
type Looker interface {
	Lookup(ctx context.Context, t model.Target) model.LookupOutcome
}

// Pacer spaces out consecutive browser lookups.
type Pacer interface {
	Pace(ctx context.Context) error
}

// SleepPacer waits a fixed delay.
type SleepPacer struct {
	Delay time.Duration
}

// Pace implements Pacer.
func (p SleepPacer) Pace(ctx context.Context) error {
	return sleep(ctx, p.Delay)
}

// RecordCache stores successful lookups by target cache key.
type RecordCache = cache.Cache[[]model.ViolationRecord]

// Options configures a Service.
type Options struct {
	// TTL for cached results. Zero uses the cache default.
	TTL   time.Duration
	Pacer Pacer
}

// Service is the lookup API: batch coordination in front of the cache,
// the session and the orchestrator.
type Service struct {
	sess   Session
	looker Looker
	cache  *RecordCache
	ttl    time.Duration
	pacer  Pacer
	log    *zap.Logger
}

// NewService creates a Service. A nil pacer disables pacing.
func NewService(sess Session, looker Looker, c *RecordCache, opts Options) *Service {
	pacer := opts.Pacer
	if pacer == nil {
		pacer = SleepPacer{}
	}
	return &Service{
		sess:   sess,
		looker: looker,
		cache:  c,
		ttl:    opts.TTL,
		pacer:  pacer,
		log:    zap.L().With(zap.String("component", "batch")),
	}
}

// LookupOne looks up a single target. It is a batch of one.
func (s *Service) LookupOne(ctx context.Context, t model.Target) model.LookupOutcome {
	return s.LookupBatch(ctx, []model.Target{t})[0]
}

// LookupBatch returns one outcome per target in input order. Invalid
// targets and cache hits never touch the browser. The session is readied
// once, before the first miss; misses then run one at a time with the
// pacer between them. Only successes are cached.
func (s *Service) LookupBatch(ctx context.Context, targets []model.Target) []model.LookupOutcome {
	out := make([]model.LookupOutcome, len(targets))
	start := time.Now()

	var (
		readied  bool
		sessErr  error
		lookups  int
		cacheHit int
	)
	for i, t := range targets {
		if err := t.Validate(); err != nil {
			out[i] = model.Failed(t, err)
			continue
		}

		key := t.CacheKey()
		if records, ok := s.cache.Get(key); ok {
			out[i] = model.FromCache(t, records)
			cacheHit++
			continue
		}

		if !readied {
			readied = true
			if err := s.sess.EnsureReady(ctx); err != nil {
				sessErr = err
				s.log.Error("browser session unavailable", zap.Error(err))
			}
		}
		if sessErr != nil {
			out[i] = model.Failed(t, sessErr)
			continue
		}
		if err := ctx.Err(); err != nil {
			out[i] = model.Failed(t, eris.Wrap(err, "batch: cancelled"))
			continue
		}

		if lookups > 0 {
			if err := s.pacer.Pace(ctx); err != nil {
				out[i] = model.Failed(t, eris.Wrap(err, "batch: cancelled"))
				continue
			}
		}
		lookups++

		o := s.looker.Lookup(ctx, t)
		o.Target = t
		if o.Success {
			s.cache.Set(key, slices.Clone(o.Records), s.ttl)
		}
		out[i] = o
	}

	ok, failed := model.Summary(out)
	s.log.Info("batch done",
		zap.Int("total", len(out)),
		zap.Int("successful", ok),
		zap.Int("failed", failed),
		zap.Int("cache_hits", cacheHit),
		zap.Int("browser_lookups", lookups),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out
}

// SessionHealth reports the browser session's health.
func (s *Service) SessionHealth() session.Health {
	return s.sess.Health()
}

// RestartResult is the outcome of an explicit restart.
type RestartResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RestartSession closes and relaunches the browser.
func (s *Service) RestartSession(ctx context.Context) RestartResult {
	s.log.Info("browser restart requested")
	if err := s.sess.Restart(ctx); err != nil {
		s.log.Error("browser restart failed", zap.Error(err))
		return RestartResult{Success: false, Message: "Lỗi khi restart: " + err.Error()}
	}
	return RestartResult{Success: true, Message: "Browser đã được restart thành công"}
}

// CacheInfo is a diagnostics snapshot of the result cache.
type CacheInfo struct {
	Size  int         `json:"size"`
	Keys  []string    `json:"keys"`
	Stats cache.Stats `json:"stats"`
}

// CacheInfo returns the cache's size, keys and stats.
func (s *Service) CacheInfo() CacheInfo {
	return CacheInfo{
		Size:  s.cache.Len(),
		Keys:  s.cache.Keys(),
		Stats: s.cache.Stats(),
	}
}

// ClearCache drops every cached result and returns how many were removed.
func (s *Service) ClearCache() int {
	n := s.cache.Clear()
	s.log.Info("cache cleared", zap.Int("entries", n))
	return n
}

// EvictCache drops the cached result for t.
func (s *Service) EvictCache(t model.Target) bool {
	return s.cache.Delete(t.CacheKey())
}
