package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/pinkweather/internal/dataset"
	"github.com/bobby-s-dev/pinkweather/internal/engine"
	"github.com/bobby-s-dev/pinkweather/internal/history"
	"github.com/bobby-s-dev/pinkweather/internal/layout"
	"github.com/bobby-s-dev/pinkweather/internal/markup"
	"github.com/bobby-s-dev/pinkweather/internal/models"
	"github.com/bobby-s-dev/pinkweather/internal/normalize"
	"github.com/bobby-s-dev/pinkweather/internal/observability"
	"github.com/bobby-s-dev/pinkweather/internal/render"
)

const fetchTimeout = 30 * time.Second

// ErrNoProvider is returned by RenderLive when no API key was configured.
var ErrNoProvider = errors.New("no weather provider configured")

type WeatherProvider interface {
	Fetch(ctx context.Context, location string) (normalize.ProviderPayload, error)
}

// Rendered is one composed and drawn display.
type Rendered struct {
	Snapshot models.WeatherSnapshot
	Output   engine.Output
	Image    image.Image
	Cached   bool
	Stale    bool
}

type scenario struct {
	series *dataset.Series
	engine *engine.Engine
}

// Preview serves the localhost preview: live renders from the provider
// through the response cache and a file-backed history, and scenario
// renders from a historical CSV that never touch that history.
type Preview struct {
	provider   WeatherProvider
	cache      *ResponseCache
	ledger     *history.Ledger
	live       *engine.Engine
	renderer   *render.Renderer
	datasetDir string
	metrics    *observability.Metrics
	logger     *zap.Logger

	// writer admits one live render at a time into the ledger.
	writer sync.Mutex

	mu              sync.RWMutex
	scenarios       map[string]*scenario
	lastFetchTime   time.Time
	liveRenders     int
	scenarioRenders int
	failureCount    int
}

type PreviewOption func(*Preview)

func WithPreviewMetrics(m *observability.Metrics) PreviewOption {
	return func(p *Preview) { p.metrics = m }
}

func WithPreviewLogger(logger *zap.Logger) PreviewOption {
	return func(p *Preview) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPreview(provider WeatherProvider, cache *ResponseCache, ledger *history.Ledger, renderer *render.Renderer, datasetDir string, opts ...PreviewOption) *Preview {
	p := &Preview{
		provider:   provider,
		cache:      cache,
		ledger:     ledger,
		renderer:   renderer,
		datasetDir: datasetDir,
		logger:     zap.NewNop(),
		scenarios:  make(map[string]*scenario),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.live = engine.New(ledger, engine.WithLogger(p.logger), engine.WithMetrics(p.metrics))
	return p
}

// RenderLive fetches (or reuses) the provider response for location,
// folds fresh readings into the history and draws the display.
func (p *Preview) RenderLive(ctx context.Context, location string) (Rendered, error) {
	if p.provider == nil {
		return Rendered{}, ErrNoProvider
	}

	payload, cached, stale, err := p.payload(ctx, location)
	if err != nil {
		p.mu.Lock()
		p.failureCount++
		p.mu.Unlock()
		return Rendered{}, err
	}

	snap, err := normalize.FromProvider(payload, payload.Location())
	if err != nil {
		return Rendered{}, err
	}

	p.writer.Lock()
	if !cached {
		p.ledger.Observe(snap)
		if err := p.ledger.Persist(); err != nil {
			p.logger.Warn("History not persisted", zap.Error(err))
		}
		p.metrics.LedgerRecords(p.ledger.Len())
	}
	out, err := p.live.Run(snap)
	p.writer.Unlock()
	if err != nil {
		return Rendered{}, err
	}

	p.mu.Lock()
	p.liveRenders++
	p.mu.Unlock()

	return Rendered{
		Snapshot: snap,
		Output:   out,
		Image:    p.renderer.Render(engine.Frame(snap, out)),
		Cached:   cached,
		Stale:    stale,
	}, nil
}

func (p *Preview) payload(ctx context.Context, location string) (payload normalize.ProviderPayload, cached, stale bool, err error) {
	key := CacheKey("live", location)
	item, fresh, ok := p.cache.Get(key)
	if fresh {
		p.logger.Debug("Cache hit for provider response", zap.String("location", location))
		return item.Payload, true, false, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	fetched, err := p.provider.Fetch(fetchCtx, location)
	if err != nil {
		if ok {
			p.logger.Warn("Provider unavailable, serving stale response",
				zap.String("location", location),
				zap.Time("stored_at", item.StoredAt),
				zap.Error(err))
			return item.Payload, true, true, nil
		}
		return normalize.ProviderPayload{}, false, false, fmt.Errorf("failed to fetch weather for %s: %w", location, err)
	}

	p.cache.Set(key, fetched)
	p.mu.Lock()
	p.lastFetchTime = time.Now()
	p.mu.Unlock()
	return fetched, false, false, nil
}

// RenderScenario draws the dataset row nearest to ts, compared against
// the dataset's own daily history.
func (p *Preview) RenderScenario(ctx context.Context, key string, ts int64) (Rendered, error) {
	if err := ctx.Err(); err != nil {
		return Rendered{}, err
	}
	sc, err := p.scenario(key)
	if err != nil {
		return Rendered{}, err
	}
	snap, err := sc.series.At(ts)
	if err != nil {
		return Rendered{}, err
	}
	out, err := sc.engine.Run(snap)
	if err != nil {
		return Rendered{}, err
	}

	p.mu.Lock()
	p.scenarioRenders++
	p.mu.Unlock()

	return Rendered{
		Snapshot: snap,
		Output:   out,
		Image:    p.renderer.Render(engine.Frame(snap, out)),
	}, nil
}

// scenario loads a dataset once and keeps it for the process lifetime.
func (p *Preview) scenario(key string) (*scenario, error) {
	ds, err := dataset.Lookup(key)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	sc, ok := p.scenarios[ds.Key]
	p.mu.RUnlock()
	if ok {
		return sc, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if sc, ok := p.scenarios[ds.Key]; ok {
		return sc, nil
	}

	series, err := ds.Open(p.datasetDir)
	if err != nil {
		return nil, err
	}
	sc = &scenario{
		series: series,
		engine: engine.New(dataset.NewHistory(series), engine.WithLogger(p.logger), engine.WithMetrics(p.metrics)),
	}
	p.scenarios[ds.Key] = sc
	p.logger.Info("Dataset loaded",
		zap.String("dataset", ds.Key),
		zap.Int("rows", series.Len()),
		zap.Int("skipped", series.Skipped))
	return sc, nil
}

// Layout parses and lays out arbitrary markup in the narrative box.
func (p *Preview) Layout(text string) ([]markup.StyledRun, layout.Result, error) {
	return p.live.Measure(text)
}

func (p *Preview) History() []models.HistoryRecord {
	return p.ledger.Records()
}

func (p *Preview) GetLastFetchTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastFetchTime
}

type Stats struct {
	Cache           CacheStats `json:"cache"`
	LedgerRecords   int        `json:"ledger_records"`
	DatasetsLoaded  int        `json:"datasets_loaded"`
	LiveRenders     int        `json:"live_renders"`
	ScenarioRenders int        `json:"scenario_renders"`
	FailureCount    int        `json:"failure_count"`
	Backend         string     `json:"backend"`
}

func (p *Preview) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return Stats{
		Cache:           p.cache.GetStats(),
		LedgerRecords:   p.ledger.Len(),
		DatasetsLoaded:  len(p.scenarios),
		LiveRenders:     p.liveRenders,
		ScenarioRenders: p.scenarioRenders,
		FailureCount:    p.failureCount,
		Backend:         p.renderer.Backend(),
	}
}
