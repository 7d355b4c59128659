package services

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/pinkweather/internal/config"
	"github.com/bobby-s-dev/pinkweather/internal/dataset"
	"github.com/bobby-s-dev/pinkweather/internal/history"
	"github.com/bobby-s-dev/pinkweather/internal/models"
	"github.com/bobby-s-dev/pinkweather/internal/normalize"
	"github.com/bobby-s-dev/pinkweather/internal/observability"
	"github.com/bobby-s-dev/pinkweather/internal/render"
	"github.com/bobby-s-dev/pinkweather/pkg/client"
)

var errOffline = errors.New("offline")

type stubProvider struct {
	calls int
	err   error
}

func (s *stubProvider) Fetch(ctx context.Context, location string) (normalize.ProviderPayload, error) {
	s.calls++
	if s.err != nil {
		return normalize.ProviderPayload{}, s.err
	}
	dt := time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC).Unix()
	return normalize.ProviderPayload{
		Units: "metric",
		Current: normalize.ProviderCurrent{
			Dt:        dt,
			Temp:      models.Float(-2),
			Condition: models.String("light snow"),
			Icon:      "13d",
		},
		Forecast: []normalize.ProviderForecast{
			{Dt: dt + 3*3600, Temp: models.Float(-3), Condition: "snow", Icon: "13n", Pop: models.Float(0.6)},
		},
	}, nil
}

func TestCacheKeyIsStable(t *testing.T) {
	a := CacheKey("live", "Toronto,CA")
	if a != CacheKey("live", "Toronto,CA") || len(a) != 64 {
		t.Errorf("unexpected key %q", a)
	}
	if a == CacheKey("live", "Toronto", "CA") || a == CacheKey("live", "Paris,FR") {
		t.Error("distinct parameters must not share a key")
	}
}

func TestResponseCacheFreshness(t *testing.T) {
	c := NewResponseCache(10*time.Minute, observability.NewMetrics(), nil)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, _, ok := c.Get("k"); ok {
		t.Fatal("expected an empty cache")
	}
	c.Set("k", normalize.ProviderPayload{Units: "metric"})

	if item, fresh, ok := c.Get("k"); !ok || !fresh || item.Payload.Units != "metric" {
		t.Errorf("expected a fresh hit, got fresh=%v ok=%v", fresh, ok)
	}

	now = now.Add(11 * time.Minute)
	if _, fresh, ok := c.Get("k"); !ok || fresh {
		t.Errorf("expected a stale entry to be kept, got fresh=%v ok=%v", fresh, ok)
	}

	st := c.GetStats()
	if st.Hits != 1 || st.Misses != 2 || st.Entries != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func newPreview(p WeatherProvider) *Preview {
	ledger := history.NewLedger(history.NewMemoryStore(), nil)
	cache := NewResponseCache(time.Hour, nil, nil)
	renderer := render.NewRenderer(render.NewMetrics(), render.NewPreviewBackend())
	return NewPreview(p, cache, ledger, renderer, "testdata")
}

func TestRenderLiveUsesCache(t *testing.T) {
	p := &stubProvider{}
	pv := newPreview(p)

	first, err := pv.RenderLive(context.Background(), "Toronto,CA")
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached || first.Output.Markup == "" || first.Image == nil {
		t.Errorf("unexpected first render %+v", first.Output)
	}

	second, err := pv.RenderLive(context.Background(), "Toronto,CA")
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached || p.calls != 1 {
		t.Errorf("expected a cached render, got cached=%v calls=%d", second.Cached, p.calls)
	}
	if second.Output.Markup != first.Output.Markup {
		t.Error("cached render should compose the same narrative")
	}

	recs := pv.History()
	if len(recs) != 1 || recs[0].Samples != 1 {
		t.Errorf("cached responses must not be observed twice, got %+v", recs)
	}
	if st := pv.Stats(); st.LiveRenders != 2 || st.Cache.Hits != 1 || st.Backend != "preview" {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestRenderLiveServesStaleOnProviderFailure(t *testing.T) {
	p := &stubProvider{}
	pv := newPreview(p)
	pv.cache.duration = 0

	if _, err := pv.RenderLive(context.Background(), "Toronto,CA"); err != nil {
		t.Fatal(err)
	}
	p.err = errOffline

	r, err := pv.RenderLive(context.Background(), "Toronto,CA")
	if err != nil {
		t.Fatal(err)
	}
	if !r.Stale {
		t.Error("expected the stale response to be served")
	}
}

func TestRenderLiveWithoutCacheFails(t *testing.T) {
	pv := newPreview(&stubProvider{err: errOffline})

	_, err := pv.RenderLive(context.Background(), "Toronto,CA")
	if !errors.Is(err, errOffline) {
		t.Errorf("expected provider error, got %v", err)
	}
	if pv.Stats().FailureCount != 1 {
		t.Error("expected the failure to be counted")
	}
}

func TestRenderScenario(t *testing.T) {
	pv := newPreview(nil)
	loc, _ := time.LoadLocation("America/New_York")
	ts := time.Date(2024, 1, 2, 12, 0, 0, 0, loc).Unix()

	r, err := pv.RenderScenario(context.Background(), "ny_2024", ts)
	if err != nil {
		t.Fatal(err)
	}
	if r.Snapshot.Timestamp != ts || r.Output.Markup == "" {
		t.Errorf("unexpected scenario render %+v", r.Snapshot)
	}
	if !r.Output.HasComparison {
		t.Error("expected a comparison against the dataset's previous day")
	}
	if len(pv.History()) != 0 {
		t.Error("scenario renders must not touch the live history")
	}

	if _, err := pv.RenderScenario(context.Background(), "ny_2024", ts+30*24*3600); !errors.Is(err, dataset.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
	if _, err := pv.RenderScenario(context.Background(), "atlantis", ts); !errors.Is(err, dataset.ErrUnknownDataset) {
		t.Errorf("expected ErrUnknownDataset, got %v", err)
	}
	if pv.Stats().DatasetsLoaded != 1 {
		t.Error("expected the dataset to be loaded once")
	}
}

func TestLayout(t *testing.T) {
	pv := newPreview(nil)
	runs, res, err := pv.Layout("<b>Hi</b> there")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || res.Overflow || len(res.Lines) != 1 {
		t.Errorf("unexpected layout %d runs, %+v", len(runs), res)
	}
}

func TestNewProvider(t *testing.T) {
	cfg := &config.Config{}
	if p := NewProvider(cfg, nil, zap.NewNop()); p != nil {
		t.Error("expected no provider without an API key")
	}

	cfg.Provider.OpenWeatherAPIKey = "secret"
	cfg.Provider.Units = "metric"
	if _, ok := NewProvider(cfg, nil, zap.NewNop()).(*client.OpenWeatherClient); !ok {
		t.Error("expected the OpenWeather client")
	}
}
