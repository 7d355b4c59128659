// Package engine runs the shared narrative pipeline: compare against
// history, compose to fit, parse and lay out. The device cycle and the
// preview server both go through it so their output agrees.
package engine

import (
	"fmt"
	"image"
	"math"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/pinkweather/internal/compare"
	"github.com/bobby-s-dev/pinkweather/internal/layout"
	"github.com/bobby-s-dev/pinkweather/internal/markup"
	"github.com/bobby-s-dev/pinkweather/internal/models"
	"github.com/bobby-s-dev/pinkweather/internal/narrative"
	"github.com/bobby-s-dev/pinkweather/internal/observability"
	"github.com/bobby-s-dev/pinkweather/internal/render"
)

// Output is the result of one pipeline run.
type Output struct {
	Markup        string             `json:"markup"`
	Runs          []markup.StyledRun `json:"runs"`
	Layout        layout.Result      `json:"layout"`
	Comparison    compare.Result     `json:"comparison"`
	HasComparison bool               `json:"has_comparison"`
}

type Engine struct {
	composer *narrative.Composer
	measurer layout.Measurer
	box      image.Rectangle
	metrics  *observability.Metrics
	logger   *zap.Logger
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithBox overrides the narrative box, mostly for tests.
func WithBox(box image.Rectangle) Option {
	return func(e *Engine) { e.box = box }
}

func WithMeasurer(m layout.Measurer) Option {
	return func(e *Engine) { e.measurer = m }
}

// New builds an engine comparing against src. A nil src skips the
// comparison.
func New(src compare.Source, opts ...Option) *Engine {
	e := &Engine{
		measurer: render.NewMetrics(),
		box:      render.NarrativeBox,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.composer = narrative.NewComposer(src, narrative.WithLogger(e.logger))
	return e
}

func (e *Engine) layout(runs []markup.StyledRun) layout.Result {
	return layout.Layout(runs, e.measurer, e.box.Dx(), e.box.Dy())
}

// Measure parses and lays out markup in the engine's narrative box.
func (e *Engine) Measure(text string) ([]markup.StyledRun, layout.Result, error) {
	runs, err := markup.Parse(text)
	if err != nil {
		return nil, layout.Result{}, err
	}
	return runs, e.layout(runs), nil
}

// Run composes the richest narrative that fits the box. When nothing
// fits, the shortest candidate is laid out and Layout.Overflow is set.
func (e *Engine) Run(s models.WeatherSnapshot) (Output, error) {
	start := time.Now()

	plan, err := e.composer.Plan(s)
	if err != nil {
		return Output{}, err
	}

	text, _ := plan.Fit(func(candidate string) bool {
		_, res, err := e.Measure(candidate)
		return err == nil && !res.Overflow
	})

	runs, res, err := e.Measure(text)
	if err != nil {
		return Output{}, fmt.Errorf("composed narrative: %w", err)
	}

	e.metrics.Composed(time.Since(start), res.Overflow)
	if res.Overflow {
		e.logger.Warn("Narrative overflows display",
			zap.Int64("timestamp", s.Timestamp),
			zap.Int("total_height_px", res.TotalHeight),
			zap.Int("max_height_px", res.MaxHeight))
	}

	return Output{
		Markup:        text,
		Runs:          runs,
		Layout:        res,
		Comparison:    plan.Comparison,
		HasComparison: plan.HasComparison,
	}, nil
}

// forecastCells is how many cells fit in the forecast row.
const forecastCells = 5

type forecastEvent struct {
	dt   int64
	cell render.ForecastCell
}

// Frame assembles the full display frame for a snapshot and its output.
// The next sunrise and sunset within a day are placed in the forecast row
// as special cells, ordered with the regular points.
func Frame(s models.WeatherSnapshot, out Output) render.Frame {
	f := render.Frame{
		Header:    s.Local.Format("Mon Jan 2"),
		SubHeader: s.Local.Format("3:04pm"),
		Narrative: out.Layout,
	}
	loc := s.Local.Location()

	var events []forecastEvent
	for _, p := range s.Forecast {
		if p.Dt <= s.Timestamp {
			continue
		}
		events = append(events, forecastEvent{dt: p.Dt, cell: render.ForecastCell{
			Label: time.Unix(p.Dt, 0).In(loc).Format("3pm"),
			Temp:  formatTemp(p.Temp),
			Icon:  p.Icon,
		}})
	}

	if s.Sun != nil && s.Sun.Sunrise > 0 && s.Sun.Sunset > 0 {
		f.SubHeader = time.Unix(s.Sun.Sunrise, 0).In(loc).Format("3:04pm") + " / " +
			time.Unix(s.Sun.Sunset, 0).In(loc).Format("3:04pm")

		for _, ev := range []struct {
			dt   int64
			icon string
		}{{s.Sun.Sunrise, "sunrise"}, {s.Sun.Sunset, "sunset"}} {
			dt := ev.dt
			if dt <= s.Timestamp {
				// already passed today, tomorrow's is close enough
				dt += 24 * 3600
			}
			if dt > s.Timestamp+24*3600 {
				continue
			}
			events = append(events, forecastEvent{dt: dt, cell: render.ForecastCell{
				Label:   time.Unix(dt, 0).In(loc).Format("3:04pm"),
				Temp:    formatTemp(s.Temp),
				Icon:    ev.icon,
				Special: true,
			}})
		}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].dt < events[j].dt })
	for _, ev := range events {
		if len(f.Forecast) == forecastCells {
			break
		}
		f.Forecast = append(f.Forecast, ev.cell)
	}
	return f
}

func formatTemp(t *float64) string {
	if t == nil {
		return ""
	}
	return strconv.Itoa(int(math.Round(*t))) + "°"
}
