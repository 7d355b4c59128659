package narrative

import (
	"sort"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/pinkweather/internal/compare"
	"github.com/bobby-s-dev/pinkweather/internal/markup"
	"github.com/bobby-s-dev/pinkweather/internal/models"
	"github.com/bobby-s-dev/pinkweather/internal/normalize"
)

// Composer turns a snapshot into markup text. It holds no state of its own
// beyond the injected comparison source.
type Composer struct {
	src    compare.Source
	logger *zap.Logger
	moon   bool
}

type Option func(*Composer)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Composer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMoon toggles the full/new moon fragment. It is on by default.
func WithMoon(enabled bool) Option {
	return func(c *Composer) {
		c.moon = enabled
	}
}

// NewComposer builds a composer reading yesterday's record from src. A nil
// src disables the comparison fragment.
func NewComposer(src compare.Source, opts ...Option) *Composer {
	c := &Composer{src: src, logger: zap.NewNop(), moon: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Plan is the set of fragments chosen for a snapshot, highest priority
// first, plus the comparison it was built from.
type Plan struct {
	Fragments     []Fragment     `json:"fragments"`
	Comparison    compare.Result `json:"comparison"`
	HasComparison bool           `json:"has_comparison"`
}

// Plan validates the snapshot and collects every applicable fragment.
func (c *Composer) Plan(s models.WeatherSnapshot) (Plan, error) {
	if err := normalize.Validate(s); err != nil {
		return Plan{}, err
	}

	var p Plan
	add := func(f Fragment, ok bool) {
		if ok {
			p.Fragments = append(p.Fragments, f)
		}
	}

	add(currentFragment(s), true)
	if res, ok := compare.Compare(s, c.src); ok {
		p.Comparison, p.HasComparison = res, true
		add(comparisonFragment(res), true)
	}
	add(precipitationFragment(s))
	add(upcomingFragment(s))
	add(outlookFragment(s))
	add(airQualityFragment(s))
	add(sunsetFragment(s))
	if c.moon {
		add(moonFragment(s))
	}

	sort.SliceStable(p.Fragments, func(i, j int) bool {
		return p.Fragments[i].Priority > p.Fragments[j].Priority
	})
	return p, nil
}

// Candidates lists the narratives to try, richest first: for each number
// of kept fragments the full text, then the short variants, then the
// short variants abbreviated. Fragments are dropped lowest priority first
// and are never cut.
func (p Plan) Candidates() []string {
	seen := make(map[string]bool)
	var out []string
	push := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for keep := len(p.Fragments); keep > 0; keep-- {
		frags := p.Fragments[:keep]
		full := make([]string, keep)
		short := make([]string, keep)
		for i, f := range frags {
			full[i] = f.Text
			short[i] = f.short()
		}
		push(join(full))
		shortText := join(short)
		push(shortText)
		push(abbreviate(shortText))
	}
	return out
}

// Fit returns the first candidate fits accepts. If none does, the shortest
// candidate is returned along with false, and the caller reports overflow.
func (p Plan) Fit(fits func(string) bool) (string, bool) {
	cands := p.Candidates()
	if len(cands) == 0 {
		return "", true
	}
	for _, cand := range cands {
		if fits == nil || fits(cand) {
			return cand, true
		}
	}
	smallest := cands[0]
	for _, cand := range cands[1:] {
		if len(markup.Strip(cand)) < len(markup.Strip(smallest)) {
			smallest = cand
		}
	}
	return smallest, false
}

// Compose returns the complete narrative with every fragment.
func (c *Composer) Compose(s models.WeatherSnapshot) (string, error) {
	p, err := c.Plan(s)
	if err != nil {
		return "", err
	}
	text, _ := p.Fit(nil)
	return text, nil
}

// ComposeFitting returns the richest narrative fits accepts.
func (c *Composer) ComposeFitting(s models.WeatherSnapshot, fits func(text string) bool) (string, error) {
	p, err := c.Plan(s)
	if err != nil {
		return "", err
	}
	text, ok := p.Fit(fits)
	if !ok {
		c.logger.Debug("No narrative candidate fits, using the shortest",
			zap.Int("fragments", len(p.Fragments)))
	}
	return text, nil
}
