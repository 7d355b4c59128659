// Package device runs one display refresh as an explicit state machine:
// connect, fetch, compose, render, persist, sleep.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/pinkweather/internal/engine"
	"github.com/bobby-s-dev/pinkweather/internal/history"
	"github.com/bobby-s-dev/pinkweather/internal/models"
	"github.com/bobby-s-dev/pinkweather/internal/normalize"
	"github.com/bobby-s-dev/pinkweather/internal/observability"
	"github.com/bobby-s-dev/pinkweather/internal/render"
)

type State int

const (
	Idle State = iota
	Connecting
	Fetching
	Composing
	Rendering
	Persisting
	Sleeping
)

var stateNames = [...]string{"idle", "connecting", "fetching", "composing", "rendering", "persisting", "sleeping"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// next lists the only legal successor of each state on the happy path.
// Any state may also abort straight back to Idle.
var next = map[State]State{
	Idle:       Connecting,
	Connecting: Fetching,
	Fetching:   Composing,
	Composing:  Rendering,
	Rendering:  Persisting,
	Persisting: Sleeping,
	Sleeping:   Idle,
}

// ErrBusy is returned when a cycle is requested while one is running.
var ErrBusy = errors.New("device cycle already running")

type Provider interface {
	Fetch(ctx context.Context, location string) (normalize.ProviderPayload, error)
}

// Connector brings the network up before a fetch.
type Connector interface {
	Connect(ctx context.Context) error
}

// Report describes one finished cycle. Final is Idle after a complete
// cycle, or the state the cycle aborted in.
type Report struct {
	CycleID      uuid.UUID     `json:"cycle_id"`
	Started      time.Time     `json:"started"`
	Duration     time.Duration `json:"duration"`
	Final        State         `json:"-"`
	FinalName    string        `json:"final"`
	Path         []State       `json:"-"`
	Err          error         `json:"-"`
	Error        string        `json:"error,omitempty"`
	UsedFallback bool          `json:"used_fallback"`
	Overflow     bool          `json:"overflow"`
	Markup       string        `json:"markup,omitempty"`
}

type Device struct {
	provider  Provider
	connector Connector
	location  string
	ledger    *history.Ledger
	snapshots *SnapshotStore
	engine    *engine.Engine
	renderer  *render.Renderer
	presenter render.Presenter
	metrics   *observability.Metrics
	logger    *zap.Logger

	running sync.Mutex
	mu      sync.Mutex
	state   State
}

type Option func(*Device)

func WithConnector(c Connector) Option {
	return func(d *Device) { d.connector = c }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(d *Device) { d.metrics = m }
}

func WithLogger(logger *zap.Logger) Option {
	return func(d *Device) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRenderer replaces the bitmap renderer.
func WithRenderer(r *render.Renderer) Option {
	return func(d *Device) { d.renderer = r }
}

func New(provider Provider, location string, ledger *history.Ledger, snapshots *SnapshotStore, presenter render.Presenter, opts ...Option) *Device {
	d := &Device{
		provider:  provider,
		location:  location,
		ledger:    ledger,
		snapshots: snapshots,
		presenter: presenter,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.renderer == nil {
		d.renderer = render.NewRenderer(render.NewMetrics(), render.NewBitmapBackend())
	}
	d.engine = engine.New(ledger, engine.WithLogger(d.logger), engine.WithMetrics(d.metrics))
	return d
}

func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

type cycle struct {
	d      *Device
	report *Report
}

func (c *cycle) enter(s State) {
	c.d.mu.Lock()
	from := c.d.state
	if next[from] != s {
		c.d.mu.Unlock()
		panic(fmt.Sprintf("device: illegal transition %s -> %s", from, s))
	}
	c.d.state = s
	c.d.mu.Unlock()

	c.report.Path = append(c.report.Path, s)
	c.d.logger.Debug("Device state", zap.String("cycle_id", c.report.CycleID.String()),
		zap.String("from", from.String()), zap.String("to", s.String()))
}

// abort ends the cycle in the current state and returns the device to Idle
// with the display untouched.
func (c *cycle) abort(err error) Report {
	c.d.mu.Lock()
	c.report.Final = c.d.state
	c.d.state = Idle
	c.d.mu.Unlock()

	c.report.Err = err
	return c.finish()
}

func (c *cycle) finish() Report {
	c.report.FinalName = c.report.Final.String()
	if c.report.Err != nil {
		c.report.Error = c.report.Err.Error()
	}
	c.report.Duration = time.Since(c.report.Started)
	c.d.metrics.Cycle(c.report.FinalName)

	fields := []zap.Field{
		zap.String("cycle_id", c.report.CycleID.String()),
		zap.String("final", c.report.FinalName),
		zap.Bool("used_fallback", c.report.UsedFallback),
		zap.Bool("overflow", c.report.Overflow),
		zap.Duration("duration", c.report.Duration),
	}
	if c.report.Err != nil {
		c.d.logger.Error("Device cycle aborted", append(fields, zap.Error(c.report.Err))...)
	} else {
		c.d.logger.Info("Device cycle completed", fields...)
	}
	return *c.report
}

// Cycle runs one refresh. Provider failures fall back to the last saved
// snapshot; validation and markup failures abort without touching the
// display; persistence failures are logged and the cycle carries on.
func (d *Device) Cycle(ctx context.Context) (Report, error) {
	if !d.running.TryLock() {
		return Report{}, ErrBusy
	}
	defer d.running.Unlock()

	c := &cycle{d: d, report: &Report{CycleID: uuid.New(), Started: time.Now()}}

	snap, err := c.acquire(ctx)
	if err != nil {
		return c.abort(err), nil
	}

	c.enter(Composing)
	if !c.report.UsedFallback {
		d.ledger.Observe(snap)
	}
	out, err := d.engine.Run(snap)
	if err != nil {
		return c.abort(err), nil
	}
	c.report.Overflow = out.Layout.Overflow
	c.report.Markup = out.Markup

	c.enter(Rendering)
	img := d.renderer.Render(engine.Frame(snap, out))
	if err := d.presenter.Present(img); err != nil {
		return c.abort(fmt.Errorf("present: %w", err)), nil
	}

	c.enter(Persisting)
	if err := d.ledger.Persist(); err != nil {
		d.logger.Warn("History not persisted", zap.Error(err))
	}
	if !c.report.UsedFallback {
		if err := d.snapshots.Save(snap); err != nil {
			d.logger.Warn("Snapshot not persisted", zap.Error(err))
		}
	}
	d.metrics.LedgerRecords(d.ledger.Len())

	c.enter(Sleeping)
	c.enter(Idle)
	c.report.Final = Idle
	return c.finish(), nil
}

// acquire walks Connecting and Fetching and returns the snapshot to draw.
func (c *cycle) acquire(ctx context.Context) (models.WeatherSnapshot, error) {
	d := c.d
	c.enter(Connecting)
	var fetchErr error
	if d.connector != nil {
		fetchErr = d.connector.Connect(ctx)
	}

	c.enter(Fetching)
	if fetchErr == nil {
		payload, err := d.provider.Fetch(ctx, d.location)
		if err == nil {
			// A malformed payload is not a provider outage: abort.
			return normalize.FromProvider(payload, payload.Location())
		}
		fetchErr = err
	}

	d.logger.Warn("Provider unavailable, trying last snapshot", zap.Error(fetchErr))
	snap, ok, err := d.snapshots.Load()
	if err != nil {
		d.logger.Warn("Last snapshot unreadable", zap.Error(err))
	}
	if !ok {
		return models.WeatherSnapshot{}, fmt.Errorf("no fallback snapshot: %w", fetchErr)
	}
	c.report.UsedFallback = true
	return snap, nil
}
