package api

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/pinkweather/internal/compare"
	"github.com/bobby-s-dev/pinkweather/internal/dataset"
	"github.com/bobby-s-dev/pinkweather/internal/layout"
	"github.com/bobby-s-dev/pinkweather/internal/markup"
	"github.com/bobby-s-dev/pinkweather/internal/models"
	"github.com/bobby-s-dev/pinkweather/internal/normalize"
	"github.com/bobby-s-dev/pinkweather/internal/render"
	"github.com/bobby-s-dev/pinkweather/internal/services"
	"github.com/bobby-s-dev/pinkweather/pkg/client"
)

type Handler struct {
	preview  *services.Preview
	location string
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(preview *services.Preview, defaultLocation string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		preview:  preview,
		location: defaultLocation,
		validate: validator.New(),
		logger:   logger,
	}
}

type RenderQuery struct {
	Location string `query:"location" validate:"omitempty,max=100"`
	Format   string `query:"format" validate:"omitempty,oneof=png json"`
}

type ScenarioQuery struct {
	Dataset   string `query:"dataset" validate:"omitempty,max=50"`
	Timestamp int64  `query:"timestamp" validate:"required,gt=0"`
	Format    string `query:"format" validate:"omitempty,oneof=png json"`
}

type LayoutRequest struct {
	Text string `json:"text" validate:"required"`
}

// RenderResponse is the JSON form of a render.
type RenderResponse struct {
	Markup       string             `json:"markup"`
	Plain        string             `json:"plain"`
	Runs         []markup.StyledRun `json:"runs"`
	Lines        []string           `json:"lines"`
	TotalHeight  int                `json:"total_height_px"`
	MaxHeight    int                `json:"max_height_px"`
	MaxLineWidth int                `json:"max_line_width_px"`
	Overflow     bool               `json:"overflow"`
	Comparison   *compare.Result    `json:"comparison,omitempty"`
	Timestamp    int64              `json:"timestamp"`
	Local        time.Time          `json:"local"`
	Condition    string             `json:"condition"`
	Cached       bool               `json:"cached"`
	Stale        bool               `json:"stale"`
}

type historyEntry struct {
	Date string `json:"date"`
	models.HistoryRecord
}

// bind parses the query into dst and validates it.
func (h *Handler) bind(c *fiber.Ctx, dst interface{}) error {
	if err := c.QueryParser(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func (h *Handler) badRequest(c *fiber.Ctx, err error) error {
	details := []string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details = append(details, fe.Field()+" failed "+fe.Tag())
		}
	} else {
		details = append(details, err.Error())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "Invalid request",
		"details": details,
	})
}

// GetRender handles GET /api/v1/render
func (h *Handler) GetRender(c *fiber.Ctx) error {
	var q RenderQuery
	if err := h.bind(c, &q); err != nil {
		return h.badRequest(c, err)
	}
	if q.Location == "" {
		q.Location = h.location
	}

	h.logger.Info("Rendering live weather", zap.String("location", q.Location))

	r, err := h.preview.RenderLive(c.UserContext(), q.Location)
	if err != nil {
		return h.fail(c, "Failed to render weather", err, zap.String("location", q.Location))
	}
	return h.respond(c, q.Format, r)
}

// GetScenario handles GET /api/v1/scenario
func (h *Handler) GetScenario(c *fiber.Ctx) error {
	var q ScenarioQuery
	if err := h.bind(c, &q); err != nil {
		return h.badRequest(c, err)
	}

	r, err := h.preview.RenderScenario(c.UserContext(), q.Dataset, q.Timestamp)
	if err != nil {
		return h.fail(c, "Failed to render scenario", err,
			zap.String("dataset", q.Dataset),
			zap.Int64("timestamp", q.Timestamp))
	}
	return h.respond(c, q.Format, r)
}

// PostLayout handles POST /api/v1/markup/layout
func (h *Handler) PostLayout(c *fiber.Ctx) error {
	var req LayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return h.badRequest(c, err)
	}

	runs, res, err := h.preview.Layout(req.Text)
	if err != nil {
		return h.fail(c, "Failed to lay out markup", err)
	}
	return c.JSON(fiber.Map{
		"runs":              runs,
		"plain":             markup.Text(runs),
		"lines":             lineTexts(res.Lines),
		"total_height_px":   res.TotalHeight,
		"max_height_px":     res.MaxHeight,
		"max_line_width_px": res.MaxLineWidth(),
		"overflow":          res.Overflow,
	})
}

func (h *Handler) respond(c *fiber.Ctx, format string, r services.Rendered) error {
	if format == "png" {
		data, err := render.EncodePNG(r.Image)
		if err != nil {
			return h.fail(c, "Failed to encode image", err)
		}
		c.Set(fiber.HeaderContentType, "image/png")
		return c.Send(data)
	}

	out := r.Output
	resp := RenderResponse{
		Markup:       out.Markup,
		Plain:        markup.Text(out.Runs),
		Runs:         out.Runs,
		Lines:        lineTexts(out.Layout.Lines),
		TotalHeight:  out.Layout.TotalHeight,
		MaxHeight:    out.Layout.MaxHeight,
		MaxLineWidth: out.Layout.MaxLineWidth(),
		Overflow:     out.Layout.Overflow,
		Timestamp:    r.Snapshot.Timestamp,
		Local:        r.Snapshot.Local,
		Condition:    r.Snapshot.ConditionText(),
		Cached:       r.Cached,
		Stale:        r.Stale,
	}
	if out.HasComparison {
		cmp := out.Comparison
		resp.Comparison = &cmp
	}
	return c.JSON(resp)
}

// fail maps the error taxonomy onto HTTP status codes.
func (h *Handler) fail(c *fiber.Ctx, message string, err error, fields ...zap.Field) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		h.logger.Error(message, append(fields, zap.Error(err))...)
	} else {
		h.logger.Warn(message, append(fields, zap.Error(err))...)
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   message,
		"details": err.Error(),
	})
}

func statusFor(err error) int {
	var verr *normalize.ValidationError
	var perr *markup.ParseError
	var provErr *client.ProviderError
	switch {
	case errors.As(err, &verr), errors.As(err, &perr):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &provErr):
		return fiber.StatusBadGateway
	case errors.Is(err, dataset.ErrUnknownDataset), errors.Is(err, dataset.ErrNoData):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrNoProvider):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func lineTexts(lines []layout.Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text()
	}
	return out
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":     "healthy",
		"timestamp":  time.Now(),
		"last_fetch": h.preview.GetLastFetchTime(),
		"uptime":     time.Since(startTime).String(),
		"stats":      h.preview.Stats(),
	})
}

// GetMetrics handles GET /api/v1/metrics
func (h *Handler) GetMetrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"metrics":   h.preview.Stats(),
		"timestamp": time.Now(),
	})
}

// GetDatasets handles GET /api/v1/datasets
func (h *Handler) GetDatasets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"datasets": dataset.List(),
		"default":  dataset.Default,
	})
}

// GetHistory handles GET /api/v1/history
func (h *Handler) GetHistory(c *fiber.Ctx) error {
	records := h.preview.History()
	entries := make([]historyEntry, len(records))
	for i, rec := range records {
		entries[i] = historyEntry{Date: rec.Date, HistoryRecord: rec}
	}
	return c.JSON(fiber.Map{
		"records": entries,
	})
}

var startTime = time.Now()
