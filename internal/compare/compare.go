package compare

import (
	"math"
	"time"

	"github.com/bobby-s-dev/pinkweather/internal/models"
)

// Source supplies the aggregate for a calendar day.
type Source interface {
	HistoryFor(date string) (models.HistoryRecord, bool)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(date string) (models.HistoryRecord, bool)

func (f SourceFunc) HistoryFor(date string) (models.HistoryRecord, bool) {
	return f(date)
}

type Bucket string

const (
	MuchColder Bucket = "much_colder"
	Colder     Bucket = "colder"
	Similar    Bucket = "similar"
	Warmer     Bucket = "warmer"
	MuchWarmer Bucket = "much_warmer"
)

// Thresholds on the rounded delta in °C. Every integer delta falls in
// exactly one bucket. The difference is rounded before bucketing, so +0.6
// is already a little warmer and only |diff| < 0.5 counts as similar.
const (
	MuchThreshold = 5
	StepThreshold = 1
	// SlightBelow marks deltas phrased as only a little warmer or colder.
	SlightBelow = 3
)

// Rank orders buckets from much_colder (0) to much_warmer (4).
func (b Bucket) Rank() int {
	switch b {
	case MuchColder:
		return 0
	case Colder:
		return 1
	case Similar:
		return 2
	case Warmer:
		return 3
	case MuchWarmer:
		return 4
	}
	return -1
}

func (b Bucket) Much() bool {
	return b == MuchColder || b == MuchWarmer
}

// BucketFor classifies a rounded delta.
func BucketFor(delta int) Bucket {
	switch {
	case delta >= MuchThreshold:
		return MuchWarmer
	case delta >= StepThreshold:
		return Warmer
	case delta <= -MuchThreshold:
		return MuchColder
	case delta <= -StepThreshold:
		return Colder
	default:
		return Similar
	}
}

type Result struct {
	Date      string  `json:"date"`
	Yesterday float64 `json:"yesterday_avg"`
	Delta     int     `json:"delta"`
	Bucket    Bucket  `json:"bucket"`
}

// Slight reports a warmer/colder result small enough to hedge.
func (r Result) Slight() bool {
	d := r.Delta
	if d < 0 {
		d = -d
	}
	return !r.Bucket.Much() && r.Bucket != Similar && d < SlightBelow
}

// Compare relates the snapshot's temperature to yesterday's average. The
// second result is false when the temperature or yesterday's record is
// missing.
func Compare(s models.WeatherSnapshot, src Source) (Result, bool) {
	if s.Temp == nil || src == nil {
		return Result{}, false
	}
	y, m, d := s.Local.Date()
	// noon keeps the subtraction clear of DST transitions
	yesterday := time.Date(y, m, d-1, 12, 0, 0, 0, s.Local.Location()).Format(models.DateLayout)

	rec, ok := src.HistoryFor(yesterday)
	if !ok {
		return Result{}, false
	}
	delta := int(math.Round(*s.Temp - rec.AvgTemp))
	return Result{
		Date:      yesterday,
		Yesterday: rec.AvgTemp,
		Delta:     delta,
		Bucket:    BucketFor(delta),
	}, true
}
