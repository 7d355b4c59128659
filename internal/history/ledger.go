package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/pinkweather/internal/models"
)

// Capacity is the number of calendar days kept.
const Capacity = 10

// Ledger is the bounded window of daily aggregates behind the
// "compared to yesterday" fragment. At most one record exists per date and
// never more than Capacity records; when full, the oldest date goes first.
type Ledger struct {
	mu       sync.Mutex
	records  map[string]models.HistoryRecord
	capacity int
	store    Store
	logger   *zap.Logger
}

func NewLedger(store Store, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		records:  make(map[string]models.HistoryRecord),
		capacity: Capacity,
		store:    store,
		logger:   logger,
	}
}

// Record inserts or replaces the aggregate for rec.Date.
func (l *Ledger) Record(rec models.HistoryRecord) error {
	if _, err := time.Parse(models.DateLayout, rec.Date); err != nil {
		return fmt.Errorf("record date %q: %w", rec.Date, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.put(rec)
	return nil
}

func (l *Ledger) put(rec models.HistoryRecord) {
	l.records[rec.Date] = rec
	for len(l.records) > l.capacity {
		oldest := ""
		for d := range l.records {
			if oldest == "" || d < oldest {
				oldest = d
			}
		}
		delete(l.records, oldest)
		l.logger.Debug("History record evicted", zap.String("date", oldest))
	}
}

// Observe folds one reading into the aggregate for the snapshot's local
// day. Snapshots without a temperature are ignored.
func (l *Ledger) Observe(s models.WeatherSnapshot) (models.HistoryRecord, bool) {
	if s.Temp == nil {
		return models.HistoryRecord{}, false
	}
	date := s.Date()
	temp := *s.Temp
	cond := s.ConditionText()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[date]
	if ok && rec.Samples == 0 {
		// an imported record without a sample count counts as one reading
		rec.Samples = 1
		if len(rec.Conditions) == 0 && rec.DominantCondition != "" {
			rec.Conditions = map[string]int{rec.DominantCondition: 1}
		}
	}
	if !ok {
		rec = models.HistoryRecord{
			Date:    date,
			MinTemp: temp,
			MaxTemp: temp,
			AvgTemp: temp,
			Samples: 1,
		}
	} else {
		rec.MinTemp = minf(rec.MinTemp, temp)
		rec.MaxTemp = maxf(rec.MaxTemp, temp)
		rec.AvgTemp = (rec.AvgTemp*float64(rec.Samples) + temp) / float64(rec.Samples+1)
		rec.Samples++
	}

	tally := make(map[string]int, len(rec.Conditions)+1)
	for k, v := range rec.Conditions {
		tally[k] = v
	}
	if cond != "" {
		tally[cond]++
	}
	rec.Conditions = tally
	rec.DominantCondition = dominant(tally, rec.DominantCondition)

	l.put(rec)
	return rec, true
}

func dominant(tally map[string]int, fallback string) string {
	best, bestN := fallback, 0
	for k, n := range tally {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

func (l *Ledger) Lookup(date string) (models.HistoryRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[date]
	return rec, ok
}

// HistoryFor makes the ledger a comparison source.
func (l *Ledger) HistoryFor(date string) (models.HistoryRecord, bool) {
	return l.Lookup(date)
}

// Records returns the window ordered by date, oldest first.
func (l *Ledger) Records() []models.HistoryRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.HistoryRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Persist writes the window to the store as a JSON object keyed by date.
func (l *Ledger) Persist() error {
	if l.store == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode", Err: err}
	}
	if err := l.store.Write(data); err != nil {
		return &PersistenceError{Op: "write", Err: err}
	}
	l.logger.Debug("History persisted", zap.Int("records", len(l.records)))
	return nil
}

// Load replaces the window with the stored one. A missing file is an empty
// history; any other failure also leaves the ledger empty and is returned
// so the caller can log it.
func (l *Ledger) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = make(map[string]models.HistoryRecord)
	if l.store == nil {
		return nil
	}

	data, err := l.store.Read()
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return &PersistenceError{Op: "read", Err: err}
	}

	var stored map[string]models.HistoryRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return &PersistenceError{Op: "decode", Err: err}
	}
	for date, rec := range stored {
		if _, err := time.Parse(models.DateLayout, date); err != nil {
			l.logger.Warn("Skipping history entry with bad date", zap.String("date", date))
			continue
		}
		rec.Date = date
		l.put(rec)
	}
	l.logger.Debug("History loaded", zap.Int("records", len(l.records)))
	return nil
}

func minf(a, b float64) float64 {
	if b < a {
		return b
	}
	return a
}

func maxf(a, b float64) float64 {
	if b > a {
		return b
	}
	return a
}
