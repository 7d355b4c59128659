package dataset

import (
	"github.com/bobby-s-dev/pinkweather/internal/models"
)

// History answers comparison lookups from a loaded series. It aggregates
// every hourly row of each local day and is read-only, so scenario
// renders never disturb the live ledger.
type History struct {
	records map[string]models.HistoryRecord
}

func NewHistory(s *Series) *History {
	type acc struct {
		rec   models.HistoryRecord
		sum   float64
		tally map[string]int
	}
	days := make(map[string]*acc)
	for _, h := range s.hours {
		date := h.snap.Date()
		temp := *h.snap.Temp
		a, ok := days[date]
		if !ok {
			a = &acc{
				rec:   models.HistoryRecord{Date: date, MinTemp: temp, MaxTemp: temp},
				tally: make(map[string]int),
			}
			days[date] = a
		}
		a.sum += temp
		a.rec.Samples++
		if temp < a.rec.MinTemp {
			a.rec.MinTemp = temp
		}
		if temp > a.rec.MaxTemp {
			a.rec.MaxTemp = temp
		}
		if c := h.snap.ConditionText(); c != "" {
			a.tally[c]++
		}
	}

	hist := &History{records: make(map[string]models.HistoryRecord, len(days))}
	for date, a := range days {
		a.rec.AvgTemp = a.sum / float64(a.rec.Samples)
		for cond, n := range a.tally {
			best := a.tally[a.rec.DominantCondition]
			if n > best || (n == best && cond < a.rec.DominantCondition) {
				a.rec.DominantCondition = cond
			}
		}
		hist.records[date] = a.rec
	}
	return hist
}

func (h *History) HistoryFor(date string) (models.HistoryRecord, bool) {
	rec, ok := h.records[date]
	return rec, ok
}

func (h *History) Len() int {
	return len(h.records)
}
