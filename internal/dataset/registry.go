// Package dataset serves historical Open-Meteo exports as a stand-in for
// the live provider, and reads and writes the narrative CSV produced from
// them.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

var (
	ErrUnknownDataset = errors.New("unknown dataset")
	// ErrNoData is returned when no hourly row lies within Tolerance of
	// the requested timestamp.
	ErrNoData = errors.New("no data near timestamp")
)

// Default is the dataset used when a request names none.
const Default = "ny_2024"

type Dataset struct {
	Key      string  `json:"key"`
	Name     string  `json:"name"`
	City     string  `json:"city"`
	File     string  `json:"file"`
	Timezone string  `json:"timezone"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

var registry = map[string]Dataset{
	"ny_2024": {
		Key:      "ny_2024",
		Name:     "New York 2024",
		City:     "New York",
		File:     "open-meteo-40.65N73.98W25m.csv",
		Timezone: "America/New_York",
		Lat:      40.65,
		Lon:      -73.98,
	},
	"toronto_2025": {
		Key:      "toronto_2025",
		Name:     "Toronto 2025",
		City:     "Toronto",
		File:     "open-meteo-43.70N79.40W165m.csv",
		Timezone: "America/Toronto",
		Lat:      43.70,
		Lon:      -79.40,
	},
}

// Lookup returns the dataset for key, or Default when key is empty.
func Lookup(key string) (Dataset, error) {
	if key == "" {
		key = Default
	}
	d, ok := registry[key]
	if !ok {
		return Dataset{}, fmt.Errorf("%w: %q", ErrUnknownDataset, key)
	}
	return d, nil
}

// List returns every registered dataset ordered by key.
func List() []Dataset {
	out := make([]Dataset, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (d Dataset) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.Key, err)
	}
	return loc, nil
}

// Open loads the dataset's CSV from dir.
func (d Dataset) Open(dir string) (*Series, error) {
	loc, err := d.Location()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(dir, d.File))
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.Key, err)
	}
	defer f.Close()

	series, err := LoadOpenMeteo(f, loc)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", d.Key, err)
	}
	series.Dataset = d
	return series, nil
}
