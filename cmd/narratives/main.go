// Command narratives composes a narrative for every hour of a historical
// dataset and writes them as CSV, or checks an existing CSV against the
// current layout.
package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/bobby-s-dev/pinkweather/internal/config"
	"github.com/bobby-s-dev/pinkweather/internal/dataset"
	"github.com/bobby-s-dev/pinkweather/internal/engine"
	"github.com/bobby-s-dev/pinkweather/internal/observability"
)

func main() {
	key := flag.String("dataset", dataset.Default, "dataset key")
	out := flag.String("out", "", "output CSV (default <dataset dir>/narratives_<dataset>.csv)")
	limit := flag.Int("limit", 0, "compose at most this many hours")
	verify := flag.String("verify", "", "re-check fits_display in an existing narrative CSV instead of generating")
	flag.Parse()

	logger, _ := zap.NewProduction()
	zap.ReplaceGlobals(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if leveled, err := observability.NewLogger(cfg.Server.LogLevel); err == nil {
		logger = leveled
	}
	defer logger.Sync()

	ds, err := dataset.Lookup(*key)
	if err != nil {
		logger.Fatal("Unknown dataset", zap.Error(err))
	}
	series, err := ds.Open(cfg.Dataset.Dir)
	if err != nil {
		logger.Fatal("Failed to load dataset", zap.Error(err))
	}
	eng := engine.New(dataset.NewHistory(series), engine.WithLogger(logger))

	if *verify != "" {
		if err := verifyFile(*verify, eng, logger); err != nil {
			logger.Fatal("Verification failed", zap.Error(err))
		}
		return
	}

	rows, err := dataset.Generate(series, eng, *limit)
	if err != nil {
		logger.Fatal("Failed to generate narratives", zap.Int("generated", len(rows)), zap.Error(err))
	}

	path := *out
	if path == "" {
		path = filepath.Join(cfg.Dataset.Dir, "narratives_"+ds.Key+".csv")
	}
	f, err := os.Create(path)
	if err != nil {
		logger.Fatal("Failed to create output", zap.Error(err))
	}
	if err := dataset.WriteNarratives(f, rows); err != nil {
		f.Close()
		logger.Fatal("Failed to write narratives", zap.Error(err))
	}
	if err := f.Close(); err != nil {
		logger.Fatal("Failed to write narratives", zap.Error(err))
	}

	sum := dataset.Summarize(rows)
	logger.Info("Narratives written",
		zap.String("path", path),
		zap.String("dataset", ds.Key),
		zap.Int("skipped_rows", series.Skipped),
		zap.Int("total", sum.Total),
		zap.Int("overflows", sum.Overflows),
		zap.Float64("overflow_rate", sum.OverflowRate),
		zap.Float64("avg_chars", sum.AvgChars),
		zap.Float64("avg_lines", sum.AvgLines))
}

func verifyFile(path string, eng *engine.Engine, logger *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := dataset.ReadNarratives(f)
	if err != nil {
		return err
	}

	var mismatches int
	for _, row := range rows {
		err := dataset.VerifyRow(row, eng)
		var mismatch *dataset.MismatchError
		if errors.As(err, &mismatch) {
			mismatches++
			logger.Warn("Recorded fit disagrees with layout", zap.Error(err))
			continue
		}
		if err != nil {
			return err
		}
	}
	logger.Info("Narratives verified", zap.Int("rows", len(rows)), zap.Int("mismatches", mismatches))
	if mismatches > 0 {
		return errors.New("recorded fits_display values are out of date")
	}
	return nil
}
