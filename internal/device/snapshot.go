package device

import (
	"encoding/json"
	"errors"

	"github.com/bobby-s-dev/pinkweather/internal/history"
	"github.com/bobby-s-dev/pinkweather/internal/models"
)

// SnapshotStore keeps the last good snapshot so a cycle can still draw
// when the provider is unreachable. It shares the history Store backends.
type SnapshotStore struct {
	store history.Store
}

func NewSnapshotStore(store history.Store) *SnapshotStore {
	return &SnapshotStore{store: store}
}

// Load returns the saved snapshot. ok is false when nothing was saved.
func (s *SnapshotStore) Load() (snap models.WeatherSnapshot, ok bool, err error) {
	data, err := s.store.Read()
	if errors.Is(err, history.ErrNotFound) {
		return models.WeatherSnapshot{}, false, nil
	}
	if err != nil {
		return models.WeatherSnapshot{}, false, &history.PersistenceError{Op: "read snapshot", Err: err}
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.WeatherSnapshot{}, false, &history.PersistenceError{Op: "decode snapshot", Err: err}
	}
	return snap, true, nil
}

func (s *SnapshotStore) Save(snap models.WeatherSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return &history.PersistenceError{Op: "encode snapshot", Err: err}
	}
	if err := s.store.Write(data); err != nil {
		return &history.PersistenceError{Op: "write snapshot", Err: err}
	}
	return nil
}
