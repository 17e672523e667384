package weather

import (
	"sync"
	"sync/atomic"

	"github.com/kjstillabower/weather-companion/internal/models"
)

// SnapshotStore holds the single active snapshot. Replacement is atomic; readers
// never see a partially built snapshot.
type SnapshotStore struct {
	active atomic.Pointer[models.WeatherSnapshot]

	issued atomic.Uint64

	mu        sync.Mutex
	published uint64
	nextID    int
	subs      map[int]func(models.WeatherSnapshot)
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{subs: make(map[int]func(models.WeatherSnapshot))}
}

// Active returns a copy of the active snapshot, or false before the first publish.
func (s *SnapshotStore) Active() (models.WeatherSnapshot, bool) {
	p := s.active.Load()
	if p == nil {
		return models.WeatherSnapshot{}, false
	}
	out := *p
	out.DailyForecast = append([]models.ForecastEntry(nil), p.DailyForecast...)
	return out, true
}

// Subscribe registers fn to run after each publish, on the publishing goroutine.
func (s *SnapshotStore) Subscribe(fn func(models.WeatherSnapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// issue returns the sequence number of a newly started fetch.
func (s *SnapshotStore) issue() uint64 {
	return s.issued.Add(1)
}

// publish makes snapshot active as the newest issued fetch.
func (s *SnapshotStore) publish(snapshot models.WeatherSnapshot) {
	s.publishIssued(s.issue(), snapshot)
}

// publishIssued makes snapshot active unless a fetch issued after seq has
// already published. It reports whether the snapshot became active. Unexported
// so the Aggregator stays the only writer.
func (s *SnapshotStore) publishIssued(seq uint64, snapshot models.WeatherSnapshot) bool {
	stored := snapshot
	stored.DailyForecast = append([]models.ForecastEntry(nil), snapshot.DailyForecast...)

	s.mu.Lock()
	if seq <= s.published {
		s.mu.Unlock()
		return false
	}
	s.published = seq
	s.active.Store(&stored)
	subs := make([]func(models.WeatherSnapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
	return true
}
