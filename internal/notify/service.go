package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-companion/internal/models"
	"github.com/kjstillabower/weather-companion/internal/observability"
)

const sendTimeout = 10 * time.Second

// ErrInvalidSchedule is returned for an hour or minute outside the clock range.
var ErrInvalidSchedule = errors.New("invalid daily schedule")

// SnapshotSource exposes the active snapshot.
type SnapshotSource interface {
	Active() (models.WeatherSnapshot, bool)
}

type Config struct {
	Enabled        bool
	DailyHour      int
	DailyMinute    int
	NotifyOnUpdate bool
	// Location is the zone the daily time is interpreted in. Defaults to time.Local.
	Location *time.Location
}

// Service decides whether and when to notify. It never fetches weather itself.
type Service struct {
	sender    Sender
	source    SnapshotSource
	cfg       Config
	logger    *zap.Logger
	scheduler *gocron.Scheduler

	mu      sync.Mutex
	enabled bool
	daily   *gocron.Job
	latest  *models.WeatherSnapshot
	started bool
}

func NewService(sender Sender, source SnapshotSource, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		sender:    sender,
		source:    source,
		cfg:       cfg,
		logger:    logger,
		scheduler: gocron.NewScheduler(loc),
		enabled:   cfg.Enabled,
	}
}

func (s *Service) IsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetEnabled switches notifications on or off and returns the resulting state.
// Enabling schedules the daily reminder and sends the active snapshot, if any.
func (s *Service) SetEnabled(ctx context.Context, enabled bool) (bool, error) {
	if !enabled {
		s.mu.Lock()
		s.enabled = false
		s.removeDailyLocked()
		s.mu.Unlock()
		s.logger.Info("notifications disabled")
		return false, nil
	}

	s.mu.Lock()
	s.enabled = true
	s.mu.Unlock()
	if err := s.ScheduleDaily(s.cfg.DailyHour, s.cfg.DailyMinute); err != nil {
		s.mu.Lock()
		s.enabled = false
		s.mu.Unlock()
		return false, err
	}
	s.logger.Info("notifications enabled",
		zap.Int("daily_hour", s.cfg.DailyHour),
		zap.Int("daily_minute", s.cfg.DailyMinute),
	)

	if snapshot, ok := s.current(); ok {
		if err := s.SendSnapshotNotification(ctx, snapshot); err != nil {
			return true, err
		}
	}
	return true, nil
}

// SendSnapshotNotification sends the update message. It is a no-op while disabled.
func (s *Service) SendSnapshotNotification(ctx context.Context, snapshot models.WeatherSnapshot) error {
	if !s.IsEnabled() {
		return nil
	}
	return s.send(ctx, SnapshotNotification(snapshot), KindSnapshot)
}

// ScheduleDaily replaces the daily reminder job.
func (s *Service) ScheduleDaily(hour, minute int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("%w: %02d:%02d", ErrInvalidSchedule, hour, minute)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeDailyLocked()
	job, err := s.scheduler.Every(1).Day().At(fmt.Sprintf("%02d:%02d", hour, minute)).Do(s.sendDaily)
	if err != nil {
		return fmt.Errorf("schedule daily reminder: %w", err)
	}
	s.daily = job
	return nil
}

// OnSnapshot is the store subscription. It records the snapshot and, when
// configured to, notifies about it.
func (s *Service) OnSnapshot(snapshot models.WeatherSnapshot) {
	s.mu.Lock()
	s.latest = &snapshot
	notify := s.enabled && s.cfg.NotifyOnUpdate
	s.mu.Unlock()
	if !notify {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := s.SendSnapshotNotification(ctx, snapshot); err != nil {
		s.logger.Warn("snapshot notification failed", zap.Error(err))
	}
}

// Start runs the scheduler. The daily job is registered first when notifications
// start out enabled.
func (s *Service) Start() error {
	s.mu.Lock()
	needsJob := s.enabled && s.daily == nil
	s.mu.Unlock()
	if needsJob {
		if err := s.ScheduleDaily(s.cfg.DailyHour, s.cfg.DailyMinute); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.scheduler.StartAsync()
		s.started = true
	}
	return nil
}

// Stop halts the scheduler and waits for a running job. The job may take s.mu,
// so the scheduler is stopped without holding it.
func (s *Service) Stop() {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if started {
		s.scheduler.Stop()
	}
}

func (s *Service) current() (models.WeatherSnapshot, bool) {
	if s.source != nil {
		if snapshot, ok := s.source.Active(); ok {
			return snapshot, true
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest != nil {
		return *s.latest, true
	}
	return models.WeatherSnapshot{}, false
}

func (s *Service) sendDaily() {
	if !s.IsEnabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := s.send(ctx, DailyReminder(), KindDaily); err != nil {
		s.logger.Warn("daily reminder failed", zap.Error(err))
	}
}

func (s *Service) send(ctx context.Context, n Notification, kind string) error {
	if err := s.sender.Send(ctx, n); err != nil {
		return fmt.Errorf("send %s notification: %w", kind, err)
	}
	observability.NotificationsSentTotal.WithLabelValues(kind).Inc()
	return nil
}

func (s *Service) removeDailyLocked() {
	if s.daily != nil {
		s.scheduler.RemoveByReference(s.daily)
		s.daily = nil
	}
}
