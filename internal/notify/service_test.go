package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-companion/internal/models"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (f *fakeSender) Send(_ context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeSource struct {
	snapshot *models.WeatherSnapshot
}

func (f fakeSource) Active() (models.WeatherSnapshot, bool) {
	if f.snapshot == nil {
		return models.WeatherSnapshot{}, false
	}
	return *f.snapshot, true
}

func rainyLondon() models.WeatherSnapshot {
	return models.WeatherSnapshot{
		Coordinate: models.Coordinate{Latitude: 51.5074, Longitude: -0.1278},
		CityName:   "London",
		Current: models.CurrentConditions{
			TemperatureC:         12.6,
			ConditionMain:        "Rain",
			ConditionDescription: "light rain",
		},
	}
}

func defaultConfig() Config {
	return Config{DailyHour: 8, DailyMinute: 0}
}

func TestSnapshotNotification_Format(t *testing.T) {
	n := SnapshotNotification(rainyLondon())
	if n.Title != "🌧️ Weather Update" {
		t.Errorf("Title = %q", n.Title)
	}
	if n.Body != "London: 13°C, light rain" {
		t.Errorf("Body = %q", n.Body)
	}
	if n.ID == "" || n.Data["kind"] != KindSnapshot {
		t.Errorf("notification = %+v", n)
	}
	if SnapshotNotification(rainyLondon()).ID == n.ID {
		t.Error("notification IDs should be unique")
	}
}

func TestEmojiFor(t *testing.T) {
	tests := map[string]string{
		"Clear":        "☀️",
		"Clouds":       "☁️",
		"Rain":         "🌧️",
		"Drizzle":      "🌧️",
		"Thunderstorm": "⛈️",
		"Snow":         "❄️",
		"Mist":         "🌫️",
		"Fog":          "🌫️",
		"Tornado":      "☀️",
		"":             "☀️",
	}
	for in, want := range tests {
		if got := EmojiFor(in); got != want {
			t.Errorf("EmojiFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDailyReminder(t *testing.T) {
	n := DailyReminder()
	if n.Title != "🌤️ Good Morning!" || n.Body != "Check today's weather forecast" {
		t.Errorf("DailyReminder() = %+v", n)
	}
}

func TestService_DisabledSendsNothing(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(sender, fakeSource{}, defaultConfig(), nil)

	if svc.IsEnabled() {
		t.Fatal("IsEnabled() = true by default")
	}
	if err := svc.SendSnapshotNotification(context.Background(), rainyLondon()); err != nil {
		t.Errorf("SendSnapshotNotification() error = %v", err)
	}
	if sender.count() != 0 {
		t.Errorf("sent %d notifications while disabled", sender.count())
	}
}

func TestService_EnableSendsActiveSnapshotAndSchedules(t *testing.T) {
	sender := &fakeSender{}
	snap := rainyLondon()
	svc := NewService(sender, fakeSource{snapshot: &snap}, defaultConfig(), nil)

	enabled, err := svc.SetEnabled(context.Background(), true)
	if err != nil || !enabled {
		t.Fatalf("SetEnabled(true) = %v, %v", enabled, err)
	}
	if sender.count() != 1 || !strings.HasPrefix(sender.sent[0].Body, "London:") {
		t.Errorf("sent = %+v, want one London update", sender.sent)
	}
	if svc.scheduler.Len() != 1 {
		t.Errorf("scheduled jobs = %d, want 1", svc.scheduler.Len())
	}

	enabled, err = svc.SetEnabled(context.Background(), false)
	if err != nil || enabled {
		t.Fatalf("SetEnabled(false) = %v, %v", enabled, err)
	}
	if svc.scheduler.Len() != 0 {
		t.Errorf("scheduled jobs after disable = %d, want 0", svc.scheduler.Len())
	}
}

func TestService_EnableWithoutSnapshot(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(sender, fakeSource{}, defaultConfig(), nil)

	if _, err := svc.SetEnabled(context.Background(), true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}
	if sender.count() != 0 {
		t.Errorf("sent %d notifications with no active snapshot", sender.count())
	}
}

func TestService_EnableReportsSendFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("platform unavailable")}
	snap := rainyLondon()
	svc := NewService(sender, fakeSource{snapshot: &snap}, defaultConfig(), nil)

	enabled, err := svc.SetEnabled(context.Background(), true)
	if !enabled {
		t.Error("SetEnabled(true) should stay enabled when only the send fails")
	}
	if err == nil {
		t.Error("SetEnabled(true) error = nil, want send failure")
	}
}

func TestService_ScheduleDaily(t *testing.T) {
	svc := NewService(&fakeSender{}, fakeSource{}, defaultConfig(), nil)

	for _, tc := range []struct{ hour, minute int }{{-1, 0}, {24, 0}, {8, 60}, {8, -5}} {
		if err := svc.ScheduleDaily(tc.hour, tc.minute); !errors.Is(err, ErrInvalidSchedule) {
			t.Errorf("ScheduleDaily(%d, %d) error = %v, want ErrInvalidSchedule", tc.hour, tc.minute, err)
		}
	}
	if err := svc.ScheduleDaily(7, 30); err != nil {
		t.Fatalf("ScheduleDaily(7, 30) error = %v", err)
	}
	if err := svc.ScheduleDaily(9, 15); err != nil {
		t.Fatalf("ScheduleDaily(9, 15) error = %v", err)
	}
	if svc.scheduler.Len() != 1 {
		t.Errorf("scheduled jobs = %d, want the second call to replace the first", svc.scheduler.Len())
	}
}

func TestService_OnSnapshot(t *testing.T) {
	tests := []struct {
		name           string
		enabled        bool
		notifyOnUpdate bool
		wantSent       int
	}{
		{"disabled", false, true, 0},
		{"enabled, record only", true, false, 0},
		{"enabled, notify on update", true, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			cfg := defaultConfig()
			cfg.Enabled = tt.enabled
			cfg.NotifyOnUpdate = tt.notifyOnUpdate
			svc := NewService(sender, nil, cfg, nil)

			svc.OnSnapshot(rainyLondon())
			if sender.count() != tt.wantSent {
				t.Errorf("sent = %d, want %d", sender.count(), tt.wantSent)
			}
		})
	}
}

func TestService_EnableUsesRecordedSnapshot(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(sender, nil, defaultConfig(), nil)

	svc.OnSnapshot(rainyLondon())
	if sender.count() != 0 {
		t.Fatal("OnSnapshot sent while disabled")
	}
	if _, err := svc.SetEnabled(context.Background(), true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}
	if sender.count() != 1 {
		t.Errorf("sent = %d, want the recorded snapshot", sender.count())
	}
}

func TestService_StartSchedulesWhenEnabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Enabled = true
	svc := NewService(&fakeSender{}, nil, cfg, nil)
	if err := svc.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer svc.Stop()
	if svc.scheduler.Len() != 1 {
		t.Errorf("scheduled jobs = %d, want 1", svc.scheduler.Len())
	}
	svc.Stop()
	svc.Stop()
}

func TestService_StopWhileDailyJobRuns(t *testing.T) {
	for i := 0; i < 5; i++ {
		cfg := defaultConfig()
		cfg.Enabled = true
		sender := &fakeSender{}
		svc := NewService(sender, nil, cfg, nil)
		if err := svc.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		// The job blocks on s.mu until Stop is already waiting.
		svc.mu.Lock()
		stopped := make(chan struct{})
		go func() {
			svc.Stop()
			close(stopped)
		}()
		svc.scheduler.RunAll()
		time.Sleep(5 * time.Millisecond)
		svc.mu.Unlock()

		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			t.Fatalf("iteration %d: Stop() did not return while the daily job was running", i)
		}
	}
}

func TestService_SendDailyWhileDisabled(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(sender, nil, defaultConfig(), nil)
	svc.sendDaily()
	if sender.count() != 0 {
		t.Error("daily reminder sent while disabled")
	}

	svc.mu.Lock()
	svc.enabled = true
	svc.mu.Unlock()
	svc.sendDaily()
	if sender.count() != 1 || sender.sent[0].Data["kind"] != KindDaily {
		t.Errorf("sent = %+v, want one daily reminder", sender.sent)
	}
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sender := NewLogSender(zap.New(core))

	n := SnapshotNotification(rainyLondon())
	if err := sender.Send(context.Background(), n); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	entries := logs.FilterMessage("notification").All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["notification_id"] != n.ID || fields["body"] != n.Body {
		t.Errorf("fields = %v", fields)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sender.Send(ctx, n); !errors.Is(err, context.Canceled) {
		t.Errorf("Send(cancelled) error = %v", err)
	}
}
