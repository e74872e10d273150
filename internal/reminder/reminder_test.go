package reminder_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dietcoach/internal/clock"
	"dietcoach/internal/models"
	"dietcoach/internal/reminder"
	"dietcoach/internal/state"
)

func at(date, hhmm string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+hhmm, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func onboarded() models.UserProfile {
	p := models.DefaultProfile()
	p.Name = "Asha"
	p.IsOnboardingComplete = true
	p.WakeTime = "07:00"
	p.BreakfastTime = "08:00"
	p.LunchTime = "13:00"
	p.DinnerTime = "20:00"
	p.SleepTime = "22:30"
	return p
}

// statsWithRecentWater keeps hydration quiet so routine behaviour is visible.
func statsWithRecentWater(date string, now time.Time) models.DailyStats {
	s := models.NewDailyStats(date)
	w := now.Add(-10 * time.Minute)
	s.LastWaterTime = &w
	return s
}

func TestEvaluateInertBeforeOnboarding(t *testing.T) {
	p := onboarded()
	p.IsOnboardingComplete = false
	now := at("2024-01-01", "08:05")
	if r := reminder.Evaluate(now, p, models.NewDailyStats("2024-01-01"), reminder.DefaultSettings()); r != nil {
		t.Fatalf("Expected nothing before onboarding, got %+v", r)
	}
}

func TestEvaluateRoutineWindow(t *testing.T) {
	tests := []struct {
		name  string
		clock string
		want  models.Category
	}{
		{"before window", "07:59", ""},
		{"at scheduled minute", "08:00", models.CategoryBreakfast},
		{"inside window", "08:07", models.CategoryBreakfast},
		{"window edge", "08:15", models.CategoryBreakfast},
		{"past window", "08:16", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := at("2024-01-01", tt.clock)
			s := statsWithRecentWater("2024-01-01", now)
			s.RemindersSent = s.RemindersSent.MarkSent(models.CategoryWake)
			r := reminder.Evaluate(now, onboarded(), s, reminder.DefaultSettings())
			if tt.want == "" {
				if r != nil {
					t.Fatalf("Expected no reminder, got %s", r.Category)
				}
				return
			}
			if r == nil || r.Category != tt.want {
				t.Fatalf("Expected %s, got %+v", tt.want, r)
			}
		})
	}
}

func TestEvaluateReplies(t *testing.T) {
	p := onboarded()
	p.SnackTime = "16:30"

	tests := []struct {
		clock   string
		cat     models.Category
		text    string
		replies []string
	}{
		{"07:00", models.CategoryWake, "Good morning ☀️ — new day, new consistency. Have a glass of water.", nil},
		{"08:00", models.CategoryBreakfast, "Hey, it’s breakfast time. Have you eaten?", []string{"Yes", "Not yet"}},
		{"13:10", models.CategoryLunch, "Hey, it’s lunchtime. Have you had your lunch?", []string{"Yes", "Not yet"}},
		{"16:45", models.CategorySnack, "It's your snack window. Choose something light and healthy.", []string{"Yes, I ate", "Not yet"}},
		{"20:01", models.CategoryDinner, "Hey, it’s dinner time. Have you had your dinner?", []string{"Yes", "Not yet"}},
		{"22:30", models.CategorySleep, "Day complete 🌙 Good night. Tomorrow we continue strong.", nil},
	}
	for _, tt := range tests {
		now := at("2024-01-01", tt.clock)
		r := reminder.Evaluate(now, p, statsWithRecentWater("2024-01-01", now), reminder.DefaultSettings())
		if r == nil || r.Category != tt.cat {
			t.Fatalf("%s: expected %s, got %+v", tt.clock, tt.cat, r)
		}
		if r.Text != tt.text {
			t.Errorf("%s: unexpected text %q", tt.clock, r.Text)
		}
		if len(r.QuickReplies) != len(tt.replies) {
			t.Fatalf("%s: expected replies %v, got %v", tt.clock, tt.replies, r.QuickReplies)
		}
		for i := range tt.replies {
			if r.QuickReplies[i] != tt.replies[i] {
				t.Errorf("%s: expected replies %v, got %v", tt.clock, tt.replies, r.QuickReplies)
			}
		}
	}
}

func TestEvaluatePriority(t *testing.T) {
	p := onboarded()
	p.WakeTime = "07:00"
	p.BreakfastTime = "07:05"
	now := at("2024-01-01", "07:10")
	s := models.NewDailyStats("2024-01-01")

	r := reminder.Evaluate(now, p, s, reminder.DefaultSettings())
	if r == nil || r.Category != models.CategoryWake {
		t.Fatalf("Expected wake first, got %+v", r)
	}

	s.RemindersSent = s.RemindersSent.MarkSent(models.CategoryWake)
	r = reminder.Evaluate(now, p, s, reminder.DefaultSettings())
	if r == nil || r.Category != models.CategoryBreakfast {
		t.Fatalf("Expected breakfast next, got %+v", r)
	}

	s.RemindersSent = s.RemindersSent.MarkSent(models.CategoryBreakfast)
	r = reminder.Evaluate(now, p, s, reminder.DefaultSettings())
	if r == nil || r.Category != models.CategoryHydration {
		t.Fatalf("Expected hydration last, got %+v", r)
	}
}

func TestEvaluateSkipsUnsetSnack(t *testing.T) {
	p := onboarded()
	p.SnackTime = ""
	now := at("2024-01-01", "00:05")
	s := statsWithRecentWater("2024-01-01", now)
	if r := reminder.Evaluate(now, p, s, reminder.DefaultSettings()); r != nil {
		t.Fatalf("Expected no reminder for unset snack, got %+v", r)
	}
}

func TestEvaluateDoesNotWrapMidnight(t *testing.T) {
	p := onboarded()
	p.SleepTime = "23:55"
	now := at("2024-01-02", "00:03")
	s := statsWithRecentWater("2024-01-02", now)
	if r := reminder.Evaluate(now, p, s, reminder.DefaultSettings()); r != nil {
		t.Fatalf("Expected no sleep reminder after midnight, got %+v", r)
	}
}

func TestEvaluateHydration(t *testing.T) {
	now := at("2024-01-01", "15:00")
	ago := func(m int) *time.Time {
		t := now.Add(-time.Duration(m) * time.Minute)
		return &t
	}

	tests := []struct {
		name     string
		water    *time.Time
		reminded *time.Time
		want     bool
	}{
		{"never drank, never reminded", nil, nil, true},
		{"recent intake", ago(80), nil, false},
		{"gap reached, never reminded", ago(90), nil, true},
		{"gap reached, reminded recently", ago(120), ago(30), false},
		{"gap reached, cooldown reached", ago(120), ago(60), true},
		{"never drank, reminded recently", nil, ago(59), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := models.NewDailyStats("2024-01-01")
			s.LastWaterTime = tt.water
			s.LastWaterReminderTime = tt.reminded
			r := reminder.Evaluate(now, onboarded(), s, reminder.DefaultSettings())
			got := r != nil && r.Category == models.CategoryHydration
			if got != tt.want {
				t.Fatalf("Expected hydration=%v, got %+v", tt.want, r)
			}
			if got && (len(r.QuickReplies) != 2 || r.Text != "Hydration check 💧 — sip some water?") {
				t.Fatalf("Unexpected hydration reminder %+v", r)
			}
		})
	}
}

func TestEvaluateAwakeOnly(t *testing.T) {
	cfg := reminder.DefaultSettings()
	cfg.AwakeOnly = true
	p := onboarded()

	night := at("2024-01-01", "23:30")
	if r := reminder.Evaluate(night, p, models.NewDailyStats("2024-01-01"), cfg); r != nil {
		t.Fatalf("Expected hydration suppressed at night, got %+v", r)
	}
	if r := reminder.Evaluate(night, p, models.NewDailyStats("2024-01-01"), reminder.DefaultSettings()); r == nil {
		t.Fatalf("Expected hydration without awake_only")
	}

	day := at("2024-01-01", "15:00")
	if r := reminder.Evaluate(day, p, models.NewDailyStats("2024-01-01"), cfg); r == nil || r.Category != models.CategoryHydration {
		t.Fatalf("Expected hydration during the day, got %+v", r)
	}

	p.WakeTime = "14:00"
	p.SleepTime = "02:00"
	lateShift := at("2024-01-01", "01:00")
	if r := reminder.Evaluate(lateShift, p, models.NewDailyStats("2024-01-01"), cfg); r == nil {
		t.Fatalf("Expected hydration for a sleep time past midnight")
	}
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, title+"|"+body)
	return n.err
}

func newEngine(t *testing.T, now time.Time, n reminder.Notifier) (*reminder.Engine, *state.Container, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(now)
	st := state.Default(clock.Today(clk))
	st.Profile = onboarded()
	c := state.New(clk, nil, st)
	c.Dispatch(context.Background(), state.WaterAdded{ML: 250, At: now.Add(-5 * time.Minute)})
	return reminder.NewEngine(c, clk, n, reminder.DefaultSettings()), c, clk
}

func TestEngineTickFiresOncePerDay(t *testing.T) {
	n := &recordingNotifier{}
	eng, c, clk := newEngine(t, at("2024-01-01", "13:05"), n)
	ctx := context.Background()

	r := eng.Tick(ctx)
	if r == nil || r.Category != models.CategoryLunch {
		t.Fatalf("Expected lunch, got %+v", r)
	}
	s := c.Snapshot(ctx)
	if !s.Stats.RemindersSent.Sent(models.CategoryLunch) {
		t.Fatalf("Expected lunch marked sent")
	}
	if len(s.Messages) != 1 || s.Messages[0].Role != models.RoleModel || s.Messages[0].Text != r.Text {
		t.Fatalf("Expected reminder appended to transcript, got %+v", s.Messages)
	}
	if len(s.QuickReplies) != 2 || s.QuickReplies[0] != "Yes" {
		t.Fatalf("Expected meal quick replies, got %v", s.QuickReplies)
	}
	if len(n.calls) != 1 || n.calls[0] != "Live Diet Coach|"+r.Text {
		t.Fatalf("Expected one notification, got %v", n.calls)
	}

	clk.Advance(30 * time.Second)
	if r := eng.Tick(ctx); r != nil {
		t.Fatalf("Expected no second lunch reminder, got %+v", r)
	}
	if got := len(c.Snapshot(ctx).Messages); got != 1 {
		t.Fatalf("Expected transcript unchanged, got %d messages", got)
	}

	clk.Set(at("2024-01-02", "13:05"))
	r = eng.Tick(ctx)
	if r == nil || r.Category != models.CategoryLunch {
		t.Fatalf("Expected lunch to fire again after rollover, got %+v", r)
	}
}

func TestEngineWakeKeepsExistingReplies(t *testing.T) {
	eng, c, _ := newEngine(t, at("2024-01-01", "07:01"), nil)
	ctx := context.Background()
	c.Dispatch(ctx, state.QuickRepliesSet{Options: []string{"Log water"}})

	r := eng.Tick(ctx)
	if r == nil || r.Category != models.CategoryWake {
		t.Fatalf("Expected wake, got %+v", r)
	}
	s := c.Snapshot(ctx)
	if len(s.QuickReplies) != 1 || s.QuickReplies[0] != "Log water" {
		t.Fatalf("Expected quick replies untouched, got %v", s.QuickReplies)
	}
}

func TestEngineNotifierFailureIsIgnored(t *testing.T) {
	n := &recordingNotifier{err: errors.New("push service down")}
	eng, c, _ := newEngine(t, at("2024-01-01", "20:00"), n)
	ctx := context.Background()

	if r := eng.Tick(ctx); r == nil || r.Category != models.CategoryDinner {
		t.Fatalf("Expected dinner, got %+v", r)
	}
	if !c.Snapshot(ctx).Stats.RemindersSent.Sent(models.CategoryDinner) {
		t.Fatalf("Expected dinner marked sent despite notify failure")
	}
}

func TestEngineHydrationStampsReminderTime(t *testing.T) {
	eng, c, clk := newEngine(t, at("2024-01-01", "15:00"), nil)
	ctx := context.Background()

	clk.Set(at("2024-01-01", "17:00"))
	r := eng.Tick(ctx)
	if r == nil || r.Category != models.CategoryHydration {
		t.Fatalf("Expected hydration, got %+v", r)
	}
	s := c.Snapshot(ctx)
	if s.Stats.LastWaterReminderTime == nil || !s.Stats.LastWaterReminderTime.Equal(clk.Now()) {
		t.Fatalf("Expected reminder time stamped, got %v", s.Stats.LastWaterReminderTime)
	}

	clk.Advance(30 * time.Minute)
	if r := eng.Tick(ctx); r != nil {
		t.Fatalf("Expected cooldown to hold, got %+v", r)
	}
	clk.Advance(30 * time.Minute)
	if r := eng.Tick(ctx); r == nil || r.Category != models.CategoryHydration {
		t.Fatalf("Expected hydration after cooldown, got %+v", r)
	}
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	n := &recordingNotifier{}
	eng, _, _ := newEngine(t, at("2024-01-01", "08:00"), n)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		eng.Run(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		n.mu.Lock()
		got := len(n.calls)
		n.mu.Unlock()
		if got > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Expected an immediate tick on start")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Run to return after cancel")
	}
}

type stalledNotifier struct{}

func (stalledNotifier) Notify(ctx context.Context, _, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestEngineTickDoesNotHangOnStalledNotifier(t *testing.T) {
	now := at("2024-01-01", "13:05")
	clk := clock.NewManual(now)
	st := state.Default(clock.Today(clk))
	st.Profile = onboarded()
	c := state.New(clk, nil, st)

	settings := reminder.DefaultSettings()
	settings.NotifyTimeout = 20 * time.Millisecond
	eng := reminder.NewEngine(c, clk, stalledNotifier{}, settings)

	done := make(chan *reminder.Reminder, 1)
	go func() { done <- eng.Tick(context.Background()) }()

	select {
	case r := <-done:
		if r == nil || r.Category != models.CategoryLunch {
			t.Fatalf("Expected lunch, got %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Tick to return once the notify timeout expired")
	}
	if !c.Snapshot(context.Background()).Stats.RemindersSent.Sent(models.CategoryLunch) {
		t.Fatal("Expected lunch marked sent")
	}
}
