// Package reminder decides which proactive nudge, if any, is due and
// delivers it into the transcript and to the user's devices.
package reminder

import (
	"math"
	"time"

	"dietcoach/internal/clock"
	"dietcoach/internal/models"
)

type Settings struct {
	Window            time.Duration // how long after the scheduled minute a routine reminder may still fire
	HydrationGap      time.Duration // minimum time since the last logged water
	HydrationCooldown time.Duration // minimum time since the last hydration reminder
	AwakeOnly         bool          // suppress hydration outside wake..sleep
	NotifyTimeout     time.Duration // upper bound on one out-of-app delivery
}

func DefaultSettings() Settings {
	return Settings{
		Window:            15 * time.Minute,
		HydrationGap:      90 * time.Minute,
		HydrationCooldown: 60 * time.Minute,
		NotifyTimeout:     10 * time.Second,
	}
}

type Reminder struct {
	Category     models.Category
	Text         string
	QuickReplies []string
}

var (
	mealReplies  = []string{"Yes", "Not yet"}
	snackReplies = []string{"Yes, I ate", "Not yet"}
)

var texts = map[models.Category]string{
	models.CategoryWake:      "Good morning ☀️ — new day, new consistency. Have a glass of water.",
	models.CategoryBreakfast: "Hey, it’s breakfast time. Have you eaten?",
	models.CategoryLunch:     "Hey, it’s lunchtime. Have you had your lunch?",
	models.CategorySnack:     "It's your snack window. Choose something light and healthy.",
	models.CategoryDinner:    "Hey, it’s dinner time. Have you had your dinner?",
	models.CategorySleep:     "Day complete 🌙 Good night. Tomorrow we continue strong.",
	models.CategoryHydration: "Hydration check 💧 — sip some water?",
}

func repliesFor(c models.Category) []string {
	switch c {
	case models.CategoryBreakfast, models.CategoryLunch, models.CategoryDinner, models.CategoryHydration:
		return append([]string(nil), mealReplies...)
	case models.CategorySnack:
		return append([]string(nil), snackReplies...)
	}
	return nil
}

func newReminder(c models.Category) *Reminder {
	return &Reminder{Category: c, Text: texts[c], QuickReplies: repliesFor(c)}
}

// Evaluate returns the highest-priority reminder due at now, or nil. It is
// pure: marking the reminder sent is the caller's job.
func Evaluate(now time.Time, p models.UserProfile, s models.DailyStats, cfg Settings) *Reminder {
	if !p.IsOnboardingComplete {
		return nil
	}

	current := clock.MinuteOfDay(now)
	window := int(cfg.Window / time.Minute)

	for _, c := range models.RoutineCategories {
		if s.RemindersSent.Sent(c) {
			continue
		}
		scheduled, ok := clock.ParseHHMM(p.RoutineTime(c))
		if !ok {
			continue
		}
		// same-day comparison only; a window never wraps past midnight
		if diff := current - scheduled; diff >= 0 && diff <= window {
			return newReminder(c)
		}
	}

	if cfg.AwakeOnly && !awake(current, p) {
		return nil
	}
	if since(now, s.LastWaterTime) >= cfg.HydrationGap && since(now, s.LastWaterReminderTime) >= cfg.HydrationCooldown {
		return newReminder(models.CategoryHydration)
	}
	return nil
}

// since treats a missing timestamp as infinitely long ago.
func since(now time.Time, t *time.Time) time.Duration {
	if t == nil {
		return time.Duration(math.MaxInt64)
	}
	return now.Sub(*t)
}

// awake reports whether current lies within wake..sleep, handling a sleep
// time past midnight. Unparseable times never suppress.
func awake(current int, p models.UserProfile) bool {
	wake, ok1 := clock.ParseHHMM(p.WakeTime)
	sleep, ok2 := clock.ParseHHMM(p.SleepTime)
	if !ok1 || !ok2 {
		return true
	}
	if wake <= sleep {
		return current >= wake && current <= sleep
	}
	return current >= wake || current <= sleep
}
