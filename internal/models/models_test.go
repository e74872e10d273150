package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestRemindersOnlyMoveForward(t *testing.T) {
	var r Reminders
	for _, c := range RoutineCategories {
		if r.Sent(c) {
			t.Fatalf("Expected %s pending in zero value", c)
		}
	}

	r2 := r.MarkSent(CategoryBreakfast)
	if r.Sent(CategoryBreakfast) {
		t.Fatal("MarkSent must not mutate the receiver")
	}
	if !r2.Sent(CategoryBreakfast) {
		t.Fatal("Expected breakfast sent")
	}
	if r2.MarkSent(CategoryBreakfast) != r2 {
		t.Fatal("Marking twice should be a no-op")
	}
	if r2.MarkSent(CategoryHydration) != r2 {
		t.Fatal("Hydration has no per-day flag")
	}
}

func TestRemindersJSONLayout(t *testing.T) {
	r := Reminders{}.MarkSent(CategoryWake).MarkSent(CategoryDinner)
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"wake":true`, `"dinner":true`, `"lunch":false`, `"snack":false`} {
		if !strings.Contains(s, want) {
			t.Fatalf("Expected %s in %s", want, s)
		}
	}

	var back Reminders
	if err := json.Unmarshal([]byte(`{"wake":true,"sleep":true,"unknown":true}`), &back); err != nil {
		t.Fatal(err)
	}
	if !back.Sent(CategoryWake) || !back.Sent(CategorySleep) || back.Sent(CategoryLunch) {
		t.Fatalf("Unexpected decoded reminders: %+v", back)
	}
}

func TestDailyStatsTolerantDecode(t *testing.T) {
	// older blobs had no water fields and no reminder record
	var s DailyStats
	if err := json.Unmarshal([]byte(`{"date":"2024-01-01","caloriesConsumed":300,"meals":[{"id":"a","time":"08:00","description":"poha","calories":300}]}`), &s); err != nil {
		t.Fatal(err)
	}
	if s.CaloriesConsumed != 300 || len(s.Meals) != 1 || s.WaterIntake != 0 {
		t.Fatalf("Unexpected stats: %+v", s)
	}
	if s.LastWaterTime != nil || s.RemindersSent.Sent(CategoryWake) {
		t.Fatal("Expected absent timestamps and pending reminders")
	}
}

func TestMessageTimestampRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	m := NewMessage(RoleUser, "hi", "", at)
	if m.ID == "" {
		t.Fatal("Expected generated ID")
	}
	data, _ := json.Marshal(m)
	if !strings.Contains(string(data), `"timestamp":"2024-03-05T09:30:00Z"`) {
		t.Fatalf("Expected ISO timestamp, got %s", data)
	}
	var back Message
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Timestamp.Equal(at) {
		t.Fatalf("Expected %v, got %v", at, back.Timestamp)
	}
}

func TestStatsCloneIsDeep(t *testing.T) {
	now := time.Now()
	s := NewDailyStats("2024-01-01")
	s.Meals = append(s.Meals, MealLog{ID: "1", Calories: 100})
	s.LastWaterTime = &now

	c := s.Clone()
	c.Meals[0].Calories = 999
	*c.LastWaterTime = now.Add(time.Hour)

	if s.Meals[0].Calories != 100 {
		t.Fatal("Clone shares meal slice")
	}
	if !s.LastWaterTime.Equal(now) {
		t.Fatal("Clone shares water timestamp")
	}
}
