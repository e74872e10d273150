package state

import (
	"time"

	"dietcoach/internal/models"
)

type blobSet uint8

const (
	blobProfile blobSet = 1 << iota
	blobStats
	blobMessages
)

// Event is a single state change. The set is closed: only the types in this
// file implement it.
type Event interface {
	apply(State) State
	touches() blobSet
}

// ReminderSent marks a routine category sent, or stamps the hydration
// reminder time.
type ReminderSent struct {
	Category models.Category
	At       time.Time
}

func (e ReminderSent) apply(s State) State {
	if e.Category == models.CategoryHydration {
		at := e.At
		s.Stats.LastWaterReminderTime = &at
		return s
	}
	s.Stats.RemindersSent = s.Stats.RemindersSent.MarkSent(e.Category)
	return s
}

func (ReminderSent) touches() blobSet { return blobStats }

// TargetSet replaces the daily calorie target. Non-positive values are ignored.
type TargetSet struct {
	Kcal int
}

func (e TargetSet) apply(s State) State {
	if e.Kcal > 0 {
		s.Profile.DailyCalorieTarget = e.Kcal
	}
	return s
}

func (TargetSet) touches() blobSet { return blobProfile }

// MealLogged appends a meal and adds its calories to the day's counter.
type MealLogged struct {
	Meal models.MealLog
}

func (e MealLogged) apply(s State) State {
	if e.Meal.Calories < 0 {
		return s
	}
	s.Stats.CaloriesConsumed += e.Meal.Calories
	s.Stats.Meals = append(s.Stats.Meals[:len(s.Stats.Meals):len(s.Stats.Meals)], e.Meal)
	return s
}

func (MealLogged) touches() blobSet { return blobStats }

type WaterAdded struct {
	ML int
	At time.Time
}

func (e WaterAdded) apply(s State) State {
	if e.ML <= 0 {
		return s
	}
	at := e.At
	s.Stats.WaterIntake += e.ML
	s.Stats.LastWaterTime = &at
	return s
}

func (WaterAdded) touches() blobSet { return blobStats }

type MessageAppended struct {
	Message models.Message
}

func (e MessageAppended) apply(s State) State {
	s.Messages = append(s.Messages[:len(s.Messages):len(s.Messages)], e.Message)
	return s
}

func (MessageAppended) touches() blobSet { return blobMessages }

// QuickRepliesSet replaces the offered reply buttons; nil clears them.
type QuickRepliesSet struct {
	Options []string
}

func (e QuickRepliesSet) apply(s State) State {
	s.QuickReplies = cloneStrings(e.Options)
	return s
}

func (QuickRepliesSet) touches() blobSet { return 0 }

type PendingSet struct {
	Pending bool
}

func (e PendingSet) apply(s State) State {
	s.Pending = e.Pending
	return s
}

func (PendingSet) touches() blobSet { return 0 }

// OnboardingCompleted stores the finished profile and restarts the
// transcript with Greeting.
type OnboardingCompleted struct {
	Profile  models.UserProfile
	Greeting models.Message
}

func (e OnboardingCompleted) apply(s State) State {
	p := e.Profile.Clone()
	p.IsOnboardingComplete = true
	if p.DailyCalorieTarget <= 0 {
		p.DailyCalorieTarget = models.DefaultCalorieTarget
	}
	s.Profile = p
	s.Messages = []models.Message{e.Greeting}
	s.QuickReplies = nil
	return s
}

func (OnboardingCompleted) touches() blobSet { return blobProfile | blobMessages }
