package models

import (
	"time"

	"github.com/google/uuid"
)

const DefaultCalorieTarget = 1500

type UserProfile struct {
	Name                 string   `json:"name"`
	IsOnboardingComplete bool     `json:"isOnboardingComplete"`
	Age                  int      `json:"age,omitempty"`
	Gender               string   `json:"gender,omitempty"`
	Height               float64  `json:"height,omitempty"`        // cm
	CurrentWeight        float64  `json:"currentWeight,omitempty"` // kg
	TargetWeight         float64  `json:"targetWeight,omitempty"`  // kg
	ActivityLevel        string   `json:"activityLevel,omitempty"`
	WakeTime             string   `json:"wakeTime,omitempty"`
	BreakfastTime        string   `json:"breakfastTime,omitempty"`
	LunchTime            string   `json:"lunchTime,omitempty"`
	SnackTime            string   `json:"snackTime,omitempty"`
	DinnerTime           string   `json:"dinnerTime,omitempty"`
	SleepTime            string   `json:"sleepTime,omitempty"`
	WaterGoal            string   `json:"waterGoal,omitempty"`
	DietaryPreference    string   `json:"dietaryPreference,omitempty"`
	Allergies            []string `json:"allergies,omitempty"`
	MedicalConditions    []string `json:"medicalConditions,omitempty"`
	OtherHealthIssues    string   `json:"otherHealthIssues,omitempty"`
	DailyCalorieTarget   int      `json:"dailyCalorieTarget"`
}

func DefaultProfile() UserProfile {
	return UserProfile{DailyCalorieTarget: DefaultCalorieTarget}
}

// RoutineTime returns the configured HH:MM for a routine category, or "".
func (p UserProfile) RoutineTime(c Category) string {
	switch c {
	case CategoryWake:
		return p.WakeTime
	case CategoryBreakfast:
		return p.BreakfastTime
	case CategoryLunch:
		return p.LunchTime
	case CategorySnack:
		return p.SnackTime
	case CategoryDinner:
		return p.DinnerTime
	case CategorySleep:
		return p.SleepTime
	}
	return ""
}

type MealLog struct {
	ID          string `json:"id"`
	Time        string `json:"time"`
	Description string `json:"description"`
	Calories    int    `json:"calories"`
}

type DailyStats struct {
	Date                  string     `json:"date"`
	CaloriesConsumed      int        `json:"caloriesConsumed"`
	WaterIntake           int        `json:"waterIntake"`
	LastWaterTime         *time.Time `json:"lastWaterTime,omitempty"`
	LastWaterReminderTime *time.Time `json:"lastWaterReminderTime,omitempty"`
	Meals                 []MealLog  `json:"meals"`
	RemindersSent         Reminders  `json:"remindersSent"`
}

// NewDailyStats returns a zeroed aggregate for date with every reminder pending.
func NewDailyStats(date string) DailyStats {
	return DailyStats{
		Date:  date,
		Meals: []MealLog{},
	}
}

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Image     string    `json:"image,omitempty"` // data URI
	Timestamp time.Time `json:"timestamp"`
}

func NewMessage(role Role, text, image string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Image:     image,
		Timestamp: at,
	}
}

type PushSubscription struct {
	ID       int    `json:"id"`
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

type PasscodeRequest struct {
	Passcode string `json:"passcode"`
	Remember bool   `json:"remember,omitempty"`
}

type AuthResponse struct {
	Token string `json:"token"`
}

type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

type SendMessageResponse struct {
	Message      Message  `json:"message"`
	QuickReplies []string `json:"quickReplies"`
}

type StateResponse struct {
	Profile      UserProfile `json:"profile"`
	Stats        DailyStats  `json:"stats"`
	QuickReplies []string    `json:"quickReplies"`
	Pending      bool        `json:"pending"`
}

// cloneStrings keeps reducers from sharing backing arrays with callers.
func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Clone returns a deep copy safe to hand out of the state container.
func (p UserProfile) Clone() UserProfile {
	p.Allergies = cloneStrings(p.Allergies)
	p.MedicalConditions = cloneStrings(p.MedicalConditions)
	return p
}

func (s DailyStats) Clone() DailyStats {
	meals := make([]MealLog, len(s.Meals))
	copy(meals, s.Meals)
	s.Meals = meals
	if s.LastWaterTime != nil {
		t := *s.LastWaterTime
		s.LastWaterTime = &t
	}
	if s.LastWaterReminderTime != nil {
		t := *s.LastWaterReminderTime
		s.LastWaterReminderTime = &t
	}
	return s
}
