package llm

import (
	"fmt"
	"strings"
	"time"

	"dietcoach/internal/models"
)

const persona = `You are a personal diet coach chatting with one user in a messaging app.

Goal: help the user eat well, reach a healthy weight safely and build habits that last.
Be warm but a little strict, never judgmental and never body-shaming. Keep replies short,
friendly and practical, with everyday home-cooked food suggestions that respect the user's
dietary preference, allergies and medical conditions. Encourage water through the day.

When the user sends a photo or describes food, estimate the calories briefly and give one
small improvement tip.

HIDDEN TAGS
The app reads these tags from the END of your reply and hides them from the user.
Use only when relevant, at most once each:
- [[ADD: 350]]            calories you estimated for a meal the user just ate
- [[TARGET: 1500]]        a new daily calorie target you calculated
- [[WATER: 250]]          millilitres of water the user says they drank
- [[BUTTONS: Yes, No]]    short reply options to show as buttons
- [[GENERATE_IMAGE: ...]] a short description of a dish picture to show with a recipe
`

// contextBlock summarises the day so far for the system prompt.
func contextBlock(now time.Time, p models.UserProfile, s models.DailyStats) string {
	var b strings.Builder
	b.WriteString("\n[CURRENT CONTEXT]\n")
	fmt.Fprintf(&b, "Name: %s\n", orNotSet(p.Name))
	fmt.Fprintf(&b, "Date: %s\n", s.Date)
	fmt.Fprintf(&b, "Current Time: %s\n", now.Format("Mon Jan 2 2006 15:04 MST"))
	fmt.Fprintf(&b, "Calories Consumed Today So Far: %d\n", s.CaloriesConsumed)
	fmt.Fprintf(&b, "Daily Target: %d\n", p.DailyCalorieTarget)
	if p.CurrentWeight > 0 {
		fmt.Fprintf(&b, "Current Weight: %g kg\n", p.CurrentWeight)
	} else {
		b.WriteString("Current Weight: Not set\n")
	}
	if p.TargetWeight > 0 {
		fmt.Fprintf(&b, "Target Weight: %g kg\n", p.TargetWeight)
	}
	fmt.Fprintf(&b, "Water Intake: %d ml (goal: %s)\n", s.WaterIntake, orNotSet(p.WaterGoal))
	fmt.Fprintf(&b, "Dietary Preference: %s\n", orNotSet(p.DietaryPreference))
	if len(p.Allergies) > 0 {
		fmt.Fprintf(&b, "Allergies: %s\n", strings.Join(p.Allergies, ", "))
	}
	if len(p.MedicalConditions) > 0 {
		fmt.Fprintf(&b, "Medical Conditions: %s\n", strings.Join(p.MedicalConditions, ", "))
	}
	if p.OtherHealthIssues != "" {
		fmt.Fprintf(&b, "Other Health Issues: %s\n", p.OtherHealthIssues)
	}

	meals := make([]string, 0, len(s.Meals))
	for _, m := range s.Meals {
		meals = append(meals, fmt.Sprintf("%s: %s (%dkcal)", m.Time, m.Description, m.Calories))
	}
	if len(meals) == 0 {
		b.WriteString("Meals Logged Today: None\n")
	} else {
		fmt.Fprintf(&b, "Meals Logged Today: %s\n", strings.Join(meals, "; "))
	}
	return b.String()
}

func orNotSet(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not set"
	}
	return s
}
