package coach

import (
	"context"
	"fmt"
	"math"
	"strings"

	"dietcoach/internal/clock"
	"dietcoach/internal/logger"
	"dietcoach/internal/models"
	"dietcoach/internal/state"
)

const minCalorieTarget = 1200

var activityMultipliers = map[string]float64{
	"Very low": 1.2,
	"Low":      1.375,
	"Moderate": 1.55,
	"High":     1.725,
}

const defaultActivityMultiplier = 1.375

// CompleteOnboarding validates p, derives the daily calorie target, stores
// the profile and restarts the transcript with the setup greeting.
func (c *Coach) CompleteOnboarding(ctx context.Context, p models.UserProfile) (models.UserProfile, error) {
	if err := ValidateProfile(p); err != nil {
		return models.UserProfile{}, err
	}

	p = p.Clone()
	p.DailyCalorieTarget = CalorieTarget(p)
	p.IsOnboardingComplete = true

	greeting := models.NewMessage(models.RoleModel, setupGreeting(p), "", c.clock.Now())
	st := c.state.Dispatch(ctx, state.OnboardingCompleted{Profile: p, Greeting: greeting})

	logger.Info("onboarding complete", "target", p.DailyCalorieTarget)
	return st.Profile, nil
}

// ValidateProfile checks the fields onboarding requires.
func ValidateProfile(p models.UserProfile) error {
	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if p.Age <= 0 {
		missing = append(missing, "age")
	}
	if strings.TrimSpace(p.Gender) == "" {
		missing = append(missing, "gender")
	}
	if p.Height <= 0 {
		missing = append(missing, "height")
	}
	if p.CurrentWeight <= 0 {
		missing = append(missing, "currentWeight")
	}
	if p.TargetWeight <= 0 {
		missing = append(missing, "targetWeight")
	}
	if strings.TrimSpace(p.ActivityLevel) == "" {
		missing = append(missing, "activityLevel")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidProfile, strings.Join(missing, ", "))
	}

	for _, cat := range models.RoutineCategories {
		v := p.RoutineTime(cat)
		if cat == models.CategorySnack && v == "" {
			continue
		}
		if _, ok := clock.ParseHHMM(v); !ok {
			return fmt.Errorf("%w: %s time %q is not HH:MM", ErrInvalidProfile, cat, v)
		}
	}

	if strings.TrimSpace(p.WaterGoal) == "" {
		return fmt.Errorf("%w: missing waterGoal", ErrInvalidProfile)
	}
	if len(p.MedicalConditions) == 0 {
		return fmt.Errorf("%w: select at least one medical condition (or None)", ErrInvalidProfile)
	}
	for _, m := range p.MedicalConditions {
		if m == "Other" && strings.TrimSpace(p.OtherHealthIssues) == "" {
			return fmt.Errorf("%w: describe the other health issues", ErrInvalidProfile)
		}
	}
	if strings.TrimSpace(p.DietaryPreference) == "" {
		return fmt.Errorf("%w: missing dietaryPreference", ErrInvalidProfile)
	}
	return nil
}

// CalorieTarget applies Mifflin-St Jeor, the activity multiplier and a
// deficit or surplus toward the target weight.
func CalorieTarget(p models.UserProfile) int {
	bmr := 1500.0
	if p.CurrentWeight > 0 && p.Height > 0 && p.Age > 0 {
		s := 5.0
		if strings.EqualFold(p.Gender, "female") {
			s = -161
		}
		bmr = 10*p.CurrentWeight + 6.25*p.Height - 5*float64(p.Age) + s
	}

	mult, ok := activityMultipliers[p.ActivityLevel]
	if !ok {
		mult = defaultActivityMultiplier
	}
	tdee := bmr * mult

	target := int(math.Round(tdee))
	if p.TargetWeight > 0 && p.CurrentWeight > 0 {
		switch {
		case p.TargetWeight < p.CurrentWeight:
			target = max(minCalorieTarget, int(math.Round(tdee-400)))
		case p.TargetWeight > p.CurrentWeight:
			target = int(math.Round(tdee + 250))
		}
	}
	if target <= 0 {
		target = models.DefaultCalorieTarget
	}
	return target
}

func setupGreeting(p models.UserProfile) string {
	return fmt.Sprintf("Setup complete ✅\n\nI have configured your reminders based on your routine.\n"+
		"• **Calorie Target:** %d kcal\n• **Water Goal:** %s\n\n"+
		"I will remind you when it's time for meals and water. You can also send me photos of your food anytime to log them.",
		p.DailyCalorieTarget, p.WaterGoal)
}
