package models

import (
	"encoding/json"
)

// Category identifies a reminder kind.
type Category string

const (
	CategoryWake      Category = "wake"
	CategoryBreakfast Category = "breakfast"
	CategoryLunch     Category = "lunch"
	CategorySnack     Category = "snack"
	CategoryDinner    Category = "dinner"
	CategorySleep     Category = "sleep"
	CategoryHydration Category = "hydration"
)

// RoutineCategories lists the once-per-day categories in firing priority.
var RoutineCategories = []Category{
	CategoryWake,
	CategoryBreakfast,
	CategoryLunch,
	CategorySnack,
	CategoryDinner,
	CategorySleep,
}

func routineIndex(c Category) int {
	for i, rc := range RoutineCategories {
		if rc == c {
			return i
		}
	}
	return -1
}

type ReminderStatus uint8

const (
	ReminderPending ReminderStatus = iota
	ReminderSent
)

func (s ReminderStatus) String() string {
	if s == ReminderSent {
		return "sent"
	}
	return "pending"
}

// Reminders holds one status per routine category. The zero value is all
// pending, and the only transition exposed is Pending -> Sent; a new day
// starts from a fresh value.
type Reminders struct {
	status [6]ReminderStatus
}

func (r Reminders) Status(c Category) ReminderStatus {
	i := routineIndex(c)
	if i < 0 {
		return ReminderPending
	}
	return r.status[i]
}

func (r Reminders) Sent(c Category) bool {
	return r.Status(c) == ReminderSent
}

// MarkSent returns a copy of r with c marked sent. Hydration and unknown
// categories have no flag and leave r unchanged.
func (r Reminders) MarkSent(c Category) Reminders {
	if i := routineIndex(c); i >= 0 {
		r.status[i] = ReminderSent
	}
	return r
}

// MarshalJSON keeps the persisted {"wake":false,...} layout.
func (r Reminders) MarshalJSON() ([]byte, error) {
	out := make(map[string]bool, len(RoutineCategories))
	for i, c := range RoutineCategories {
		out[string(c)] = r.status[i] == ReminderSent
	}
	return json.Marshal(out)
}

func (r *Reminders) UnmarshalJSON(data []byte) error {
	var in map[string]bool
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Reminders{}
	for i, c := range RoutineCategories {
		if in[string(c)] {
			r.status[i] = ReminderSent
		}
	}
	return nil
}
