// Package state owns the coach's mutable data: the profile, today's stats,
// the transcript and the transient UI flags. All changes are events applied
// by pure reducers through a Container.
package state

import (
	"dietcoach/internal/models"
)

type State struct {
	Profile      models.UserProfile
	Stats        models.DailyStats
	Messages     []models.Message
	QuickReplies []string
	Pending      bool
}

// Default is the state of a fresh install on date.
func Default(date string) State {
	return State{
		Profile:  models.DefaultProfile(),
		Stats:    models.NewDailyStats(date),
		Messages: []models.Message{},
	}
}

// Apply folds events into s and returns the result. s is not modified.
func Apply(s State, events ...Event) State {
	for _, e := range events {
		if e == nil {
			continue
		}
		s = e.apply(s)
	}
	return s
}

// Rollover returns stats unchanged when it already belongs to today, and a
// fresh all-pending aggregate otherwise.
func Rollover(stats models.DailyStats, today string) models.DailyStats {
	if stats.Date == today {
		return stats
	}
	return models.NewDailyStats(today)
}

// Window returns a copy of the last n messages.
func (s State) Window(n int) []models.Message {
	msgs := s.Messages
	if n >= 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (s State) Clone() State {
	s.Profile = s.Profile.Clone()
	s.Stats = s.Stats.Clone()
	msgs := make([]models.Message, len(s.Messages))
	copy(msgs, s.Messages)
	s.Messages = msgs
	s.QuickReplies = cloneStrings(s.QuickReplies)
	return s
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
