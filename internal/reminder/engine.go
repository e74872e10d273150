package reminder

import (
	"context"
	"time"

	"dietcoach/internal/clock"
	"dietcoach/internal/logger"
	"dietcoach/internal/models"
	"dietcoach/internal/state"
)

const (
	NotificationTitle = "Live Diet Coach"

	defaultNotifyTimeout = 10 * time.Second
)

// Notifier delivers a reminder outside the app. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

type Engine struct {
	state    *state.Container
	clock    clock.Clock
	notifier Notifier
	settings Settings
}

// NewEngine builds an engine; notifier may be nil.
func NewEngine(st *state.Container, clk clock.Clock, notifier Notifier, settings Settings) *Engine {
	return &Engine{state: st, clock: clk, notifier: notifier, settings: settings}
}

// Tick evaluates once and emits at most one reminder. The returned reminder
// is nil when nothing was due.
func (e *Engine) Tick(ctx context.Context) *Reminder {
	var fired *Reminder
	now := e.clock.Now()

	e.state.Update(ctx, func(s state.State) []state.Event {
		r := Evaluate(now, s.Profile, s.Stats, e.settings)
		if r == nil {
			return nil
		}
		fired = r
		events := []state.Event{
			state.ReminderSent{Category: r.Category, At: now},
			state.MessageAppended{Message: models.NewMessage(models.RoleModel, r.Text, "", now)},
		}
		// wake and sleep carry no replies and leave the current ones alone
		if len(r.QuickReplies) > 0 {
			events = append(events, state.QuickRepliesSet{Options: r.QuickReplies})
		}
		return events
	})

	if fired == nil {
		return nil
	}
	logger.Info("reminder sent", "category", fired.Category)

	e.notify(ctx, fired)
	return fired
}

// notify delivers r outside the app, giving up after NotifyTimeout so a
// stalled push service cannot hold up the next tick.
func (e *Engine) notify(ctx context.Context, r *Reminder) {
	if e.notifier == nil {
		return
	}
	timeout := e.settings.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := e.notifier.Notify(ctx, NotificationTitle, r.Text); err != nil {
		logger.Warn("reminder notification failed", "category", r.Category, "error", err)
	}
}

// Run ticks immediately and then every interval until ctx is done. Missed
// ticks are not replayed.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	e.Tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}
