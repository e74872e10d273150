package state

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"dietcoach/internal/clock"
	"dietcoach/internal/logger"
	"dietcoach/internal/models"
)

const (
	KeyProfile  = "profile"
	KeyStats    = "stats"
	KeyMessages = "messages"
)

const persistTimeout = 5 * time.Second

// Persister stores opaque state blobs by key.
type Persister interface {
	GetBlob(ctx context.Context, key string) ([]byte, bool, error)
	PutBlob(ctx context.Context, key string, data []byte) error
}

// Container serializes every read and write of the coach state. Each access
// first rolls the stats over to the clock's current date.
//
// Blobs are encoded and written after mu is released. writeMu orders the
// writes and seq lets a write skip a blob a newer write already covered.
type Container struct {
	mu    sync.Mutex
	clock clock.Clock
	blobs Persister
	st    State
	seq   uint64

	writeMu sync.Mutex
	written map[string]uint64
}

// blobWrite is one blob captured under mu, waiting to be stored.
type blobWrite struct {
	key string
	seq uint64
	v   any
}

// New wraps an already loaded state. blobs may be nil for a memory-only
// container.
func New(clk clock.Clock, blobs Persister, initial State) *Container {
	return &Container{clock: clk, blobs: blobs, st: initial.Clone(), written: make(map[string]uint64)}
}

// Open loads the three blobs from blobs. Missing or unreadable blobs fall
// back to defaults; Open itself never fails.
func Open(ctx context.Context, clk clock.Clock, blobs Persister) *Container {
	today := clock.Today(clk)
	st := Default(today)
	if blobs == nil {
		return New(clk, nil, st)
	}

	if data, ok := loadBlob(ctx, blobs, KeyProfile); ok {
		p := models.DefaultProfile()
		if err := json.Unmarshal(data, &p); err != nil {
			logger.Warn("stored profile unreadable, using defaults", "error", err)
		} else {
			if p.DailyCalorieTarget <= 0 {
				p.DailyCalorieTarget = models.DefaultCalorieTarget
			}
			st.Profile = p
		}
	}

	if data, ok := loadBlob(ctx, blobs, KeyStats); ok {
		var s models.DailyStats
		if err := json.Unmarshal(data, &s); err != nil {
			logger.Warn("stored stats unreadable, using defaults", "error", err)
		} else {
			if s.Meals == nil {
				s.Meals = []models.MealLog{}
			}
			st.Stats = s
		}
	}

	if data, ok := loadBlob(ctx, blobs, KeyMessages); ok {
		var msgs []models.Message
		if err := json.Unmarshal(data, &msgs); err != nil {
			logger.Warn("stored transcript unreadable, starting empty", "error", err)
		} else if msgs != nil {
			st.Messages = msgs
		}
	}

	return New(clk, blobs, st)
}

func loadBlob(ctx context.Context, blobs Persister, key string) ([]byte, bool) {
	data, ok, err := blobs.GetBlob(ctx, key)
	if err != nil {
		logger.Warn("failed to load state blob", "key", key, "error", err)
		return nil, false
	}
	return data, ok
}

// Snapshot returns a deep copy of the current state.
func (c *Container) Snapshot(ctx context.Context) State {
	c.mu.Lock()
	writes := c.capture(c.rollover())
	st := c.st.Clone()
	c.mu.Unlock()

	c.flush(ctx, writes)
	return st
}

// Dispatch applies events atomically and returns the resulting state.
func (c *Container) Dispatch(ctx context.Context, events ...Event) State {
	st, _ := c.Update(ctx, func(State) []Event { return events })
	return st
}

// Update lets decide inspect the current state and choose events, all under
// the lock, so the read and the write cannot be split by another caller.
// decide must not block.
func (c *Container) Update(ctx context.Context, decide func(State) []Event) (State, []Event) {
	c.mu.Lock()
	dirty := c.rollover()
	events := decide(c.st.Clone())
	for _, e := range events {
		if e == nil {
			continue
		}
		c.st = e.apply(c.st)
		dirty |= e.touches()
	}
	writes := c.capture(dirty)
	st := c.st.Clone()
	c.mu.Unlock()

	c.flush(ctx, writes)
	return st, events
}

func (c *Container) rollover() blobSet {
	today := clock.Today(c.clock)
	if c.st.Stats.Date == today {
		return 0
	}
	logger.Info("new day, resetting daily stats", "previous", c.st.Stats.Date, "today", today)
	c.st.Stats = Rollover(c.st.Stats, today)
	return blobStats
}

// capture copies the touched blobs for flush. Callers hold mu.
func (c *Container) capture(dirty blobSet) []blobWrite {
	if c.blobs == nil || dirty == 0 {
		return nil
	}
	c.seq++
	var writes []blobWrite
	if dirty&blobProfile != 0 {
		writes = append(writes, blobWrite{KeyProfile, c.seq, c.st.Profile.Clone()})
	}
	if dirty&blobStats != 0 {
		writes = append(writes, blobWrite{KeyStats, c.seq, c.st.Stats.Clone()})
	}
	if dirty&blobMessages != 0 {
		// messages are immutable, copying the slice is enough
		writes = append(writes, blobWrite{KeyMessages, c.seq, append([]models.Message(nil), c.st.Messages...)})
	}
	return writes
}

// flush encodes and stores captured blobs without holding mu. Failures are
// logged and dropped; the in-memory state stays authoritative.
func (c *Container) flush(ctx context.Context, writes []blobWrite) {
	if len(writes) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	for _, w := range writes {
		if c.written[w.key] >= w.seq {
			continue
		}
		c.put(ctx, w.key, w.v)
		c.written[w.key] = w.seq
	}
}

func (c *Container) put(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to encode state blob", "key", key, "error", err)
		return
	}
	if err := c.blobs.PutBlob(ctx, key, data); err != nil {
		logger.Error("failed to persist state blob", "key", key, "error", err)
	}
}
