package quota

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultLimit is the number of reservations a user gets per rolling window
	DefaultLimit = 5
	// DefaultWindow is the rolling quota window anchored per user
	DefaultWindow = 24 * time.Hour
)

// Store persists quota counters alongside the user record so a restart
// does not reset anyone's window.
type Store interface {
	// LoadCounter returns the persisted counter for userID.
	// found is false when the user has never been charged.
	LoadCounter(ctx context.Context, userID string) (count int, windowStart time.Time, found bool, err error)

	// SaveCounter writes the counter back for userID.
	SaveCounter(ctx context.Context, userID string, count int, windowStart time.Time) error
}

// Config holds ledger configuration
type Config struct {
	Limit  int
	Window time.Duration
	Store  Store
	Logger *slog.Logger

	// Now overrides the clock, for tests
	Now func() time.Time
}

type counter struct {
	count       int
	windowStart time.Time
}

// Ledger enforces the per-user request limit over a rolling window.
// The in-memory counters are authoritative; the store is written through
// best-effort so the window survives restarts.
type Ledger struct {
	mu       sync.Mutex
	counters map[string]*counter

	limit  int
	window time.Duration
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewLedger creates a new quota ledger
func NewLedger(cfg *Config) *Ledger {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Ledger{
		counters: make(map[string]*counter),
		limit:    limit,
		window:   window,
		store:    cfg.Store,
		logger:   logger,
		now:      now,
	}
}

// CheckAndReserve atomically charges one reservation for userID.
// It returns true iff the user was under the limit after applying the
// lazy window reset. The check and the increment happen under one lock so
// two concurrent submits can never both pass on a stale count.
func (l *Ledger) CheckAndReserve(ctx context.Context, userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.counter(ctx, userID)
	l.resetIfExpired(c)

	if c.count >= l.limit {
		l.logger.Warn("Quota limit reached",
			slog.String("user_id", userID),
			slog.Int("count", c.count),
			slog.Int("limit", l.limit),
		)
		return false
	}

	c.count++
	l.persist(ctx, userID, c)

	l.logger.Debug("Quota reservation charged",
		slog.String("user_id", userID),
		slog.Int("count", c.count),
	)
	return true
}

// Release refunds one reservation for userID, floored at zero. Used when a
// submission is rejected after the quota was already charged.
func (l *Ledger) Release(ctx context.Context, userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.counter(ctx, userID)
	if c.count > 0 {
		c.count--
		l.persist(ctx, userID, c)
	}
}

// Remaining reports how many reservations userID has left in the current
// window, after applying the lazy reset.
func (l *Ledger) Remaining(ctx context.Context, userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.counter(ctx, userID)
	l.resetIfExpired(c)

	remaining := l.limit - c.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// counter returns the in-memory counter for userID, pulling the persisted
// state on first touch. Callers must hold l.mu.
func (l *Ledger) counter(ctx context.Context, userID string) *counter {
	if c, ok := l.counters[userID]; ok {
		return c
	}

	c := &counter{windowStart: l.now()}

	if l.store != nil {
		count, windowStart, found, err := l.store.LoadCounter(ctx, userID)
		if err != nil {
			l.logger.Error("Failed to load quota counter, starting fresh",
				slog.String("user_id", userID),
				slog.Any("error", err),
			)
		} else if found {
			c.count = count
			c.windowStart = windowStart
		}
	}

	l.counters[userID] = c
	return c
}

// resetIfExpired applies the lazy rolling-window reset. Callers must hold l.mu.
func (l *Ledger) resetIfExpired(c *counter) {
	if l.now().Sub(c.windowStart) >= l.window {
		c.count = 0
		c.windowStart = l.now()
	}
}

// persist writes the counter through to the store, best-effort. Callers must hold l.mu.
func (l *Ledger) persist(ctx context.Context, userID string, c *counter) {
	if l.store == nil {
		return
	}

	if err := l.store.SaveCounter(ctx, userID, c.count, c.windowStart); err != nil {
		l.logger.Error("Failed to persist quota counter",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}
}
