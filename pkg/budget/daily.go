package budget

import (
	"sync"
	"time"
)

// DailyBreaker is a process-wide circuit breaker over cumulative daily LLM
// cost. Grounded on the teacher's WorkerPool capacity check (read current,
// compare against a configured cap, refuse if over) applied to cost instead
// of concurrency — sony/gobreaker is not a fit here since it trips on
// error *rate*, not a cumulative cost counter (§4.3).
type DailyBreaker struct {
	mu        sync.Mutex
	capUSD    float64
	dateKey   string
	spentUSD  float64
	keyTTL    time.Duration
	updatedAt time.Time
}

// NewDailyBreaker constructs a breaker with the given daily cap.
func NewDailyBreaker(capUSD float64) *DailyBreaker {
	return &DailyBreaker{
		capUSD: capUSD,
		keyTTL: 48 * time.Hour,
	}
}

// currentKey returns today's UTC date key, rolling the counter over to a
// fresh key (and zero balance) when the day changes or the prior key has
// aged past its 48h TTL.
func (b *DailyBreaker) currentKey(now time.Time) string {
	key := now.UTC().Format("2006-01-02")
	if b.dateKey != key || now.Sub(b.updatedAt) > b.keyTTL {
		b.dateKey = key
		b.spentUSD = 0
	}
	return key
}

// IsOpen reports whether the breaker is currently tripped (today's spend is
// at or above the cap).
func (b *DailyBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.currentKey(now)
	return b.spentUSD >= b.capUSD
}

// CheckAndRecord atomically adds estCost to today's counter when the result
// would stay under the cap, returning true. When it would exceed the cap it
// returns false and leaves the counter untouched (§8: boundary behaviour).
func (b *DailyBreaker) CheckAndRecord(estCost float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.currentKey(now)

	if b.spentUSD+estCost > b.capUSD {
		return false
	}
	b.spentUSD += estCost
	b.updatedAt = now
	return true
}

// Spent returns today's recorded spend, for metrics/status reporting.
func (b *DailyBreaker) Spent() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.currentKey(time.Now())
	return b.spentUSD
}
