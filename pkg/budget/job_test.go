package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobTrackerCheckBudget(t *testing.T) {
	tr := NewJobTracker(1000, 3.0, 15.0)
	assert.True(t, tr.CheckBudget(1000))
	assert.False(t, tr.CheckBudget(1001))
}

func TestJobTrackerAddUsageReducesRemaining(t *testing.T) {
	tr := NewJobTracker(1000, 3.0, 15.0)
	tr.AddUsage(400, 100)
	assert.Equal(t, 500, tr.Remaining())
}

func TestJobTrackerRemainingNeverNegative(t *testing.T) {
	tr := NewJobTracker(100, 3.0, 15.0)
	tr.AddUsage(200, 0)
	assert.Equal(t, 0, tr.Remaining())
}

func TestJobTrackerSoftWarning(t *testing.T) {
	tr := NewJobTracker(1000, 3.0, 15.0)
	tr.AddUsage(700, 0)
	assert.False(t, tr.SoftWarning())
	tr.AddUsage(100, 0)
	assert.True(t, tr.SoftWarning())
}

func TestJobTrackerEstimateCostUSD(t *testing.T) {
	tr := NewJobTracker(1_000_000, 3.0, 15.0)
	tr.AddUsage(1_000_000, 1_000_000)
	assert.InDelta(t, 18.0, tr.EstimateCostUSD(), 0.0001)
}

func TestDailyBreakerCheckAndRecordRespectsCap(t *testing.T) {
	b := NewDailyBreaker(10.0)
	assert.True(t, b.CheckAndRecord(6.0))
	assert.True(t, b.CheckAndRecord(3.0))
	assert.False(t, b.CheckAndRecord(2.0))
	assert.InDelta(t, 9.0, b.Spent(), 0.0001)
}

func TestDailyBreakerIsOpenAtCap(t *testing.T) {
	b := NewDailyBreaker(5.0)
	assert.False(t, b.IsOpen())
	assert.True(t, b.CheckAndRecord(5.0))
	assert.True(t, b.IsOpen())
}
