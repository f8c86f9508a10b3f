package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/creditor-inbox/pkg/matching"
)

func testRouter() *Router {
	return NewRouter(0.85, 0.50)
}

func TestRouteHighTierAutoUpdates(t *testing.T) {
	route := testRouter().Route(0.90, matching.StatusAutoMatched)
	assert.Equal(t, TierHigh, route.Tier)
	assert.Equal(t, ActionAutoUpdate, route.Action)
	assert.False(t, route.NeedsReview)
}

func TestRouteMediumTierUpdatesAndNotifies(t *testing.T) {
	route := testRouter().Route(0.70, matching.StatusAutoMatched)
	assert.Equal(t, TierMedium, route.Tier)
	assert.Equal(t, ActionUpdateAndNotify, route.Action)
	assert.False(t, route.NeedsReview)
}

func TestRouteLowTierForcesManualReview(t *testing.T) {
	route := testRouter().Route(0.30, matching.StatusBelowThreshold)
	assert.Equal(t, TierLow, route.Tier)
	assert.Equal(t, ActionManualReview, route.Action)
	assert.True(t, route.NeedsReview)
}

func TestRouteLowTierOverridesAutoMatched(t *testing.T) {
	route := testRouter().Route(0.40, matching.StatusAutoMatched)
	assert.Equal(t, TierLow, route.Tier)
	assert.True(t, route.Overridden)
}

func TestRouteBoundaries(t *testing.T) {
	r := testRouter()
	assert.Equal(t, TierHigh, r.tierFor(0.85))
	assert.Equal(t, TierMedium, r.tierFor(0.50))
	assert.Equal(t, TierLow, r.tierFor(0.4999))
}
