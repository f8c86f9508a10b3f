package confidence

import "github.com/example/creditor-inbox/pkg/matching"

// Tier is the three-level confidence bucket a message lands in.
type Tier string

const (
	TierHigh   Tier = "HIGH"
	TierMedium Tier = "MEDIUM"
	TierLow    Tier = "LOW"
)

// Action is what the worker pipeline does as a result of the routing
// decision.
type Action string

const (
	ActionAutoUpdate       Action = "auto_update"
	ActionUpdateAndNotify  Action = "update_and_notify"
	ActionManualReview     Action = "manual_review"
)

// Route is the router's output for one message.
type Route struct {
	Tier   Tier
	Action Action
	// Overridden is true when the matcher had already reached auto_matched
	// but the LOW tier still forces a review (§4.8).
	Overridden bool
	// NeedsReview mirrors InboundMessage.needs_review when Action is
	// ActionManualReview.
	NeedsReview bool
}

// Router classifies an overall confidence score into a tier and resulting
// action, using the tier boundaries it was built with; main builds it from
// the confidence config section, not from the ThresholdManager (§4.8).
type Router struct {
	HighThreshold float64
	LowThreshold  float64
}

// NewRouter builds a Router from configured tier boundaries.
func NewRouter(highThreshold, lowThreshold float64) *Router {
	return &Router{HighThreshold: highThreshold, LowThreshold: lowThreshold}
}

// Route classifies the overall score and decides the action, applying the
// LOW-tier override even when the matcher already reached auto_matched.
func (r *Router) Route(overall float64, matchStatus matching.MatchStatus) Route {
	tier := r.tierFor(overall)

	switch tier {
	case TierHigh:
		return Route{Tier: tier, Action: ActionAutoUpdate}
	case TierMedium:
		return Route{Tier: tier, Action: ActionUpdateAndNotify}
	default:
		route := Route{Tier: TierLow, Action: ActionManualReview, NeedsReview: true}
		if matchStatus == matching.StatusAutoMatched {
			route.Overridden = true
		}
		return route
	}
}

func (r *Router) tierFor(overall float64) Tier {
	switch {
	case overall >= r.HighThreshold:
		return TierHigh
	case overall < r.LowThreshold:
		return TierLow
	default:
		return TierMedium
	}
}
