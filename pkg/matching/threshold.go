package matching

import (
	"context"
	"log/slog"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/matchingthreshold"
)

// candidateWindowDays is the fixed lookback for the candidate window
// (§4.7). Unlike min_match/gap/weights, the spec does not route this value
// through the ThresholdManager, so it stays a compiled constant here.
const candidateWindowDays = 30

// Compiled-in defaults, the last rung of the three-level fallback.
const (
	compiledMinMatch         = 0.70
	compiledGap              = 0.15
	compiledWeightClientName = 0.40
	compiledWeightReference  = 0.60
)

// ThresholdManager resolves matching thresholds and weights with a
// three-level fallback: (category, type) specific, then (default, type),
// then compiled-in constants (§4.7, §9).
type ThresholdManager struct {
	client *ent.Client
}

// NewThresholdManager builds a ThresholdManager backed by the given ent
// client.
func NewThresholdManager(client *ent.Client) *ThresholdManager {
	return &ThresholdManager{client: client}
}

// MinMatch resolves the min_match threshold for the given creditor
// category.
func (m *ThresholdManager) MinMatch(ctx context.Context, category string) float64 {
	return m.lookup(ctx, category, "min_match", "", compiledMinMatch)
}

// Gap resolves the gap threshold for the given creditor category.
func (m *ThresholdManager) Gap(ctx context.Context, category string) float64 {
	return m.lookup(ctx, category, "gap", "", compiledGap)
}

// Weights resolves the signal weight map for the given creditor category.
func (m *ThresholdManager) Weights(ctx context.Context, category string) map[string]float64 {
	return map[string]float64{
		"client_name":      m.lookup(ctx, category, "weight", "client_name", compiledWeightClientName),
		"reference_number": m.lookup(ctx, category, "weight", "reference_number", compiledWeightReference),
	}
}

// lookup implements the three-level fallback: category-specific row, then
// the "default" category row, then the compiled-in value. Query failures
// (including not-found) fall through silently — a missing override row is
// the expected, common case, not an error.
func (m *ThresholdManager) lookup(ctx context.Context, category, thresholdType, weightName string, compiled float64) float64 {
	if category != "" && category != "default" {
		if v, ok := m.queryOne(ctx, category, thresholdType, weightName); ok {
			return v
		}
	}
	if v, ok := m.queryOne(ctx, "default", thresholdType, weightName); ok {
		return v
	}
	return compiled
}

func (m *ThresholdManager) queryOne(ctx context.Context, category, thresholdType, weightName string) (float64, bool) {
	row, err := m.client.MatchingThreshold.Query().
		Where(
			matchingthreshold.CategoryEQ(category),
			matchingthreshold.ThresholdTypeEQ(thresholdType),
			matchingthreshold.WeightNameEQ(weightName),
		).
		Only(ctx)
	if err != nil {
		if !ent.IsNotFound(err) {
			slog.Warn("matching threshold lookup failed", "category", category, "type", thresholdType, "weight_name", weightName, "error", err)
		}
		return 0, false
	}
	return row.Value, true
}
