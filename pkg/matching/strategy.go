package matching

// nameOnlyOverrideThreshold is the name-score floor above which a fuzzy
// match with no reference-number signal is still accepted, on the theory
// that a very strong name match is evidence enough on its own (§4.7, §9).
// Per the open question in §9 this stays a compiled-in constant rather
// than a ThresholdManager-backed value; see DESIGN.md.
const nameOnlyOverrideThreshold = 0.85

// nameOnlyPenaltyFactor scales a name-only override to 70% of its name
// score, so such a match scores at most 0.70.
const nameOnlyPenaltyFactor = 0.7

// Strategy scores one candidate against the extracted signals, returning
// the candidate's total score and the per-signal breakdown to carry into
// the explainability record.
type Strategy interface {
	Score(nameScore, refScore float64, weights map[string]float64) float64
}

// ExactStrategy requires both signals to match perfectly: 1.0 when both
// name and reference are exact, 0.5 when exactly one is, else 0.
type ExactStrategy struct{}

func (ExactStrategy) Score(nameScore, refScore float64, weights map[string]float64) float64 {
	nameExact := nameScore == 1.0
	refExact := refScore == 1.0
	switch {
	case nameExact && refExact:
		return 1.0
	case nameExact || refExact:
		return 0.5
	default:
		return 0
	}
}

// FuzzyStrategy weights the two signals, with a discounted name-only path
// when the reference signal is entirely absent.
type FuzzyStrategy struct{}

func (FuzzyStrategy) Score(nameScore, refScore float64, weights map[string]float64) float64 {
	if nameScore == 0 {
		return 0
	}
	if refScore == 0 {
		if nameScore >= nameOnlyOverrideThreshold {
			return nameScore * nameOnlyPenaltyFactor
		}
		return 0
	}
	return nameScore*weights["client_name"] + refScore*weights["reference_number"]
}

// CombinedStrategy is the default: try Exact, and only fall back to Fuzzy
// when Exact did not produce a perfect match.
type CombinedStrategy struct{}

func (CombinedStrategy) Score(nameScore, refScore float64, weights map[string]float64) float64 {
	exact := ExactStrategy{}.Score(nameScore, refScore, weights)
	if exact == 1.0 {
		return exact
	}
	return FuzzyStrategy{}.Score(nameScore, refScore, weights)
}
