package matching

import "time"

// explainSchemaVersion is the schema version stamped into every persisted
// explainability record (§4.7). Bump this, not the field shapes, when the
// JSON layout changes.
const explainSchemaVersion = "v2.0"

// FiltersApplied records the candidate-window filters that were in effect
// for a decision, so a reviewer can see why a candidate was or wasn't
// considered without re-deriving the window.
type FiltersApplied struct {
	CreditorInquiriesWindowDays int  `json:"creditor_inquiries_window_days"`
	BothSignalsRequired         bool `json:"both_signals_required"`
}

// ExplainJSON is the versioned, structured explainability record persisted
// as MatchResult.scoring_details.
type ExplainJSON struct {
	SchemaVersion string                 `json:"schema_version"`
	MatchStatus   MatchStatus            `json:"match_status"`
	FinalScore    float64                `json:"final_score"`
	Gap           float64                `json:"gap"`
	GapThreshold  float64                `json:"gap_threshold"`
	Signals       map[string]SignalScore `json:"signals"`
	Weights       map[string]float64     `json:"weights"`
	Filters       FiltersApplied         `json:"filters_applied"`
	InquiryID     string                 `json:"inquiry_id,omitempty"`
	InquirySentAt *time.Time             `json:"inquiry_sent_at,omitempty"`
}

// newExplain builds the explainability record for a decision's selected (or
// best-ranked, when nothing was selected) candidate.
func newExplain(status MatchStatus, best *CandidateResult, gap, gapThreshold float64, weights map[string]float64) ExplainJSON {
	e := ExplainJSON{
		SchemaVersion: explainSchemaVersion,
		MatchStatus:   status,
		Gap:           gap,
		GapThreshold:  gapThreshold,
		Weights:       weights,
		Filters: FiltersApplied{
			CreditorInquiriesWindowDays: candidateWindowDays,
			BothSignalsRequired:         false,
		},
	}
	if best != nil {
		e.FinalScore = best.TotalScore
		e.Signals = best.SignalScores
		e.InquiryID = best.Candidate.InquiryID
		sentAt := best.Candidate.SentAt
		e.InquirySentAt = &sentAt
	}
	return e
}
