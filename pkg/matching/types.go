// Package matching implements C7: the matching engine that scores inbound
// messages against a time-windowed set of outbound inquiries using weighted
// fuzzy signals, with ambiguity detection and explainable decisions.
package matching

import "time"

// MatchStatus is the outcome classification of a matching decision.
type MatchStatus string

const (
	StatusAutoMatched     MatchStatus = "auto_matched"
	StatusAmbiguous       MatchStatus = "ambiguous"
	StatusBelowThreshold  MatchStatus = "below_threshold"
	StatusNoRecentInquiry MatchStatus = "no_recent_inquiry"
	StatusNoCandidates    MatchStatus = "no_candidates"
)

// Extracted is the subset of a message's extracted data the matcher scores
// against candidates.
type Extracted struct {
	ClientName       string
	ReferenceNumbers []string
}

// Candidate is one OutboundInquiry in the candidate window, carrying only
// the fields the matcher needs.
type Candidate struct {
	InquiryID       string
	ClientName      string
	CreditorEmail   string
	ReferenceNumber string
	SentAt          time.Time
}

// SignalScore is one named signal's contribution to a candidate's total.
type SignalScore struct {
	Score          float64
	WeightedScore  float64
	InquiryValue   string
	ExtractedValue string
	Algorithm      string
}

// CandidateResult is a single candidate's scored outcome, persisted as a
// MatchResult row.
type CandidateResult struct {
	Candidate      Candidate
	TotalScore     float64
	SignalScores   map[string]SignalScore
	Rank           int
	SelectionMethod string
}

// Decision is the engine's final output for one inbound message.
type Decision struct {
	Status       MatchStatus
	Selected     *CandidateResult
	TopCandidates []CandidateResult // up to 3, for review/explainability
	Gap          float64
	GapThreshold float64
	Explain      ExplainJSON
}
