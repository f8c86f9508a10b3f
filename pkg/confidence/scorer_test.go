package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/creditor-inbox/pkg/matching"
)

func TestExtractionScoreNoPenalty(t *testing.T) {
	score := ExtractionScore([]string{"native_pdf"}, MissingFields{})
	assert.Equal(t, 0.95, score)
}

func TestExtractionScoreWorstOfMultipleSources(t *testing.T) {
	score := ExtractionScore([]string{"native_pdf", "image"}, MissingFields{})
	assert.Equal(t, 0.70, score)
}

func TestExtractionScoreMissingFieldsPenalized(t *testing.T) {
	score := ExtractionScore([]string{"native_pdf"}, MissingFields{Amount: true, ClientName: true})
	assert.InDelta(t, 0.75, score, 0.0001)
}

func TestExtractionScoreFloored(t *testing.T) {
	score := ExtractionScore([]string{"unknown"}, MissingFields{Amount: true, ClientName: true, CreditorName: true})
	assert.Equal(t, extractionFloor, score)
}

func TestExtractionScoreUnknownSourceType(t *testing.T) {
	score := ExtractionScore([]string{"carrier_pigeon"}, MissingFields{})
	assert.Equal(t, 0.60, score)
}

func TestMatchScoreNoCandidates(t *testing.T) {
	assert.Equal(t, 0.0, MatchScore(matching.Decision{Status: matching.StatusNoCandidates}))
	assert.Equal(t, 0.0, MatchScore(matching.Decision{Status: matching.StatusNoRecentInquiry}))
}

func TestMatchScoreAmbiguousAppliesPenalty(t *testing.T) {
	decision := matching.Decision{
		Status: matching.StatusAmbiguous,
		TopCandidates: []matching.CandidateResult{
			{TotalScore: 0.80},
			{TotalScore: 0.78},
		},
	}
	assert.InDelta(t, 0.56, MatchScore(decision), 0.0001)
}

func TestMatchScoreAutoMatchedUsesSelected(t *testing.T) {
	selected := &matching.CandidateResult{TotalScore: 0.92}
	decision := matching.Decision{Status: matching.StatusAutoMatched, Selected: selected}
	assert.Equal(t, 0.92, MatchScore(decision))
}

func TestMatchScoreBelowThresholdFallsBackToTopCandidate(t *testing.T) {
	decision := matching.Decision{
		Status:        matching.StatusBelowThreshold,
		TopCandidates: []matching.CandidateResult{{TotalScore: 0.45}},
	}
	assert.Equal(t, 0.45, MatchScore(decision))
}

func TestOverallTakesWeakestDimension(t *testing.T) {
	score := Overall(0.9, 0.5)
	assert.Equal(t, Score{Extraction: 0.9, Match: 0.5, Overall: 0.5}, score)

	score = Overall(0.4, 0.95)
	assert.Equal(t, 0.4, score.Overall)
}
