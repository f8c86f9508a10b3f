// Package confidence implements C8: the weakest-link confidence scorer and
// the three-tier router that decides whether a message auto-commits, commits
// with a verification notice, or goes to manual review.
package confidence

import (
	"github.com/example/creditor-inbox/pkg/extraction"
	"github.com/example/creditor-inbox/pkg/matching"
)

// missingFieldPenalty is deducted once per missing key field from the
// source-type quality baseline.
const missingFieldPenalty = 0.10

// extractionFloor is the minimum extraction-dimension score regardless of
// how many fields are missing.
const extractionFloor = 0.30

// ambiguousMatchPenalty discounts the match dimension when the matcher
// returned ambiguous, since the top score alone overstates confidence.
const ambiguousMatchPenalty = 0.30

// MissingFields describes which of the three key fields were not found.
type MissingFields struct {
	Amount       bool
	ClientName   bool
	CreditorName bool
}

func (m MissingFields) count() int {
	n := 0
	if m.Amount {
		n++
	}
	if m.ClientName {
		n++
	}
	if m.CreditorName {
		n++
	}
	return n
}

// ExtractionScore computes the extraction dimension: the weakest per-source
// quality baseline among the sources that contributed, minus a penalty per
// missing key field, floored at extractionFloor (§4.8).
func ExtractionScore(sourceTypes []string, missing MissingFields) float64 {
	baseline := worstBaseline(sourceTypes)
	score := baseline - float64(missing.count())*missingFieldPenalty
	if score < extractionFloor {
		return extractionFloor
	}
	return score
}

// baselineKey maps extractor SourceType values onto QualityBaseline keys
// where the two names differ.
var baselineKey = map[string]string{
	"pdf_digital": "native_pdf",
	"pdf_scanned": "scanned_pdf",
	"text":        "email_body",
}

func worstBaseline(sourceTypes []string) float64 {
	if len(sourceTypes) == 0 {
		return extraction.QualityBaseline["unknown"]
	}
	worst := 1.0
	for _, t := range sourceTypes {
		if k, ok := baselineKey[t]; ok {
			t = k
		}
		b, ok := extraction.QualityBaseline[t]
		if !ok {
			b = extraction.QualityBaseline["unknown"]
		}
		if b < worst {
			worst = b
		}
	}
	return worst
}

// MatchScore computes the match dimension from a matching decision (§4.8).
func MatchScore(decision matching.Decision) float64 {
	switch decision.Status {
	case matching.StatusNoCandidates, matching.StatusNoRecentInquiry:
		return 0
	case matching.StatusAmbiguous:
		top := 0.0
		if len(decision.TopCandidates) > 0 {
			top = decision.TopCandidates[0].TotalScore
		}
		return top * (1 - ambiguousMatchPenalty)
	default: // auto_matched, below_threshold
		if decision.Selected != nil {
			return decision.Selected.TotalScore
		}
		if len(decision.TopCandidates) > 0 {
			return decision.TopCandidates[0].TotalScore
		}
		return 0
	}
}

// Score is the overall confidence breakdown for one message.
type Score struct {
	Extraction float64
	Match      float64
	Overall    float64
}

// Overall combines the extraction and match dimensions as min(extraction,
// match); the intent dimension is optional and excluded by default (§4.8).
func Overall(extractionScore, matchScore float64) Score {
	overall := extractionScore
	if matchScore < overall {
		overall = matchScore
	}
	return Score{Extraction: extractionScore, Match: matchScore, Overall: overall}
}
