package matching

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/outboundinquiry"
)

// singleEmailOverrideScore is the rescored value applied when exactly one
// candidate survives and its only evidence is an exact creditor_email match
// with zero name/reference signal (§4.7 step 2).
const singleEmailOverrideScore = 0.90

// topCandidatesLimit bounds how many ranked candidates are carried into the
// decision for review/explainability purposes.
const topCandidatesLimit = 3

// Engine runs the candidate window query, signal scoring, strategy
// selection, ranking and ambiguity detection described in §4.7.
type Engine struct {
	client     *ent.Client
	thresholds *ThresholdManager
	strategy   Strategy
}

// NewEngine builds a matching Engine using the default Combined strategy.
func NewEngine(client *ent.Client, thresholds *ThresholdManager) *Engine {
	return &Engine{client: client, thresholds: thresholds, strategy: CombinedStrategy{}}
}

// Decide scores the candidate window for one inbound message and returns
// the matching decision. category defaults to "default" when the creditor
// has no dedicated threshold category.
func (e *Engine) Decide(ctx context.Context, extracted Extracted, senderEmail string, received time.Time, category string) (Decision, error) {
	if category == "" {
		category = "default"
	}

	candidates, err := e.candidateWindow(ctx, senderEmail, received)
	if err != nil {
		return Decision{}, err
	}
	weights := e.thresholds.Weights(ctx, category)
	gapThreshold := e.thresholds.Gap(ctx, category)

	if len(candidates) == 0 {
		return Decision{
			Status:       StatusNoRecentInquiry,
			GapThreshold: gapThreshold,
			Explain:      newExplain(StatusNoRecentInquiry, nil, 0, gapThreshold, weights),
		}, nil
	}

	results := make([]CandidateResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, e.score(c, extracted, weights))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].TotalScore > results[j].TotalScore
	})
	for i := range results {
		results[i].Rank = i + 1
	}

	// Single-candidate override: one exact-email candidate with zero signal
	// score is still strong evidence on its own.
	if len(results) == 1 && results[0].TotalScore == 0 && results[0].Candidate.CreditorEmail != "" &&
		strings.EqualFold(results[0].Candidate.CreditorEmail, senderEmail) {
		results[0].TotalScore = singleEmailOverrideScore
		results[0].SelectionMethod = "single_email_override"
	}

	minMatch := e.thresholds.MinMatch(ctx, category)
	top := topN(results, topCandidatesLimit)

	if results[0].TotalScore < minMatch {
		return Decision{
			Status:        StatusBelowThreshold,
			TopCandidates: top,
			GapThreshold:  gapThreshold,
			Explain:       newExplain(StatusBelowThreshold, &results[0], 0, gapThreshold, weights),
		}, nil
	}

	if len(results) == 1 {
		sel := results[0]
		sel.SelectionMethod = selectionMethodOrDefault(sel.SelectionMethod)
		return Decision{
			Status:       StatusAutoMatched,
			Selected:     &sel,
			TopCandidates: top,
			Gap:          1.0,
			GapThreshold: gapThreshold,
			Explain:      newExplain(StatusAutoMatched, &sel, 1.0, gapThreshold, weights),
		}, nil
	}

	gap, allShared := nextDistinctCreditorGap(results)
	if allShared {
		gap = 1.0
	}

	if gap >= gapThreshold {
		sel := results[0]
		sel.SelectionMethod = selectionMethodOrDefault(sel.SelectionMethod)
		return Decision{
			Status:       StatusAutoMatched,
			Selected:     &sel,
			TopCandidates: top,
			Gap:          gap,
			GapThreshold: gapThreshold,
			Explain:      newExplain(StatusAutoMatched, &sel, gap, gapThreshold, weights),
		}, nil
	}

	return Decision{
		Status:        StatusAmbiguous,
		TopCandidates: top,
		Gap:           gap,
		GapThreshold:  gapThreshold,
		Explain:       newExplain(StatusAmbiguous, &results[0], gap, gapThreshold, weights),
	}, nil
}

func selectionMethodOrDefault(method string) string {
	if method != "" {
		return method
	}
	return "combined_strategy"
}

// candidateWindow queries OutboundInquiry rows in [received-30d, received],
// applying the selection priority: exact creditor_email match, else domain
// match, else the full window.
func (e *Engine) candidateWindow(ctx context.Context, senderEmail string, received time.Time) ([]Candidate, error) {
	windowStart := received.AddDate(0, 0, -candidateWindowDays)
	rows, err := e.client.OutboundInquiry.Query().
		Where(
			outboundinquiry.SentAtGTE(windowStart),
			outboundinquiry.SentAtLTE(received),
		).
		All(ctx)
	if err != nil {
		return nil, err
	}

	toCandidate := func(r *ent.OutboundInquiry) Candidate {
		c := Candidate{
			InquiryID:  r.ID,
			ClientName: r.ClientName,
			SentAt:     r.SentAt,
		}
		if r.CreditorEmail != nil {
			c.CreditorEmail = *r.CreditorEmail
		}
		if r.ReferenceNumber != nil {
			c.ReferenceNumber = *r.ReferenceNumber
		}
		return c
	}

	var exact, domainMatch []Candidate
	senderDomain := emailDomain(senderEmail)
	for _, r := range rows {
		c := toCandidate(r)
		if c.CreditorEmail != "" && strings.EqualFold(c.CreditorEmail, senderEmail) {
			exact = append(exact, c)
			continue
		}
		if senderDomain != "" && emailDomain(c.CreditorEmail) == senderDomain {
			domainMatch = append(domainMatch, c)
		}
	}

	if len(exact) > 0 {
		return exact, nil
	}
	if len(domainMatch) > 0 {
		return domainMatch, nil
	}

	all := make([]Candidate, 0, len(rows))
	for _, r := range rows {
		all = append(all, toCandidate(r))
	}
	return all, nil
}

func emailDomain(addr string) string {
	idx := strings.LastIndex(addr, "@")
	if idx == -1 {
		return ""
	}
	return strings.ToLower(addr[idx+1:])
}

// score runs both signal scorers and the configured strategy against one
// candidate.
func (e *Engine) score(c Candidate, extracted Extracted, weights map[string]float64) CandidateResult {
	nameScore := ClientNameScore(c.ClientName, extracted.ClientName)
	refScore := BestReferenceScore(c.ReferenceNumber, extracted.ReferenceNumbers)

	bestRef := bestReferenceValue(extracted.ReferenceNumbers, c.ReferenceNumber)
	signals := map[string]SignalScore{
		"client_name": {
			Score:          nameScore,
			WeightedScore:  nameScore * weights["client_name"],
			InquiryValue:   c.ClientName,
			ExtractedValue: extracted.ClientName,
			Algorithm:      "max(token_sort, partial, token_set)",
		},
		"reference_number": {
			Score:          refScore,
			WeightedScore:  refScore * weights["reference_number"],
			InquiryValue:   c.ReferenceNumber,
			ExtractedValue: bestRef,
			Algorithm:      "exact_then_fuzzy_cutoff_0.80",
		},
	}

	total := e.strategy.Score(nameScore, refScore, weights)
	return CandidateResult{
		Candidate:    c,
		TotalScore:   total,
		SignalScores: signals,
	}
}

func bestReferenceValue(extractedRefs []string, inquiryRef string) string {
	best := ""
	bestScore := -1.0
	for _, ref := range extractedRefs {
		if s := ReferenceScore(inquiryRef, ref); s > bestScore {
			bestScore = s
			best = ref
		}
	}
	return best
}

// nextDistinctCreditorGap returns the gap between the top result and the
// next-ranked result from a different creditor email, deduplicating
// repeated inquiries for the same creditor. allShared is true when every
// candidate shares the top candidate's creditor email.
func nextDistinctCreditorGap(results []CandidateResult) (gap float64, allShared bool) {
	top := results[0]
	for _, r := range results[1:] {
		if !strings.EqualFold(r.Candidate.CreditorEmail, top.Candidate.CreditorEmail) || top.Candidate.CreditorEmail == "" {
			return top.TotalScore - r.TotalScore, false
		}
	}
	return 0, true
}

func topN(results []CandidateResult, n int) []CandidateResult {
	if len(results) <= n {
		return results
	}
	return results[:n]
}
