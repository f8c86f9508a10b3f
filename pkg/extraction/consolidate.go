package extraction

import "math"

// amountCollapseToleranceEUR is the threshold within which two source
// amounts are treated as the same claim (§4.5).
const amountCollapseToleranceEUR = 1.0

// defaultGesamtforderungEUR is applied when no source produced any amount.
const defaultGesamtforderungEUR = 100.00

// Consolidate merges a list of SourceExtractions into a single
// ConsolidatedExtraction per the locked rules in §4.5: amount dedup within
// 1 EUR (tie-break highest confidence then source order), weakest-link
// overall confidence, HIGH-then-longest name preference.
func Consolidate(sources []SourceExtraction) ConsolidatedExtraction {
	result := ConsolidatedExtraction{
		SourcesProcessed: len(sources),
	}

	var amounts []*Gesamtforderung
	var weakest Confidence
	haveConfidence := false
	var clientCandidates, creditorCandidates []nameCandidate

	for _, src := range sources {
		result.TotalTokensUsed += src.TokensUsed
		if src.Gesamtforderung != nil {
			amounts = append(amounts, src.Gesamtforderung)
			result.SourcesWithAmount++
			if !haveConfidence {
				weakest = src.Gesamtforderung.Confidence
				haveConfidence = true
			} else {
				weakest = weaker(weakest, src.Gesamtforderung.Confidence)
			}
		}
		if src.ClientName != "" {
			clientCandidates = append(clientCandidates, nameCandidate{src.ClientName, src.ClientNameConfidence})
		}
		if src.CreditorName != "" {
			creditorCandidates = append(creditorCandidates, nameCandidate{src.CreditorName, src.CreditorNameConfidence})
		}
	}

	result.ClientName = pickBestName(clientCandidates)
	result.CreditorName = pickBestName(creditorCandidates)

	if len(amounts) == 0 {
		result.Gesamtforderung = &Gesamtforderung{
			Value:      defaultGesamtforderungEUR,
			Currency:   "EUR",
			RawText:    "",
			Source:     "default",
			Confidence: ConfidenceLow,
		}
		result.Confidence = ConfidenceLow
		return result
	}

	result.Gesamtforderung = collapseAmounts(amounts)
	result.Confidence = weakest
	return result
}

// collapseAmounts dedups amounts within amountCollapseToleranceEUR, picks
// the maximum of the deduplicated set, tie-breaking on highest confidence
// then source order.
func collapseAmounts(amounts []*Gesamtforderung) *Gesamtforderung {
	collapsed := make([]*Gesamtforderung, 0, len(amounts))
	for _, a := range amounts {
		merged := false
		for i, existing := range collapsed {
			if math.Abs(existing.Value-a.Value) <= amountCollapseToleranceEUR {
				// Within tolerance of an existing bucket: keep whichever
				// has higher confidence; first-seen wins ties (source order).
				if a.Confidence.rank() > existing.Confidence.rank() {
					collapsed[i] = a
				}
				merged = true
				break
			}
		}
		if !merged {
			collapsed = append(collapsed, a)
		}
	}

	best := collapsed[0]
	for _, c := range collapsed[1:] {
		if c.Value > best.Value {
			best = c
		}
	}
	return best
}

// nameCandidate pairs one source's name guess with the confidence that
// source's extractor assigned it.
type nameCandidate struct {
	name       string
	confidence Confidence
}

// pickBestName implements the locked name-preference rule (§4.5): among
// HIGH-confidence candidates, the longest string; only when none are HIGH
// does it fall back to the longest candidate overall, regardless of tier.
func pickBestName(candidates []nameCandidate) string {
	if len(candidates) == 0 {
		return ""
	}

	pool := candidates
	var high []nameCandidate
	for _, c := range candidates {
		if c.confidence == ConfidenceHigh {
			high = append(high, c)
		}
	}
	if len(high) > 0 {
		pool = high
	}

	best := pool[0]
	for _, c := range pool[1:] {
		if len(c.name) > len(best.name) {
			best = c
		}
	}
	return best.name
}
