package extraction

import (
	"regexp"
	"strings"
)

// amountLabelPatterns are tried in priority order: labelled amounts before
// unlabelled ones (§4.4).
var amountLabelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)gesamtforderung[:\s]*([0-9.,]+)\s*(EUR|€)?`),
	regexp.MustCompile(`(?i)forderung[:\s]*([0-9.,]+)\s*(EUR|€)?`),
	regexp.MustCompile(`(?i)betrag[:\s]*([0-9.,]+)\s*(EUR|€)?`),
	regexp.MustCompile(`(?i)summe[:\s]*([0-9.,]+)\s*(EUR|€)?`),
}

// unlabelledAmountPattern matches a bare amount with an EUR/€ suffix when no
// labelled pattern matched.
var unlabelledAmountPattern = regexp.MustCompile(`([0-9]{1,3}(?:\.[0-9]{3})*(?:,[0-9]{2})?|[0-9]+(?:\.[0-9]{2})?)\s*(EUR|€)`)

var namePatterns = map[string]*regexp.Regexp{
	"client":   regexp.MustCompile(`(?i)mandant[:\s]*([A-ZÄÖÜ][\wäöüßÄÖÜ\-]+(?:\s+[A-ZÄÖÜ][\wäöüßÄÖÜ\-]+)*)`),
	"debtor":   regexp.MustCompile(`(?i)schuldner[:\s]*([A-ZÄÖÜ][\wäöüßÄÖÜ\-]+(?:\s+[A-ZÄÖÜ][\wäöüßÄÖÜ\-]+)*)`),
	"creditor": regexp.MustCompile(`(?i)gläubiger[:\s]*([A-ZÄÖÜ][\wäöüßÄÖÜ\-]+(?:\s+[A-ZÄÖÜ][\wäöüßÄÖÜ\-]+)*)`),
	"inkasso":  regexp.MustCompile(`(?i)inkasso[:\s]*([A-ZÄÖÜ][\wäöüßÄÖÜ\-]+(?:\s+[A-ZÄÖÜ][\wäöüßÄÖÜ\-]+)*)`),
}

// noblePrefixes are valid German name-particle prefixes (§9).
var noblePrefixes = map[string]bool{
	"von": true, "zu": true, "vom": true, "zum": true, "zur": true, "der": true,
}

// validateGermanName gates the regex matches above: a candidate name must
// look like a proper German name (letters, optional noble prefix, optional
// hyphen) rather than incidental matched text.
func validateGermanName(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}
	words := strings.Fields(candidate)
	for _, w := range words {
		lw := strings.ToLower(w)
		if noblePrefixes[lw] {
			continue
		}
		if !regexp.MustCompile(`^[A-ZÄÖÜ][\wäöüßÄÖÜ\-]*$`).MatchString(w) {
			return false
		}
	}
	return true
}

// ExtractText runs the text extractor (C5) over a cleaned message body.
func ExtractText(cleanedBody string) SourceExtraction {
	result := SourceExtraction{
		SourceType:       "text",
		SourceName:       "email_body",
		ExtractionMethod: "regex",
	}

	result.Gesamtforderung = extractAmount(cleanedBody)

	for role, pattern := range namePatterns {
		m := pattern.FindStringSubmatch(cleanedBody)
		if len(m) < 2 {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		if !validateGermanName(candidate) {
			continue
		}
		switch role {
		case "client", "debtor":
			result.ClientName = candidate
			result.ClientNameConfidence = ConfidenceHigh
		case "creditor", "inkasso":
			result.CreditorName = candidate
			result.CreditorNameConfidence = ConfidenceHigh
		}
	}

	return result
}

func extractAmount(body string) *Gesamtforderung {
	for _, pattern := range amountLabelPatterns {
		m := pattern.FindStringSubmatch(body)
		if len(m) < 2 {
			continue
		}
		if amount := parseAmountMatch(m[1], body); amount != nil {
			return amount
		}
	}

	m := unlabelledAmountPattern.FindStringSubmatch(body)
	if len(m) >= 2 {
		return parseAmountMatch(m[1], body)
	}

	return nil
}

func parseAmountMatch(raw, rawContext string) *Gesamtforderung {
	value, err := ParseGermanAmount(raw)
	if err != nil {
		return nil
	}
	confidence := ConfidenceMedium
	if strings.Contains(raw, ",") {
		confidence = ConfidenceHigh
	}
	return &Gesamtforderung{
		Value:      value,
		Currency:   "EUR",
		RawText:    raw,
		Source:     "email_body",
		Confidence: confidence,
	}
}
