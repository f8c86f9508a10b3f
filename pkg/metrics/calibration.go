package metrics

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/reviewitem"
)

// skippedResolutions are review outcomes that don't carry a useful
// correctness signal for calibration (§4.13).
var skippedResolutions = map[reviewitem.Resolution]bool{
	reviewitem.ResolutionSpam:      true,
	reviewitem.ResolutionRejected:  true,
	reviewitem.ResolutionEscalated: true,
}

// defaultHighThreshold/defaultLowThreshold back-stop the confidence bucket
// derivation when a message has no stored confidence_route.
const (
	defaultHighThreshold = 0.85
	defaultLowThreshold  = 0.60
)

// CaptureOnResolution persists a CalibrationSample for a resolved
// ReviewItem, unless its resolution is spam/rejected/escalated.
func (r *Recorder) CaptureOnResolution(ctx context.Context, item *ent.ReviewItem, message *ent.InboundMessage, originalData, correctedData map[string]any) error {
	if item.Resolution == nil || skippedResolutions[*item.Resolution] {
		return nil
	}

	wasCorrect := *item.Resolution == reviewitem.ResolutionApproved
	correctionType := diffFields(originalData, correctedData)
	documentType := dominantSourceType(message)
	bucket := confidenceBucket(message)

	builder := r.client.CalibrationSample.Create().
		SetID(uuid.New().String()).
		SetWasCorrect(wasCorrect).
		SetConfidenceBucket(bucket).
		SetReviewItemID(item.ID).
		SetMessageID(item.MessageID)
	if correctionType != "" {
		builder = builder.SetCorrectionType(correctionType)
	}
	if documentType != "" {
		builder = builder.SetDocumentType(documentType)
	}
	if message.ConfidenceOverall != nil {
		builder = builder.SetPredictedConfidence(*message.ConfidenceOverall)
	}

	if _, err := builder.Save(ctx); err != nil {
		return fmt.Errorf("failed to persist calibration sample: %w", err)
	}
	return nil
}

// diffFields names the single field that changed between the original and
// corrected data, or "multiple" when more than one did.
func diffFields(original, corrected map[string]any) string {
	changed := ""
	count := 0
	for key, correctedVal := range corrected {
		if originalVal, ok := original[key]; !ok || originalVal != correctedVal {
			changed = key
			count++
		}
	}
	if count == 0 {
		return ""
	}
	if count > 1 {
		return "multiple"
	}
	return changed
}

// dominantSourceType reads the A2 checkpoint and returns the most common
// source type among the sources it processed.
func dominantSourceType(message *ent.InboundMessage) string {
	checkpoints := message.Checkpoints
	if checkpoints == nil {
		return ""
	}
	stage, ok := checkpoints["agent_2_extraction"].(map[string]any)
	if !ok {
		return ""
	}
	sources, ok := stage["sources"].([]any)
	if !ok || len(sources) == 0 {
		return ""
	}

	counts := make(map[string]int)
	for _, s := range sources {
		src, ok := s.(map[string]any)
		if !ok {
			continue
		}
		if t, ok := src["source_type"].(string); ok {
			counts[t]++
		}
	}

	best, bestCount := "", 0
	for t, c := range counts {
		if c > bestCount {
			best, bestCount = t, c
		}
	}
	return best
}

func confidenceBucket(message *ent.InboundMessage) string {
	if message.ConfidenceRoute != nil && *message.ConfidenceRoute != "" {
		return *message.ConfidenceRoute
	}
	if message.ConfidenceOverall == nil {
		return "LOW"
	}
	v := *message.ConfidenceOverall
	switch {
	case v >= defaultHighThreshold:
		return "HIGH"
	case v < defaultLowThreshold:
		return "LOW"
	default:
		return "MEDIUM"
	}
}
