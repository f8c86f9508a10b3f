package extraction

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/example/creditor-inbox/pkg/budget"
	"github.com/example/creditor-inbox/pkg/capability"
	"github.com/nfnt/resize"
)

const maxImageBytesBeforeResize = 5 * 1024 * 1024
const maxImageLongestSidePx = 1500
const imageVisionTokenEstimate = 1200

// ExtractImage routes an image attachment through the vision capability,
// downscaling first when the source exceeds 5MB so the longest side is at
// most 1500px. Image-sourced extractions are capped at MEDIUM confidence
// (§4.4).
func ExtractImage(ctx context.Context, raw []byte, mimeType, sourceName string, tracker *budget.JobTracker, vision capability.LLMClient) SourceExtraction {
	result := SourceExtraction{
		SourceType:       "image",
		SourceName:       sourceName,
		ExtractionMethod: "vision",
	}

	payload := raw
	if len(raw) > maxImageBytesBeforeResize {
		resized, err := downscale(raw, mimeType)
		if err == nil {
			payload = resized
		}
	}

	if !tracker.CheckBudget(imageVisionTokenEstimate) {
		result.Error = "token_budget_exceeded"
		return result
	}

	const prompt = "Extrahiere die Gesamtforderung, den Mandanten- und Gläubigernamen aus diesem Dokumentbild auf Deutsch."
	res, err := vision.Vision(ctx, payload, mimeType, prompt)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	tracker.AddUsage(res.Usage.InputTokens, res.Usage.OutputTokens)
	result.TokensUsed = res.Usage.InputTokens + res.Usage.OutputTokens

	parsed := ExtractText(res.Text)
	result.Gesamtforderung = parsed.Gesamtforderung
	if result.Gesamtforderung != nil {
		result.Gesamtforderung.Source = "image"
		result.Gesamtforderung.Confidence = ConfidenceMedium
	}
	result.ClientName = parsed.ClientName
	result.ClientNameConfidence = downgradeVisionConfidence(parsed.ClientNameConfidence)
	result.CreditorName = parsed.CreditorName
	result.CreditorNameConfidence = downgradeVisionConfidence(parsed.CreditorNameConfidence)
	return result
}

func downscale(raw []byte, mimeType string) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	w, h := uint(bounds.Dx()), uint(bounds.Dy())
	var resized image.Image
	if w >= h {
		resized = resize.Resize(maxImageLongestSidePx, 0, src, resize.Lanczos3)
	} else {
		resized = resize.Resize(0, maxImageLongestSidePx, src, resize.Lanczos3)
	}

	var out bytes.Buffer
	switch mimeType {
	case "image/png":
		err = png.Encode(&out, resized)
	default:
		err = jpeg.Encode(&out, resized, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
