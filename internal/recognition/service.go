// Package recognition runs text recognition over a session's primary
// document capture and extracts structured fields from the result.
package recognition

import (
	"context"

	"kyc-backend/internal/extract"
	"kyc-backend/internal/ocr"
	"kyc-backend/internal/shared/metrics"
	"kyc-backend/internal/shared/telemetry"
)

// Service coordinates the engine and the field extractor.
type Service struct {
	Engine    ocr.Engine
	Languages []string
}

// NewService constructs a Service.
func NewService(engine ocr.Engine, languages []string) *Service {
	return &Service{Engine: engine, Languages: languages}
}

// Outcome is what the confirm step receives. Recognition never blocks the
// flow: a failed scan degrades to empty fields flagged for manual entry.
type Outcome struct {
	Fields        extract.Fields
	Confidence    float64
	LowConfidence bool
	Degraded      bool
}

// Recognize scans one raster and extracts fields. Engine failure is reported
// in the outcome, never as an error, so the caller always proceeds to the
// confirm step.
func (s *Service) Recognize(ctx context.Context, requestID string, raster []byte, docType string) Outcome {
	if len(raster) == 0 {
		telemetry.Warn("recognition.no_raster", map[string]any{"kyc_request_id": requestID})
		return Outcome{LowConfidence: true, Degraded: true}
	}

	started := metrics.NowMillis()
	res, err := s.Engine.Recognize(ctx, ocr.Input{
		Image:     raster,
		Languages: s.Languages,
		Metadata:  map[string]string{"kyc_request_id": requestID},
	}, func(p ocr.Progress) {
		telemetry.Info("ocr.progress", map[string]any{
			"kyc_request_id": requestID,
			"stage":          p.Stage,
			"percent":        p.Percent,
		})
	})
	metrics.ObserveRecognitionDurationMs(metrics.NowMillis() - started)
	if err != nil {
		metrics.IncRecognitionFailed()
		telemetry.Warn("recognition.failed", map[string]any{
			"kyc_request_id": requestID,
			"engine":         s.Engine.Name(),
			"error":          err.Error(),
		})
		return Outcome{LowConfidence: true, Degraded: true}
	}

	fields := extract.ExtractFields(res.Text, docType)
	return Outcome{
		Fields:        fields,
		Confidence:    res.Confidence,
		LowConfidence: extract.LowConfidence(fields, res.Confidence),
	}
}
