// Package ocr defines the recognition engine boundary. Engines receive a
// prepared raster and report plain text with an aggregate confidence;
// recognition failure is an explicit error, never a fabricated result.
package ocr

import "context"

// Stage labels for progress events, in the order an engine emits them.
const (
	StageInitializing    = "initializing"
	StageLoadingLanguage = "loading_language"
	StageRecognizing     = "recognizing"
	StageDone            = "done"
)

// Input is one recognition request.
type Input struct {
	// Image holds the preprocessed raster bytes.
	Image []byte
	// Languages are engine language codes, e.g. "eng". Empty means the
	// engine default.
	Languages []string
	// Metadata is attached to progress events for log correlation.
	Metadata map[string]string
}

// Result is a successful recognition.
type Result struct {
	Text string
	// Confidence is the engine's aggregate word confidence on a 0-100
	// scale.
	Confidence float64
}

// Progress is an advisory status event emitted during recognition.
type Progress struct {
	Stage   string
	Percent int
}

// ProgressFunc receives progress events. May be nil.
type ProgressFunc func(Progress)

// Engine runs text recognition on a single image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input, onProgress ProgressFunc) (Result, error)
}

func emit(fn ProgressFunc, stage string, percent int) {
	if fn != nil {
		fn(Progress{Stage: stage, Percent: percent})
	}
}
