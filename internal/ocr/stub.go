package ocr

import "context"

// StubEngine returns a canned result. Used in local development and tests
// where no tesseract installation is available.
type StubEngine struct {
	Text       string
	Confidence float64
	Err        error
}

func (e *StubEngine) Name() string { return "stub" }

// Recognize emits the full progress sequence, then returns the configured
// result or error.
func (e *StubEngine) Recognize(ctx context.Context, in Input, onProgress ProgressFunc) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	emit(onProgress, StageInitializing, 0)
	emit(onProgress, StageLoadingLanguage, 20)
	emit(onProgress, StageRecognizing, 40)
	if e.Err != nil {
		return Result{}, e.Err
	}
	emit(onProgress, StageDone, 100)
	return Result{Text: e.Text, Confidence: e.Confidence}, nil
}

var _ Engine = (*StubEngine)(nil)
