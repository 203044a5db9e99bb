package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine recognizes text with a local tesseract installation via
// gosseract. Each call gets a fresh client; gosseract clients are not safe
// for concurrent reuse.
type TesseractEngine struct {
	// Variables are extra tesseract variables applied to every client.
	Variables map[string]string

	newClient func() *gosseract.Client
}

// NewTesseractEngine constructs a TesseractEngine.
func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{
		Variables: map[string]string{
			"preserve_interword_spaces": "1",
		},
		newClient: gosseract.NewClient,
	}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize runs a single-block page segmentation pass and aggregates word
// confidences into the result.
func (e *TesseractEngine) Recognize(ctx context.Context, in Input, onProgress ProgressFunc) (Result, error) {
	if len(in.Image) == 0 {
		return Result{}, fmt.Errorf("empty image")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	emit(onProgress, StageInitializing, 0)
	client := e.newClient()
	defer client.Close()

	if err := client.SetImageFromBytes(in.Image); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	if len(in.Languages) > 0 {
		emit(onProgress, StageLoadingLanguage, 20)
		if err := client.SetLanguage(in.Languages...); err != nil {
			return Result{}, fmt.Errorf("set language: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return Result{}, fmt.Errorf("set page seg mode: %w", err)
	}
	for k, v := range e.Variables {
		if err := client.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return Result{}, fmt.Errorf("set variable %s: %w", k, err)
		}
	}

	emit(onProgress, StageRecognizing, 40)
	text, err := client.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize: %w", err)
	}

	confidence := 0.0
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err == nil && len(boxes) > 0 {
		var sum float64
		for _, box := range boxes {
			sum += box.Confidence
		}
		confidence = sum / float64(len(boxes))
	}

	emit(onProgress, StageDone, 100)
	return Result{Text: strings.TrimSpace(text), Confidence: confidence}, nil
}

var _ Engine = (*TesseractEngine)(nil)
