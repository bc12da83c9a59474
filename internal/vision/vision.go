package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"scenevoice/internal/model"
)

// Package vision contains the scene-description pipeline: it turns raw image
// bytes into a caption plus the set of objects the model saw.

// Scene is the result of describing one image. It is immutable once produced.
type Scene struct {
	Caption    string            `json:"caption"`
	Detections []model.Detection `json:"detections"`
}

// Describer describes an image using a vision model.
type Describer interface {
	// Describe returns the scene for the given image bytes. format is the
	// file extension of the source image (jpg, jpeg or png). Any failure
	// inside the pipeline is returned as *ProcessingError.
	Describe(ctx context.Context, image []byte, format string) (*Scene, error)
}

// ProcessingError wraps any failure inside the scene-description pipeline
// (decode, model call, response parse). It is the single error-translation
// boundary: callers match on the type and still see the original message.
type ProcessingError struct {
	Err error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("error in scene description: %v", e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// sceneJSON mirrors the JSON contract the model is instructed to emit.
type sceneJSON struct {
	Caption string            `json:"caption"`
	Objects []model.Detection `json:"objects"`
}

// parseScene decodes the model's response content into a Scene. Models
// occasionally wrap JSON in markdown fences despite instructions, so those
// are stripped first.
func parseScene(content string) (*Scene, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	var raw sceneJSON
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}
	if raw.Caption == "" {
		return nil, fmt.Errorf("model response has no caption")
	}
	return &Scene{Caption: raw.Caption, Detections: raw.Objects}, nil
}

// filterDetections retains only detections at or above the threshold.
func filterDetections(dets []model.Detection, threshold float64) []model.Detection {
	kept := make([]model.Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence >= threshold {
			kept = append(kept, d)
		}
	}
	return kept
}
