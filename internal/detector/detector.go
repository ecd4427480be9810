package detector

import (
	"context"
	"image"
)

// Detection is one object found in a frame.
type Detection struct {
	Label      string          `json:"label"`
	ClassID    int             `json:"class_id"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"box"` // In source image coordinates
}

// Detector finds labelled objects in an image.
type Detector interface {
	// Detect returns the detections with a confidence of at least minConfidence,
	// highest confidence first.
	Detect(ctx context.Context, img image.Image, minConfidence float64) ([]Detection, error)
	// Labels returns the class names indexed by class ID.
	Labels() []string
	Close() error
}
