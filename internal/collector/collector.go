package collector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/mattmezza/alertai/internal/detector"
)

// ErrSourceClosed means the frame source cannot produce any more frames.
var ErrSourceClosed = errors.New("frame source closed")

// FrameSource produces camera images on demand.
type FrameSource interface {
	Read() (image.Image, error)
	Close() error
}

// Frame holds everything gathered for one captured image.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Image     image.Image
	// Detections are the alertable detections, labels normalized to their category.
	Detections []detector.Detection
	// Ignored counts detections whose label is not an alertable category.
	Ignored int
	// Present maps each detected category to its highest confidence in the frame.
	Present map[string]float64
	// Latency is the time the detector took.
	Latency time.Duration
}

// FrameCollector reads a frame, runs the detector on it and keeps the alertable results.
type FrameCollector struct {
	source        FrameSource
	detector      detector.Detector
	matcher       *CategoryMatcher
	minConfidence float64
	now           func() time.Time

	mu  sync.Mutex // Protects seq and minConfidence
	seq uint64
}

type Option func(*FrameCollector)

// WithClock replaces time.Now for frame timestamps and latency.
func WithClock(now func() time.Time) Option {
	return func(fc *FrameCollector) { fc.now = now }
}

func NewFrameCollector(source FrameSource, det detector.Detector, matcher *CategoryMatcher, minConfidence float64, opts ...Option) *FrameCollector {
	fc := &FrameCollector{
		source:        source,
		detector:      det,
		matcher:       matcher,
		minConfidence: minConfidence,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(fc)
	}
	return fc
}

// SetMinConfidence changes the detector confidence threshold for later frames.
func (fc *FrameCollector) SetMinConfidence(c float64) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.minConfidence = c
}

// Collect reads and analyses one frame. A read failure is returned wrapped in
// ErrSourceClosed. A detector failure returns the frame without detections
// together with the error, so the caller can still show and debounce it.
func (fc *FrameCollector) Collect(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := fc.source.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceClosed, err)
	}

	fc.mu.Lock()
	fc.seq++
	frame := &Frame{
		Seq:       fc.seq,
		Timestamp: fc.now(),
		Image:     img,
		Present:   make(map[string]float64),
	}
	minConfidence := fc.minConfidence
	fc.mu.Unlock()

	start := fc.now()
	dets, err := fc.detector.Detect(ctx, img, minConfidence)
	frame.Latency = fc.now().Sub(start)
	if err != nil {
		return frame, fmt.Errorf("detector failed on frame %d: %w", frame.Seq, err)
	}

	for _, d := range dets {
		category, ok := fc.matcher.Match(d.Label)
		if !ok {
			frame.Ignored++
			continue
		}
		d.Label = category
		frame.Detections = append(frame.Detections, d)
		if c, seen := frame.Present[category]; !seen || d.Confidence > c {
			frame.Present[category] = d.Confidence
		}
	}
	return frame, nil
}

func (fc *FrameCollector) Close() error {
	return fc.source.Close()
}
