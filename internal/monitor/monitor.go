// Package monitor runs the capture, detect, debounce and alert loop.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log"
	"time"

	"github.com/mattmezza/alertai/internal/alerter"
	"github.com/mattmezza/alertai/internal/collector"
	"github.com/mattmezza/alertai/internal/metrics"
	"github.com/mattmezza/alertai/internal/overlay"
	"github.com/mattmezza/alertai/internal/state"
)

// FrameCollector produces analysed frames.
type FrameCollector interface {
	Collect(ctx context.Context) (*collector.Frame, error)
}

// Processor debounces the categories present in a frame into alerts.
type Processor interface {
	Process(now time.Time, present map[string]float64) []alerter.AlertEvent
	Snapshot() state.Snapshot
}

// Preview shows annotated frames and reports when the user wants to quit.
type Preview interface {
	Show(img image.Image) (quit bool, err error)
}

type Monitor struct {
	collector FrameCollector
	processor Processor
	preview   Preview
	metrics   *metrics.Metrics
	palette   overlay.Palette
}

type Option func(*Monitor)

// WithPreview draws detections on every frame and shows it.
func WithPreview(p Preview) Option {
	return func(m *Monitor) { m.preview = p }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

func WithPalette(p overlay.Palette) Option {
	return func(m *Monitor) { m.palette = p }
}

func New(fc FrameCollector, p Processor, opts ...Option) *Monitor {
	m := &Monitor{
		collector: fc,
		processor: p,
		palette:   overlay.DefaultPalette(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run processes frames until ctx is cancelled, the user quits the preview or the
// frame source fails. Only a frame source failure is returned as an error; it
// wraps collector.ErrSourceClosed. Detector and preview failures are logged and
// the loop continues. A frame whose detection failed still reaches the processor
// as an empty frame but is not counted as processed.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := m.collector.Collect(ctx)
		detected := err == nil
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return nil
			case errors.Is(err, collector.ErrSourceClosed):
				if m.metrics != nil {
					m.metrics.ReadErrors.Add(1)
				}
				return fmt.Errorf("monitor: %w", err)
			}
			log.Printf("Monitor: %v", err)
			if m.metrics != nil {
				m.metrics.DetectorErrors.Add(1)
			}
			if frame == nil {
				continue
			}
		}
		if m.metrics != nil {
			m.metrics.FramesRead.Add(1)
		}

		m.processor.Process(frame.Timestamp, frame.Present)

		if m.metrics != nil {
			if detected {
				m.metrics.ObserveFrame(frame.Latency, frame.Present)
			}
			m.metrics.ObserveState(m.processor.Snapshot())
		}

		if m.preview == nil {
			continue
		}
		quit, err := m.show(frame)
		if err != nil {
			log.Printf("Monitor: preview failed on frame %d: %v", frame.Seq, err)
		}
		if quit {
			log.Println("Monitor: quit requested")
			return nil
		}
	}
}

func (m *Monitor) show(frame *collector.Frame) (bool, error) {
	if frame.Image == nil {
		return false, nil
	}
	canvas := drawable(frame.Image)
	overlay.Draw(canvas, frame.Detections, m.palette)
	overlay.Banner(canvas, "")
	return m.preview.Show(canvas)
}

// drawable returns img itself when it can be drawn on, or an RGBA copy.
func drawable(img image.Image) draw.Image {
	if d, ok := img.(draw.Image); ok {
		return d
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return rgba
}
