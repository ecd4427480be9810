package history

import (
	"sync"
	"time"
)

// DataPoint is one frame in which a category was detected.
type DataPoint struct {
	Timestamp  time.Time
	Confidence float64
}

// Summary aggregates the data points of one detection streak.
type Summary struct {
	Frames         int
	PeakConfidence float64
	MeanConfidence float64
}

type DetectionHistoryBuffer struct {
	sync.RWMutex
	buffers       map[string][]DataPoint // category -> []DataPoint
	maxDataPoints int                    // Max data points to keep per category
}

func NewDetectionHistoryBuffer(maxDataPoints int) *DetectionHistoryBuffer {
	if maxDataPoints < 2 {
		maxDataPoints = 2
	}
	return &DetectionHistoryBuffer{
		buffers:       make(map[string][]DataPoint),
		maxDataPoints: maxDataPoints,
	}
}

// CapacityFor sizes a buffer so that it holds at least one full detection window
// at the given frame rate. Unknown or nonsensical frame rates fall back to 30 FPS.
func CapacityFor(window time.Duration, fps float64) int {
	if fps <= 0 {
		fps = 30
	}
	if window <= 0 {
		window = time.Second
	}
	n := int(window.Seconds()*fps) + 1 // +1 so the streak's first frame is kept
	if n < 2 {
		n = 2
	}
	return n
}

// AddDataPoint records a detection for a category.
// It evicts the oldest point if the buffer for that category exceeds maxDataPoints.
func (hb *DetectionHistoryBuffer) AddDataPoint(category string, confidence float64, timestamp time.Time) {
	hb.Lock()
	defer hb.Unlock()

	points, exists := hb.buffers[category]
	if !exists {
		points = make([]DataPoint, 0, hb.maxDataPoints)
	}

	points = append(points, DataPoint{Timestamp: timestamp, Confidence: confidence})

	if len(points) > hb.maxDataPoints {
		points = points[len(points)-hb.maxDataPoints:]
	}
	hb.buffers[category] = points
}

// GetDataPointsForDuration returns the points of a category whose Timestamp lies
// within [now - duration, now], in chronological order. A zero duration returns
// only the latest point.
func (hb *DetectionHistoryBuffer) GetDataPointsForDuration(category string, duration time.Duration, now time.Time) []DataPoint {
	hb.RLock()
	defer hb.RUnlock()

	points, exists := hb.buffers[category]
	if !exists || len(points) == 0 {
		return nil
	}

	if duration == 0 {
		return []DataPoint{points[len(points)-1]}
	}

	startTime := now.Add(-duration)
	var result []DataPoint
	for i := len(points) - 1; i >= 0; i-- {
		dp := points[i]
		if dp.Timestamp.Before(startTime) {
			break
		}
		if dp.Timestamp.After(now) {
			continue
		}
		result = append(result, dp)
	}
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

// Summarize computes frame count, peak and mean confidence over points.
func Summarize(points []DataPoint) Summary {
	if len(points) == 0 {
		return Summary{}
	}
	s := Summary{Frames: len(points)}
	sum := 0.0
	for _, dp := range points {
		sum += dp.Confidence
		if dp.Confidence > s.PeakConfidence {
			s.PeakConfidence = dp.Confidence
		}
	}
	s.MeanConfidence = sum / float64(len(points))
	return s
}
