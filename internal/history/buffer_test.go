package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func TestCapacityFor(t *testing.T) {
	testCases := []struct {
		name     string
		window   time.Duration
		fps      float64
		expected int
	}{
		{name: "default_detection_time", window: 1500 * time.Millisecond, fps: 30, expected: 46},
		{name: "unknown_fps_defaults_to_30", window: time.Second, fps: 0, expected: 31},
		{name: "zero_window_uses_one_second", window: 0, fps: 10, expected: 11},
		{name: "minimum_two_points", window: 10 * time.Millisecond, fps: 1, expected: 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CapacityFor(tc.window, tc.fps))
		})
	}
}

func TestNewDetectionHistoryBufferMinimum(t *testing.T) {
	buffer := NewDetectionHistoryBuffer(0)
	assert.Equal(t, 2, buffer.maxDataPoints)
	assert.NotNil(t, buffer.buffers)
}

func TestAddDataPointEviction(t *testing.T) {
	buffer := NewDetectionHistoryBuffer(3)

	for i := 0; i < 5; i++ {
		buffer.AddDataPoint("drowsy", float64(i)/10, t0.Add(time.Duration(i)*100*time.Millisecond))
	}

	points := buffer.buffers["drowsy"]
	require.Len(t, points, 3)
	assert.Equal(t, 0.2, points[0].Confidence)
	assert.Equal(t, 0.4, points[2].Confidence)
}

func TestGetDataPointsForDuration(t *testing.T) {
	buffer := NewDetectionHistoryBuffer(20)
	for i := 0; i <= 5; i++ {
		buffer.AddDataPoint("drowsy", 0.5+float64(i)/20, t0.Add(time.Duration(i)*500*time.Millisecond))
	}
	end := t0.Add(2500 * time.Millisecond)

	testCases := []struct {
		name          string
		duration      time.Duration
		queryTime     time.Time
		expectedCount int
	}{
		{name: "inclusive_window", duration: time.Second, queryTime: end, expectedCount: 3},
		{name: "whole_history", duration: time.Hour, queryTime: end, expectedCount: 6},
		{name: "zero_duration_returns_latest", duration: 0, queryTime: end, expectedCount: 1},
		{name: "past_query_time_excludes_later_points", duration: 500 * time.Millisecond, queryTime: t0.Add(time.Second), expectedCount: 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			points := buffer.GetDataPointsForDuration("drowsy", tc.duration, tc.queryTime)
			assert.Len(t, points, tc.expectedCount)
			for i := 1; i < len(points); i++ {
				assert.True(t, points[i-1].Timestamp.Before(points[i].Timestamp), "points should be chronological")
			}
		})
	}

	assert.Nil(t, buffer.GetDataPointsForDuration("unknown", time.Second, end))
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	s := Summarize([]DataPoint{
		{Timestamp: t0, Confidence: 0.5},
		{Timestamp: t0.Add(time.Second), Confidence: 0.9},
		{Timestamp: t0.Add(2 * time.Second), Confidence: 0.7},
	})
	assert.Equal(t, 3, s.Frames)
	assert.Equal(t, 0.9, s.PeakConfidence)
	assert.InDelta(t, 0.7, s.MeanConfidence, 1e-9)
}
