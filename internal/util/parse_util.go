package util

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationRegex = regexp.MustCompile(`^(\d+(?:\.\d+)?)(ms|s|m|h)?$`)

// ParseDurationString converts strings like "1.5s", "500ms", "5m", "1h" into time.Duration.
// A bare number is read as seconds, which is how the detection time and cooldown were
// always expressed on the command line.
func ParseDurationString(durationStr string) (time.Duration, error) {
	trimmed := strings.ToLower(strings.TrimSpace(durationStr))
	if trimmed == "" {
		return 0, nil
	}
	if strings.HasPrefix(trimmed, "-") {
		return 0, fmt.Errorf("duration must not be negative: %s", durationStr)
	}

	matches := durationRegex.FindStringSubmatch(trimmed)
	if len(matches) != 3 {
		return 0, fmt.Errorf("invalid duration string format: %s. Use '1.5s', '500ms', '5m', '1h'", durationStr)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration numeric value: %s", matches[1])
	}

	var durationUnit time.Duration
	switch matches[2] {
	case "ms":
		durationUnit = time.Millisecond
	case "", "s":
		durationUnit = time.Second
	case "m":
		durationUnit = time.Minute
	case "h":
		durationUnit = time.Hour
	default:
		return 0, fmt.Errorf("invalid duration unit: %s", matches[2])
	}

	return SecondsToDuration(value * durationUnit.Seconds())
}

// SecondsToDuration converts a (possibly fractional) number of seconds into a Duration,
// rounding to the nearest millisecond.
func SecondsToDuration(seconds float64) (time.Duration, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, fmt.Errorf("invalid duration: %v seconds", seconds)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("duration must not be negative: %v seconds", seconds)
	}
	ms := math.Round(seconds * 1000)
	if ms > float64(math.MaxInt64/int64(time.Millisecond)) {
		return 0, fmt.Errorf("duration too large: %v seconds", seconds)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
