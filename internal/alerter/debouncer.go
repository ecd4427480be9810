package alerter

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattmezza/alertai/internal/state"
)

// ErrInvalidDuration is matched by every ConfigError.
var ErrInvalidDuration = errors.New("invalid debouncer duration")

// ConfigError reports a debouncer threshold that cannot be used.
type ConfigError struct {
	Field string
	Value time.Duration
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s must be >= 0, got %s", e.Field, e.Value)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidDuration
}

// CategoryState tracks continuous detection and the last alert of one category.
type CategoryState struct {
	IsActive    bool
	ActiveSince time.Time // Only meaningful while IsActive
	LastAlertAt time.Time // Zero value means the category never fired
}

// Debouncer turns per-frame detection flags into rate-limited alert decisions.
//
// A category fires once it has been detected continuously for the required
// duration, and then at most once per cooldown for as long as detection continues.
// The debouncer never reads the clock: callers pass the frame time, which must not
// go backwards for a given category.
type Debouncer struct {
	mu       sync.Mutex
	required time.Duration
	cooldown time.Duration
	states   map[string]*CategoryState
}

// NewDebouncer creates a debouncer with the given thresholds.
func NewDebouncer(required, cooldown time.Duration) (*Debouncer, error) {
	d := &Debouncer{states: make(map[string]*CategoryState)}
	if err := d.Configure(required, cooldown); err != nil {
		return nil, err
	}
	return d, nil
}

// Configure replaces both thresholds. Existing category state is kept, so the
// new values only apply to later calls to Update.
func (d *Debouncer) Configure(required, cooldown time.Duration) error {
	if required < 0 {
		return &ConfigError{Field: "required active duration", Value: required}
	}
	if cooldown < 0 {
		return &ConfigError{Field: "cooldown duration", Value: cooldown}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.required = required
	d.cooldown = cooldown
	return nil
}

// Thresholds returns the current required active duration and cooldown.
func (d *Debouncer) Thresholds() (required, cooldown time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.required, d.cooldown
}

// Update records whether category was detected in the frame taken at now and
// reports whether an alert should fire for it.
func (d *Debouncer) Update(category string, detected bool, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.states[category]
	if !ok {
		st = &CategoryState{}
		d.states[category] = st
	}

	switch {
	case detected && !st.IsActive:
		st.IsActive = true
		st.ActiveSince = now
	case !detected && st.IsActive:
		st.IsActive = false
	}

	if !st.IsActive {
		return false
	}
	if now.Sub(st.ActiveSince) < d.required {
		return false
	}
	if !st.LastAlertAt.IsZero() && now.Sub(st.LastAlertAt) < d.cooldown {
		return false
	}

	st.LastAlertAt = now
	return true
}

// State returns a copy of the state of category, if it was ever observed.
func (d *Debouncer) State(category string) (CategoryState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.states[category]
	if !ok {
		return CategoryState{}, false
	}
	return *st, true
}

// Snapshot copies the state of every observed category.
func (d *Debouncer) Snapshot() state.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := make(state.Snapshot, len(d.states))
	for name, st := range d.states {
		status := state.CategoryStatus{Active: st.IsActive, LastAlertAt: st.LastAlertAt}
		if st.IsActive {
			status.ActiveSince = st.ActiveSince
		}
		snap[name] = status
	}
	return snap
}
