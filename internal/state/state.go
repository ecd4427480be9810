package state

import (
	"sort"
	"time"
)

// CategoryStatus is a read-only copy of one category's debouncer state.
type CategoryStatus struct {
	Active      bool      `json:"active"`
	ActiveSince time.Time `json:"active_since,omitempty"` // Zero unless Active
	LastAlertAt time.Time `json:"last_alert_at,omitempty"` // Zero if never fired
}

// Snapshot stores the status of every category observed so far.
type Snapshot map[string]CategoryStatus // category -> status

// ActiveCategories returns the sorted names of categories currently detected.
func (s Snapshot) ActiveCategories() []string {
	var active []string
	for name, st := range s {
		if st.Active {
			active = append(active, name)
		}
	}
	sort.Strings(active)
	return active
}
