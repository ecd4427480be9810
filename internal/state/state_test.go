package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActiveCategories(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	snap := Snapshot{
		"yawn":       {Active: true, ActiveSince: now},
		"drowsy":     {Active: true, ActiveSince: now.Add(-time.Second)},
		"distracted": {Active: false, LastAlertAt: now.Add(-time.Minute)},
	}

	assert.Equal(t, []string{"drowsy", "yawn"}, snap.ActiveCategories())
	assert.Empty(t, Snapshot{}.ActiveCategories())
}
