package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignSlotStart(t *testing.T) {
	base := time.Date(2026, 6, 15, 10, 7, 33, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC), AlignSlotStart(base, 3600))
	assert.Equal(t, time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC), AlignSlotStart(base, 900))

	later := time.Date(2026, 6, 15, 10, 52, 1, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 6, 15, 10, 45, 0, 0, time.UTC), AlignSlotStart(later, 900))
}

func TestNextSlotStartNeverInPast(t *testing.T) {
	now := time.Date(2026, 6, 15, 10, 7, 0, 0, time.UTC)
	next := NextSlotStart(now, 900)
	assert.Equal(t, time.Date(2026, 6, 15, 10, 15, 0, 0, time.UTC), next)
	assert.True(t, next.After(now))

	// exactly on a boundary the next slot is the following one
	onBoundary := time.Date(2026, 6, 15, 10, 15, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC), NextSlotStart(onBoundary, 900))

	hourly := NextSlotStart(now, 3600)
	assert.Equal(t, time.Date(2026, 6, 15, 11, 0, 0, 0, time.UTC), hourly)
}

func TestWindowSlotCountDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// no transition
	plain := time.Date(2026, 6, 1, 12, 0, 0, 0, berlin)
	assert.Equal(t, 192, WindowSlotCount(plain, 48, 900))
	assert.Equal(t, 48, WindowSlotCount(plain, 48, 3600))

	// spring forward (2026-03-29 02:00 -> 03:00): one wall-clock hour vanishes
	spring := time.Date(2026, 3, 28, 12, 0, 0, 0, berlin)
	assert.Equal(t, 188, WindowSlotCount(spring, 48, 900))
	assert.Equal(t, 47, WindowSlotCount(spring, 48, 3600))

	// fall back (2026-10-25 03:00 -> 02:00): one wall-clock hour repeats
	fall := time.Date(2026, 10, 24, 12, 0, 0, 0, berlin)
	assert.Equal(t, 196, WindowSlotCount(fall, 48, 900))
	assert.Equal(t, 49, WindowSlotCount(fall, 48, 3600))
}
