package service

import (
	"time"
)

// AlignSlotStart truncates `t` down to the wall-clock slot boundary for the
// given resolution (15 or 60 minutes).
func AlignSlotStart(t time.Time, resolutionSeconds int) time.Time {
	minute := 0
	if resolutionSeconds < 3600 {
		step := resolutionSeconds / 60
		minute = t.Minute() - t.Minute()%step
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, t.Location())
}

// NextSlotStart returns the start of the next slot strictly after `now`.
// Slot arithmetic around DST changes can produce a boundary at or before
// `now`; in that case the following slot is used instead.
func NextSlotStart(now time.Time, resolutionSeconds int) time.Time {
	res := time.Duration(resolutionSeconds) * time.Second
	next := AlignSlotStart(now, resolutionSeconds).Add(res)
	for !next.After(now) {
		next = next.Add(res)
	}
	return next
}

// WindowSlotCount returns the number of slots needed to cover `hours`
// wall-clock hours from `start`. A DST transition inside the window shifts
// the wall clock by one hour; the count is adjusted explicitly so the
// arrays stay aligned to wall-clock slot boundaries instead of relying on
// naive hour arithmetic.
func WindowSlotCount(start time.Time, hours, resolutionSeconds int) int {
	slots := hours * 3600 / resolutionSeconds
	_, startOffset := start.Zone()
	_, endOffset := start.Add(time.Duration(hours) * time.Hour).Zone()
	slots += (startOffset - endOffset) / resolutionSeconds
	return slots
}
