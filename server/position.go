package main

import "math"

// Ordering keys are sparse floats: new items land STEP apart so later
// drags can bisect the gap without renumbering siblings.
const posStep = 1000

// minPosGap is the precision floor: once two neighbors are closer than
// this, midpoints stop being trustworthy and we append instead.
const minPosGap = 1e-6

// tailPos returns the key for an item appended after last.
func tailPos(last *float64) float64 {
	if last == nil || math.IsNaN(*last) {
		return posStep
	}
	return *last + posStep
}

// betweenPos returns a key strictly between prev and next when the gap
// allows it. With one neighbor missing it places the item before/after
// everything; with the gap exhausted it falls back to prev+posStep,
// accepting a tie-like collision that reads resolve by id order.
func betweenPos(prev, next *float64) float64 {
	switch {
	case prev == nil && next == nil:
		return posStep
	case prev == nil:
		return *next - posStep
	case next == nil:
		return *prev + posStep
	}
	mid := (*prev + *next) / 2
	if !isFinite(mid) || math.Abs(*next-*prev) < minPosGap {
		return *prev + posStep
	}
	return mid
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
