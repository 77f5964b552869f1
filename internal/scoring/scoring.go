// Package scoring computes question points. All functions are pure so a
// final leaderboard can be reproduced from stored answers.
package scoring

import "math"

// maxSpeedBonus is the multiplier earned by an instantaneous answer; it
// decays linearly to zero at the deadline.
const maxSpeedBonus = 0.5

// SpeedFactor returns the multiplier applied for answering quickly:
// 1.5 at elapsed=0, 1.0 at elapsed>=timeLimit.
func SpeedFactor(timeLimitSec int, elapsedMs int64) float64 {
	if timeLimitSec <= 0 {
		return 1
	}
	limitMs := float64(timeLimitSec) * 1000
	remaining := 1 - float64(elapsedMs)/limitMs
	if remaining < 0 {
		remaining = 0
	}
	return 1 + remaining*maxSpeedBonus
}

// SingleSelect scores a single-choice answer. Incorrect answers score 0;
// correct answers earn basePoints scaled by the speed factor.
func SingleSelect(basePoints, timeLimitSec int, elapsedMs int64, correct bool) int {
	if !correct {
		return 0
	}
	return int(math.Round(float64(basePoints) * SpeedFactor(timeLimitSec, elapsedMs)))
}

// MultiSelect scores a multi-choice answer with partial credit. Wrong
// selections cancel correct ones, so selecting everything scores 0.
func MultiSelect(basePoints, timeLimitSec int, elapsedMs int64, totalCorrect, correctSelected, wrongSelected int) int {
	if totalCorrect <= 0 {
		return 0
	}
	ratio := float64(correctSelected-wrongSelected) / float64(totalCorrect)
	if ratio <= 0 {
		return 0
	}
	return int(math.Round(float64(basePoints) * ratio * SpeedFactor(timeLimitSec, elapsedMs)))
}

// SelectionBreakdown splits a selection against the correct set.
func SelectionBreakdown(selected, correct []uint) (correctSelected, wrongSelected int) {
	correctSet := make(map[uint]bool, len(correct))
	for _, id := range correct {
		correctSet[id] = true
	}
	for _, id := range selected {
		if correctSet[id] {
			correctSelected++
		} else {
			wrongSelected++
		}
	}
	return correctSelected, wrongSelected
}

// IsFullyCorrect reports whether the selected set equals the correct set
// exactly. Used for display, not for scoring.
func IsFullyCorrect(selected, correct []uint) bool {
	if len(selected) != len(correct) {
		return false
	}
	c, w := SelectionBreakdown(selected, correct)
	return w == 0 && c == len(correct)
}
