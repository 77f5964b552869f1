// Package powerup holds the rules for the three limited-use modifiers.
// Budgets are per player per game; each type can be used at most once per
// question and usages are never undone.
package powerup

import "github.com/szdorah/Quiz0r-sub001/internal/apperr"

type Type string

const (
	TypeHint   Type = "hint"
	TypeCopy   Type = "copy"
	TypeDouble Type = "double"
)

// DoubleMultiplier is applied to the question score after the speed and
// partial-credit computation.
const DoubleMultiplier = 2

func (t Type) Valid() bool {
	return t == TypeHint || t == TypeCopy || t == TypeDouble
}

// Budget is one player's remaining uses for a game.
type Budget struct {
	Hint   int `json:"hint"`
	Copy   int `json:"copy"`
	Double int `json:"double"`
}

func (b Budget) Remaining(t Type) int {
	switch t {
	case TypeHint:
		return b.Hint
	case TypeCopy:
		return b.Copy
	case TypeDouble:
		return b.Double
	}
	return 0
}

// Consume decrements the budget for t. It fails with BudgetExhausted when
// no uses remain.
func (b *Budget) Consume(t Type) error {
	switch t {
	case TypeHint:
		if b.Hint <= 0 {
			return apperr.New(apperr.KindBudgetExhausted, "no hint uses remaining")
		}
		b.Hint--
	case TypeCopy:
		if b.Copy <= 0 {
			return apperr.New(apperr.KindBudgetExhausted, "no copy uses remaining")
		}
		b.Copy--
	case TypeDouble:
		if b.Double <= 0 {
			return apperr.New(apperr.KindBudgetExhausted, "no double-points uses remaining")
		}
		b.Double--
	default:
		return apperr.Newf(apperr.KindValidation, "unknown power-up type %q", t)
	}
	return nil
}

// ApplyDouble doubles points when doubled is set. Kept here so the
// multiplier is defined next to the budget it consumes.
func ApplyDouble(points int, doubled bool) int {
	if doubled {
		return points * DoubleMultiplier
	}
	return points
}
