package core

import (
	"fmt"
	"math"
	"math/big"
)

var hundred = big.NewInt(100)

// Percentage returns floor(100 * count / total) and 0 for an empty total.
// Options are computed independently and are not normalised to sum to 100.
func Percentage(count, total *big.Int) uint64 {
	if count == nil || total == nil || total.Sign() <= 0 || count.Sign() <= 0 {
		return 0
	}
	p := new(big.Int).Mul(count, hundred)
	p.Quo(p, total)
	if !p.IsUint64() {
		return math.MaxUint64
	}
	return p.Uint64()
}

// FormatPercentage renders a percentage with one decimal, e.g. "60.0".
func FormatPercentage(p uint64) string {
	return fmt.Sprintf("%.1f", float64(p))
}

// Tally is a read snapshot of one proposal's vote counts.
type Tally struct {
	Counts [NumChoices]*big.Int
	Total  *big.Int
}

// NewTally copies counts and total, nil entries read as zero.
func NewTally(counts [NumChoices]*big.Int, total *big.Int) Tally {
	var t Tally
	for i, c := range counts {
		t.Counts[i] = cloneOrZero(c)
	}
	t.Total = cloneOrZero(total)
	return t
}

func (t Tally) Count(c VoteChoice) *big.Int {
	if !c.Valid() || t.Counts[c] == nil {
		return new(big.Int)
	}
	return t.Counts[c]
}

func (t Tally) Percentage(c VoteChoice) uint64 {
	return Percentage(t.Count(c), t.Total)
}

func (t Tally) Percentages() [NumChoices]uint64 {
	var out [NumChoices]uint64
	for _, c := range AllChoices {
		out[c] = t.Percentage(c)
	}
	return out
}

// Sum adds the per choice counts.
func (t Tally) Sum() *big.Int {
	sum := new(big.Int)
	for _, c := range t.Counts {
		if c != nil {
			sum.Add(sum, c)
		}
	}
	return sum
}

// Consistent reports whether the per choice counts add up to the total.
func (t Tally) Consistent() bool {
	total := t.Total
	if total == nil {
		total = new(big.Int)
	}
	return t.Sum().Cmp(total) == 0
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
