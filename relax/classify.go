package relax

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/tamarack-opt/tamarack/model"
)

// Classification is the per-constraint linearity report of a relaxation.
// Immutable once built; classifying the same model twice yields equal
// results.
type Classification struct {
	linear      *bitset.BitSet
	nbLinear    int
	nbNonLinear int
}

// Classify asks the evaluator for the linearity of each attached constraint.
// It requires a built relaxation, which is the only way a Model exists, so
// the "classify before build" misuse is unrepresentable; the constraint
// count is still cross-checked against the evaluator.
func Classify(m *Model, ev model.Evaluator) (*Classification, error) {
	c := &Classification{linear: bitset.New(uint(m.nbCons))}
	for j := 0; j < m.nbCons; j++ {
		lin, err := ev.ConstraintIsLinear(j)
		if err != nil {
			return nil, fmt.Errorf("classify constraint %d: %w", j, err)
		}
		if lin {
			c.linear.Set(uint(j))
			c.nbLinear++
		} else {
			c.nbNonLinear++
		}
	}
	return c, nil
}

// IsLinear reports whether constraint j was marked linear.
func (c *Classification) IsLinear(j int) bool {
	return c.linear.Test(uint(j))
}

// NbLinear returns the number of linear constraints.
func (c *Classification) NbLinear() int { return c.nbLinear }

// NbNonLinear returns the number of nonlinear constraints.
func (c *Classification) NbNonLinear() int { return c.nbNonLinear }
