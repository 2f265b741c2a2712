package model

import (
	"fmt"
	"io"
	"math"

	"github.com/tamarack-opt/tamarack/internal/ioutils"
)

// VarKind is the declared type of a variable.
type VarKind uint8

const (
	Continuous VarKind = iota
	Integer
	Binary
)

func (k VarKind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// Typing is the per-variable type information of a problem, with the derived
// discrete-variable index maps used by the heuristic and the exact search.
//
// DiscreteToVar maps the dense discrete ordinal d to its variable index;
// VarToDiscrete maps a variable index to 1+d, with 0 meaning continuous. Both
// maps cover exactly the discrete variables, in increasing index order.
type Typing struct {
	Kinds []VarKind

	NbContinuous int
	NbInteger    int
	NbBinary     int

	DiscreteToVar []int
	VarToDiscrete []int
}

// NewTyping derives the typing of p from p.Kinds (all-continuous when empty)
// and clips the bounds of binary variables to [0,1] in place. A binary
// variable whose declared bounds exclude both 0 and 1 is rejected.
func NewTyping(p *Problem) (*Typing, error) {
	kinds := p.Kinds
	if len(kinds) == 0 {
		kinds = make([]VarKind, p.NbVariables)
	}
	if len(kinds) != p.NbVariables {
		return nil, fmt.Errorf("%w: kinds sized %d, want %d", ErrInvalidProblem, len(kinds), p.NbVariables)
	}

	t := &Typing{
		Kinds:         make([]VarKind, p.NbVariables),
		VarToDiscrete: make([]int, p.NbVariables),
	}
	copy(t.Kinds, kinds)

	for i, k := range t.Kinds {
		switch k {
		case Continuous:
			t.NbContinuous++
		case Integer:
			t.NbInteger++
		case Binary:
			t.NbBinary++
			p.VarLower[i] = math.Max(p.VarLower[i], 0)
			p.VarUpper[i] = math.Min(p.VarUpper[i], 1)
			if p.VarLower[i] > p.VarUpper[i] {
				return nil, fmt.Errorf("%w: binary variable %d has empty bounds after clipping", ErrInvalidProblem, i)
			}
		default:
			return nil, fmt.Errorf("%w: variable %d has unknown kind %d", ErrInvalidProblem, i, k)
		}
		if k != Continuous {
			t.VarToDiscrete[i] = len(t.DiscreteToVar) + 1
			t.DiscreteToVar = append(t.DiscreteToVar, i)
		}
	}
	return t, nil
}

// NbDiscrete returns the number of integer and binary variables.
func (t *Typing) NbDiscrete() int {
	return len(t.DiscreteToVar)
}

// Discrete reports whether variable i is integer or binary.
func (t *Typing) Discrete(i int) bool {
	return t.Kinds[i] != Continuous
}

// WriteTo serializes the typing. Kinds and the discrete index map are written
// as compressed integer sections; ascending index maps compress very well.
func (t *Typing) WriteTo(w io.Writer) (int64, error) {
	wc := ioutils.WriterCounter{W: w}

	kinds := make([]uint32, len(t.Kinds))
	for i, k := range t.Kinds {
		kinds[i] = uint32(k)
	}
	buf, err := ioutils.CompressAndWriteUints32(&wc, kinds, nil)
	if err != nil {
		return wc.N, err
	}

	d2v := make([]uint32, len(t.DiscreteToVar))
	for i, v := range t.DiscreteToVar {
		d2v[i] = uint32(v)
	}
	if _, err := ioutils.CompressAndWriteUints32(&wc, d2v, buf); err != nil {
		return wc.N, err
	}
	return wc.N, nil
}

// ReadFrom deserializes a typing written by WriteTo, rebuilding the derived
// counts and the inverse map.
func (t *Typing) ReadFrom(r io.Reader) (int64, error) {
	rc := ioutils.ReaderCounter{R: r}

	_, kinds, err := ioutils.ReadAndDecompressUints32(&rc)
	if err != nil {
		return rc.N, err
	}
	_, d2v, err := ioutils.ReadAndDecompressUints32(&rc)
	if err != nil {
		return rc.N, err
	}

	*t = Typing{
		Kinds:         make([]VarKind, len(kinds)),
		VarToDiscrete: make([]int, len(kinds)),
		DiscreteToVar: make([]int, 0, len(d2v)),
	}
	for i, k := range kinds {
		switch VarKind(k) {
		case Continuous:
			t.NbContinuous++
		case Integer:
			t.NbInteger++
		case Binary:
			t.NbBinary++
		default:
			return rc.N, fmt.Errorf("corrupted typing: unknown kind %d", k)
		}
		t.Kinds[i] = VarKind(k)
	}
	for d, v := range d2v {
		if int(v) >= len(kinds) || t.Kinds[v] == Continuous {
			return rc.N, fmt.Errorf("corrupted typing: discrete map entry %d -> %d", d, v)
		}
		t.VarToDiscrete[v] = d + 1
		t.DiscreteToVar = append(t.DiscreteToVar, int(v))
	}
	if len(t.DiscreteToVar) != t.NbInteger+t.NbBinary {
		return rc.N, fmt.Errorf("corrupted typing: %d discrete entries for %d discrete kinds",
			len(t.DiscreteToVar), t.NbInteger+t.NbBinary)
	}
	return rc.N, nil
}
