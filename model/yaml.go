package model

import (
	"fmt"
	"io"
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tamarack-opt/tamarack/expr"
)

// ParseYAML reads a problem description like
//
//	sense: minimize
//	variables:
//	  - {name: x, lower: 0, upper: 10, kind: integer}
//	  - {name: y, lower: 0, upper: 4, start: 1}
//	objective:
//	  terms:
//	    - {coef: 1, vars: [x]}
//	    - {coef: 2, vars: [y], pow: [2]}
//	constraints:
//	  - {lower: 1, terms: [{coef: 1, vars: [x]}, {coef: 1, vars: [y]}]}
//
// Terms are coef * product of (possibly powered) variables, so linear and
// polynomial problems are expressible. Missing bounds are infinite, missing
// kinds continuous, missing names x0, x1, ... The returned problem carries a
// GraphEvaluator and passes Validate.
func ParseYAML(r io.Reader) (*Problem, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var y yamlProblem
	if err := dec.Decode(&y); err != nil {
		return nil, fmt.Errorf("parse problem: %w", err)
	}
	return y.problem()
}

type yamlProblem struct {
	Sense       string           `yaml:"sense"`
	Variables   []yamlVariable   `yaml:"variables"`
	Objective   yamlExpr         `yaml:"objective"`
	Constraints []yamlConstraint `yaml:"constraints"`
}

type yamlVariable struct {
	Name  string   `yaml:"name"`
	Lower *float64 `yaml:"lower"`
	Upper *float64 `yaml:"upper"`
	Kind  string   `yaml:"kind"`
	Start *float64 `yaml:"start"`
}

type yamlExpr struct {
	Constant float64    `yaml:"constant"`
	Terms    []yamlTerm `yaml:"terms"`
}

type yamlConstraint struct {
	Lower *float64 `yaml:"lower"`
	Upper *float64 `yaml:"upper"`
	Expr  yamlExpr `yaml:",inline"`
}

type yamlTerm struct {
	Coef float64  `yaml:"coef"`
	Vars []string `yaml:"vars"`
	Pow  []int    `yaml:"pow"`
}

func (y *yamlProblem) problem() (*Problem, error) {
	if len(y.Variables) == 0 {
		return nil, fmt.Errorf("%w: no variables", ErrInvalidProblem)
	}

	sense, err := parseSense(y.Sense)
	if err != nil {
		return nil, err
	}

	n := len(y.Variables)
	p := &Problem{
		NbVariables:   n,
		NbConstraints: len(y.Constraints),
		VarLower:      make([]float64, n),
		VarUpper:      make([]float64, n),
		ConsLower:     make([]float64, len(y.Constraints)),
		ConsUpper:     make([]float64, len(y.Constraints)),
		Sense:         sense,
		Kinds:         make([]VarKind, n),
		Names:         make([]string, n),
	}

	index := make(map[string]int, n)
	anyStart := false
	for i, v := range y.Variables {
		name := v.Name
		if name == "" {
			name = fmt.Sprintf("x%d", i)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate variable %q", ErrInvalidProblem, name)
		}
		index[name] = i
		p.Names[i] = name
		p.VarLower[i] = boundOr(v.Lower, math.Inf(-1))
		p.VarUpper[i] = boundOr(v.Upper, math.Inf(1))
		if p.Kinds[i], err = parseKind(v.Kind); err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		anyStart = anyStart || v.Start != nil
	}
	if anyStart {
		start := p.DefaultStart()
		for i, v := range y.Variables {
			if v.Start != nil {
				start[i] = *v.Start
			}
		}
		p.Start = start
	}

	objective, err := y.Objective.tree(index)
	if err != nil {
		return nil, fmt.Errorf("objective: %w", err)
	}
	constraints := make([]*expr.Node, len(y.Constraints))
	for j, c := range y.Constraints {
		p.ConsLower[j] = boundOr(c.Lower, math.Inf(-1))
		p.ConsUpper[j] = boundOr(c.Upper, math.Inf(1))
		if constraints[j], err = c.Expr.tree(index); err != nil {
			return nil, fmt.Errorf("constraint %d: %w", j, err)
		}
	}
	p.Evaluator = NewGraphEvaluator(objective, constraints...)

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (e yamlExpr) tree(index map[string]int) (*expr.Node, error) {
	args := make([]*expr.Node, 0, len(e.Terms)+1)
	for i, t := range e.Terms {
		n, err := t.tree(index)
		if err != nil {
			return nil, fmt.Errorf("term %d: %w", i, err)
		}
		args = append(args, n)
	}
	if e.Constant != 0 || len(args) == 0 {
		args = append(args, expr.Constant(e.Constant))
	}
	if len(args) == 1 {
		return args[0], nil
	}
	return expr.Apply(expr.OpAdd, args...), nil
}

func (t yamlTerm) tree(index map[string]int) (*expr.Node, error) {
	if len(t.Pow) != 0 && len(t.Pow) != len(t.Vars) {
		return nil, fmt.Errorf("%d pow entries for %d vars", len(t.Pow), len(t.Vars))
	}
	factors := make([]*expr.Node, 0, len(t.Vars)+1)
	if t.Coef != 1 || len(t.Vars) == 0 {
		factors = append(factors, expr.Constant(t.Coef))
	}
	for i, name := range t.Vars {
		vi, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("unknown variable %q", name)
		}
		f := expr.Ref(vi)
		if len(t.Pow) != 0 && t.Pow[i] != 1 {
			if t.Pow[i] < 0 {
				return nil, fmt.Errorf("negative power %d on %q", t.Pow[i], name)
			}
			f = expr.Apply(expr.OpPow, f, expr.Constant(float64(t.Pow[i])))
		}
		factors = append(factors, f)
	}
	if len(factors) == 1 {
		return factors[0], nil
	}
	return expr.Apply(expr.OpMul, factors...), nil
}

func boundOr(b *float64, def float64) float64 {
	if b == nil {
		return def
	}
	return *b
}

func parseSense(s string) (Sense, error) {
	switch strings.ToLower(s) {
	case "", "min", "minimize":
		return Minimize, nil
	case "max", "maximize":
		return Maximize, nil
	default:
		return 0, fmt.Errorf("%w: unknown sense %q", ErrInvalidProblem, s)
	}
}

func parseKind(s string) (VarKind, error) {
	switch strings.ToLower(s) {
	case "", "continuous":
		return Continuous, nil
	case "int", "integer":
		return Integer, nil
	case "bin", "binary":
		return Binary, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", s)
	}
}
