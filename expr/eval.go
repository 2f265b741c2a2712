package expr

import (
	"fmt"
	"math"
)

// Eval computes the value of a bound tree at the point x, indexed by bound
// variable handles. Arithmetic follows IEEE 754: division by zero, log of a
// negative and friends propagate as Inf or NaN rather than errors.
func Eval(root *Node, x []float64) (float64, error) {
	if root == nil {
		return 0, fmt.Errorf("%w: nil node", ErrUnexpectedNode)
	}
	switch root.Kind {
	case KindConstant:
		return root.Value, nil
	case KindRef:
		if !root.V.Valid() {
			return 0, fmt.Errorf("eval: x%d not bound", root.Index)
		}
		i := root.V.Index()
		if i < 0 || i >= len(x) {
			return 0, fmt.Errorf("eval: variable %d out of range (point has %d entries)", i, len(x))
		}
		return x[i], nil
	case KindCall:
		return evalCall(root, x)
	default:
		return 0, fmt.Errorf("%w: kind %d", ErrUnexpectedNode, root.Kind)
	}
}

func evalCall(n *Node, x []float64) (float64, error) {
	switch n.Op {
	case OpAdd:
		if len(n.Args) == 0 {
			return 0, arityError(n, "at least 1")
		}
		var s float64
		for _, a := range n.Args {
			v, err := Eval(a, x)
			if err != nil {
				return 0, err
			}
			s += v
		}
		return s, nil
	case OpMul:
		if len(n.Args) == 0 {
			return 0, arityError(n, "at least 1")
		}
		p := 1.0
		for _, a := range n.Args {
			v, err := Eval(a, x)
			if err != nil {
				return 0, err
			}
			p *= v
		}
		return p, nil
	case OpSub:
		a, b, err := binaryArgs(n, x)
		if err != nil {
			return 0, err
		}
		return a - b, nil
	case OpDiv:
		a, b, err := binaryArgs(n, x)
		if err != nil {
			return 0, err
		}
		return a / b, nil
	case OpPow:
		a, b, err := binaryArgs(n, x)
		if err != nil {
			return 0, err
		}
		return math.Pow(a, b), nil
	case OpNeg:
		v, err := unaryArg(n, x)
		if err != nil {
			return 0, err
		}
		return -v, nil
	case OpSqrt:
		v, err := unaryArg(n, x)
		if err != nil {
			return 0, err
		}
		return math.Sqrt(v), nil
	case OpExp:
		v, err := unaryArg(n, x)
		if err != nil {
			return 0, err
		}
		return math.Exp(v), nil
	case OpLog:
		v, err := unaryArg(n, x)
		if err != nil {
			return 0, err
		}
		return math.Log(v), nil
	case OpSin:
		v, err := unaryArg(n, x)
		if err != nil {
			return 0, err
		}
		return math.Sin(v), nil
	case OpCos:
		v, err := unaryArg(n, x)
		if err != nil {
			return 0, err
		}
		return math.Cos(v), nil
	case OpAbs:
		v, err := unaryArg(n, x)
		if err != nil {
			return 0, err
		}
		return math.Abs(v), nil
	default:
		return 0, fmt.Errorf("%w: op %d", ErrUnexpectedNode, n.Op)
	}
}

func unaryArg(n *Node, x []float64) (float64, error) {
	if len(n.Args) != 1 {
		return 0, arityError(n, "1")
	}
	return Eval(n.Args[0], x)
}

func binaryArgs(n *Node, x []float64) (float64, float64, error) {
	if len(n.Args) != 2 {
		return 0, 0, arityError(n, "2")
	}
	a, err := Eval(n.Args[0], x)
	if err != nil {
		return 0, 0, err
	}
	b, err := Eval(n.Args[1], x)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func arityError(n *Node, want string) error {
	return fmt.Errorf("%w: %s expects %s argument(s), got %d", ErrUnexpectedNode, n.Op, want, len(n.Args))
}

// degNonLinear is the degree assigned to anything that is not polynomial.
const degNonLinear = math.MaxInt32 / 4

// IsAffine reports whether the tree has degree at most one in its variable
// references. Detection is structural, constants are not folded: 2*x is
// affine, x*x is not, and x^(1+1) is conservatively treated as nonlinear.
func IsAffine(root *Node) bool {
	if root == nil {
		return true
	}
	return degree(root) <= 1
}

func degree(n *Node) int {
	if n == nil {
		return degNonLinear
	}
	switch n.Kind {
	case KindConstant:
		return 0
	case KindRef:
		return 1
	case KindCall:
		return callDegree(n)
	default:
		return degNonLinear
	}
}

func callDegree(n *Node) int {
	switch n.Op {
	case OpAdd, OpSub:
		d := 0
		for _, a := range n.Args {
			if ad := degree(a); ad > d {
				d = ad
			}
		}
		return d
	case OpNeg:
		if len(n.Args) != 1 {
			return degNonLinear
		}
		return degree(n.Args[0])
	case OpMul:
		d := 0
		for _, a := range n.Args {
			d += degree(a)
			if d >= degNonLinear {
				return degNonLinear
			}
		}
		return d
	case OpDiv:
		if len(n.Args) != 2 || degree(n.Args[1]) != 0 {
			return degNonLinear
		}
		return degree(n.Args[0])
	case OpPow:
		if len(n.Args) != 2 {
			return degNonLinear
		}
		base, exp := n.Args[0], n.Args[1]
		if exp == nil || exp.Kind != KindConstant {
			return degNonLinear
		}
		k := exp.Value
		if k != math.Trunc(k) || k < 0 || k > 64 {
			return degNonLinear
		}
		bd := degree(base)
		if bd >= degNonLinear {
			return degNonLinear
		}
		if d := bd * int(k); d < degNonLinear {
			return d
		}
		return degNonLinear
	default:
		// transcendental of anything non-constant is nonlinear
		if len(n.Args) == 1 && degree(n.Args[0]) == 0 {
			return 0
		}
		return degNonLinear
	}
}
