// Package expr implements the expression trees tamarack uses to describe
// objectives and constraints.
//
// A tree is built from three node kinds: constants, references to problem
// variables (by raw index) and operator applications. Before a relaxation is
// solved, every tree is rewritten exactly once by Bind, which resolves raw
// indices into bound variable handles supplied by a Binder. Bound trees are
// immutable and safe for concurrent evaluation.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the variants of a Node.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindConstant
	KindRef
	KindCall
)

// Op identifies the operator of a call node.
type Op uint8

const (
	OpInvalid Op = iota
	OpAdd // n-ary sum
	OpSub // binary difference
	OpMul // n-ary product
	OpDiv // binary quotient
	OpPow // binary power
	OpNeg // unary negation
	OpSqrt
	OpExp
	OpLog
	OpSin
	OpCos
	OpAbs
)

func (op Op) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpPow:
		return "^"
	case OpNeg:
		return "neg"
	case OpSqrt:
		return "sqrt"
	case OpExp:
		return "exp"
	case OpLog:
		return "log"
	case OpSin:
		return "sin"
	case OpCos:
		return "cos"
	case OpAbs:
		return "abs"
	default:
		return "invalid"
	}
}

// Node is one vertex of an expression tree. Exactly one variant is active,
// selected by Kind:
//   - KindConstant: Value
//   - KindRef:      Index (raw), V once bound
//   - KindCall:     Op and Args
type Node struct {
	Kind  Kind
	Value float64
	Index int
	V     Var
	Op    Op
	Args  []*Node
}

// Constant returns a new constant node.
func Constant(v float64) *Node {
	return &Node{Kind: KindConstant, Value: v}
}

// Ref returns a new unbound reference to the variable at the given raw index.
func Ref(index int) *Node {
	return &Node{Kind: KindRef, Index: index}
}

// Apply returns a new call node. It does not validate arity; Eval does.
func Apply(op Op, args ...*Node) *Node {
	return &Node{Kind: KindCall, Op: op, Args: args}
}

// String renders the tree in infix form, references as x<index>.
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	if n == nil {
		sb.WriteString("<nil>")
		return
	}
	switch n.Kind {
	case KindConstant:
		sb.WriteString(strconv.FormatFloat(n.Value, 'g', -1, 64))
	case KindRef:
		sb.WriteByte('x')
		sb.WriteString(strconv.Itoa(n.Index))
	case KindCall:
		switch n.Op {
		case OpAdd, OpSub, OpMul, OpDiv, OpPow:
			sb.WriteByte('(')
			for i, a := range n.Args {
				if i > 0 {
					sb.WriteString(" " + n.Op.String() + " ")
				}
				a.write(sb)
			}
			sb.WriteByte(')')
		default:
			sb.WriteString(n.Op.String())
			sb.WriteByte('(')
			for i, a := range n.Args {
				if i > 0 {
					sb.WriteString(", ")
				}
				a.write(sb)
			}
			sb.WriteByte(')')
		}
	default:
		fmt.Fprintf(sb, "<kind %d>", n.Kind)
	}
}
