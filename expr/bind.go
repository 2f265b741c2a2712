package expr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedNode is returned (wrapped) when a tree contains a node
	// whose kind is not one of the declared variants. It signals a broken
	// evaluator contract; callers must abort the solve.
	ErrUnexpectedNode = errors.New("unexpected expression node")

	// ErrAlreadyBound is returned when Bind visits a reference that
	// already carries a variable handle.
	ErrAlreadyBound = errors.New("expression already bound")
)

// Var is an opaque handle to a relaxation variable, produced by a Binder.
// The zero Var is unbound.
type Var struct {
	id int32
}

// NewVar returns the handle for the relaxation variable at the given index.
func NewVar(index int) Var {
	return Var{id: int32(index) + 1}
}

// Index returns the relaxation variable index the handle refers to.
func (v Var) Index() int {
	return int(v.id) - 1
}

// Valid reports whether the handle is bound.
func (v Var) Valid() bool {
	return v.id != 0
}

// Binder resolves a raw variable index into a bound variable handle.
type Binder interface {
	BindVariable(index int) (Var, error)
}

// Bind rewrites the tree in place, depth first and left to right: constants
// are left untouched, references are resolved through b, call nodes recurse
// into their arguments. A nil root is a no-op.
//
// Bind must run exactly once per tree; visiting an already-bound reference
// returns ErrAlreadyBound. Any node of unknown kind returns
// ErrUnexpectedNode: the tree is then in an undefined, partially bound state
// and the solve must be aborted.
func Bind(root *Node, b Binder) error {
	if root == nil {
		return nil
	}
	switch root.Kind {
	case KindConstant:
		return nil
	case KindRef:
		if root.V.Valid() {
			return fmt.Errorf("%w: x%d", ErrAlreadyBound, root.Index)
		}
		v, err := b.BindVariable(root.Index)
		if err != nil {
			return fmt.Errorf("bind x%d: %w", root.Index, err)
		}
		root.V = v
		return nil
	case KindCall:
		for i, a := range root.Args {
			if a == nil {
				return fmt.Errorf("%w: nil argument %d of %s", ErrUnexpectedNode, i, root.Op)
			}
			if err := Bind(a, b); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: kind %d", ErrUnexpectedNode, root.Kind)
	}
}
