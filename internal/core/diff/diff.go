// Package diff computes and replays structural edit lists between value trees.
package diff

import (
	"fmt"

	"github.com/Ning0612/pkgyaml/internal/tree"
)

// Kind identifies the type of an edit operation
type Kind string

const (
	// KindEdit replaces a scalar or subtree
	KindEdit Kind = "E"
	// KindNew adds a key or index that did not exist
	KindNew Kind = "N"
	// KindDelete removes a key or index
	KindDelete Kind = "D"
	// KindArray wraps an edit that applies to one sequence element
	KindArray Kind = "A"
)

// Op is a single edit. For KindArray, Path addresses the sequence, Index the
// element and Item the wrapped Edit/New/Delete (whose own Path is empty).
type Op struct {
	Kind  Kind
	Path  tree.Path
	Old   tree.Value
	New   tree.Value
	Index int
	Item  *Op
}

// Edit builds a replacement op
func Edit(path tree.Path, oldValue, newValue tree.Value) Op {
	return Op{Kind: KindEdit, Path: path, Old: oldValue, New: newValue}
}

// New builds an addition op
func New(path tree.Path, newValue tree.Value) Op {
	return Op{Kind: KindNew, Path: path, New: newValue}
}

// Delete builds a removal op
func Delete(path tree.Path, oldValue tree.Value) Op {
	return Op{Kind: KindDelete, Path: path, Old: oldValue}
}

// ArrayChange wraps inner so it applies to element index of the sequence at path
func ArrayChange(path tree.Path, index int, inner Op) Op {
	inner.Path = nil
	return Op{Kind: KindArray, Path: path, Index: index, Item: &inner}
}

// Target unwraps array changes, returning the full element path and the
// effective Edit/New/Delete op
func (o Op) Target() (tree.Path, Op) {
	if o.Kind == KindArray && o.Item != nil {
		return o.Path.Append(o.Index), *o.Item
	}
	return o.Path, o
}

// String renders the op for reports and logs
func (o Op) String() string {
	path, eff := o.Target()
	switch eff.Kind {
	case KindNew:
		return fmt.Sprintf("+ %s: %s", path, short(eff.New))
	case KindDelete:
		return fmt.Sprintf("- %s: %s", path, short(eff.Old))
	default:
		return fmt.Sprintf("~ %s: %s -> %s", path, short(eff.Old), short(eff.New))
	}
}

func short(v tree.Value) string {
	switch x := v.(type) {
	case *tree.Map:
		return fmt.Sprintf("{%d keys}", x.Len())
	case []tree.Value:
		return fmt.Sprintf("[%d items]", len(x))
	case string:
		return fmt.Sprintf("%q", x)
	case nil:
		return "null"
	}
	return fmt.Sprint(v)
}

// Diff returns the ops that turn a into b, or nil when they are
// structurally equal
func Diff(a, b tree.Value) []Op {
	var ops []Op
	walk(nil, a, b, &ops)
	if len(ops) == 0 {
		return nil
	}
	return ops
}

func walk(path tree.Path, a, b tree.Value, ops *[]Op) {
	switch av := a.(type) {
	case *tree.Map:
		bv, ok := b.(*tree.Map)
		if !ok {
			*ops = append(*ops, Edit(path, a, b))
			return
		}
		for _, k := range av.Keys() {
			aval, _ := av.Get(k)
			bval, ok := bv.Get(k)
			if !ok {
				*ops = append(*ops, Delete(path.Append(k), aval))
				continue
			}
			walk(path.Append(k), aval, bval, ops)
		}
		for _, k := range bv.Keys() {
			if _, ok := av.Get(k); !ok {
				bval, _ := bv.Get(k)
				*ops = append(*ops, New(path.Append(k), bval))
			}
		}

	case []tree.Value:
		bv, ok := b.([]tree.Value)
		if !ok {
			*ops = append(*ops, Edit(path, a, b))
			return
		}
		// Trailing removals go highest index first so each one only
		// shifts elements that are already gone.
		for i := len(av) - 1; i >= len(bv); i-- {
			*ops = append(*ops, ArrayChange(path, i, Delete(nil, av[i])))
		}
		for i := 0; i < len(av) && i < len(bv); i++ {
			if sameContainerKind(av[i], bv[i]) {
				walk(path.Append(i), av[i], bv[i], ops)
			} else if !tree.Equal(av[i], bv[i]) {
				*ops = append(*ops, ArrayChange(path, i, Edit(nil, av[i], bv[i])))
			}
		}
		for i := len(av); i < len(bv); i++ {
			*ops = append(*ops, ArrayChange(path, i, New(nil, bv[i])))
		}

	default:
		if !tree.Equal(a, b) {
			*ops = append(*ops, Edit(path, a, b))
		}
	}
}

func sameContainerKind(a, b tree.Value) bool {
	switch a.(type) {
	case *tree.Map:
		_, ok := b.(*tree.Map)
		return ok
	case []tree.Value:
		_, ok := b.([]tree.Value)
		return ok
	}
	return false
}
