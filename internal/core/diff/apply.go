package diff

import "github.com/Ning0612/pkgyaml/internal/tree"

// Apply replays ops against v and returns the resulting tree. Containers in
// v are mutated in place where possible; callers that need the original
// should pass a tree.Clone. Missing intermediate nodes are created (maps for
// string keys, sequences for indexes) and a scalar standing where a
// container is needed is replaced.
func Apply(v tree.Value, ops []Op) tree.Value {
	for _, op := range ops {
		v = applyOp(v, op)
	}
	return v
}

func applyOp(root tree.Value, op Op) tree.Value {
	path, eff := op.Target()
	switch eff.Kind {
	case KindEdit, KindNew:
		return setIn(root, path, tree.Clone(eff.New))
	case KindDelete:
		return deleteIn(root, path)
	}
	return root
}

func setIn(node tree.Value, path tree.Path, value tree.Value) tree.Value {
	if len(path) == 0 {
		return value
	}

	switch key := path[0].(type) {
	case string:
		m, ok := node.(*tree.Map)
		if !ok {
			m = tree.NewMap()
		}
		child, _ := m.Get(key)
		m.Set(key, setIn(child, path[1:], value))
		return m
	case int:
		if key < 0 {
			return node
		}
		list, _ := node.([]tree.Value)
		for len(list) <= key {
			list = append(list, nil)
		}
		list[key] = setIn(list[key], path[1:], value)
		return list
	}
	return node
}

func deleteIn(node tree.Value, path tree.Path) tree.Value {
	if len(path) == 0 {
		return nil
	}
	last := len(path) == 1

	switch key := path[0].(type) {
	case string:
		m, ok := node.(*tree.Map)
		if !ok {
			return node
		}
		if last {
			m.Delete(key)
			return m
		}
		child, ok := m.Get(key)
		if !ok {
			return m
		}
		m.Set(key, deleteIn(child, path[1:]))
		return m
	case int:
		list, ok := node.([]tree.Value)
		if !ok || key < 0 || key >= len(list) {
			return node
		}
		if last {
			return append(list[:key], list[key+1:]...)
		}
		list[key] = deleteIn(list[key], path[1:])
		return list
	}
	return node
}
