package yamldoc

import (
	"math"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/Ning0612/pkgyaml/internal/tree"
)

const mergeTag = "!!merge"

// ToValue converts a node into a value tree, resolving aliases and merge keys
func ToValue(n *yaml.Node) tree.Value {
	n = resolve(n)
	if n == nil {
		return nil
	}

	switch n.Kind {
	case yaml.MappingNode:
		m := tree.NewMap()
		var merges []*yaml.Node
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if isMergeKey(key) {
				merges = append(merges, val)
				continue
			}
			m.Set(key.Value, ToValue(val))
		}
		for _, src := range merges {
			mergeInto(m, src)
		}
		return m
	case yaml.SequenceNode:
		list := make([]tree.Value, 0, len(n.Content))
		for _, c := range n.Content {
			list = append(list, ToValue(c))
		}
		return list
	case yaml.ScalarNode:
		return scalarValue(n)
	}
	return nil
}

// scalarValue decodes the core JSON-compatible tags. Every other tag,
// timestamps and binaries included, keeps its source text.
func scalarValue(n *yaml.Node) tree.Value {
	switch n.ShortTag() {
	case "!!null":
		return nil
	case "!!bool", "!!int", "!!float":
		var v any
		if err := n.Decode(&v); err != nil {
			return n.Value
		}
		return tree.Normalize(v)
	}
	return n.Value
}

func isMergeKey(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == mergeTag
}

func hasMergeKey(m *yaml.Node) bool {
	if m == nil || m.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if isMergeKey(m.Content[i]) {
			return true
		}
	}
	return false
}

// mergeInto applies a "<<" merge: explicit keys win over merged ones
func mergeInto(m *tree.Map, src *yaml.Node) {
	src = resolve(src)
	if src == nil {
		return
	}
	if src.Kind == yaml.SequenceNode {
		for _, c := range src.Content {
			mergeInto(m, c)
		}
		return
	}
	merged, ok := ToValue(src).(*tree.Map)
	if !ok {
		return
	}
	for _, k := range merged.Keys() {
		if _, exists := m.Get(k); !exists {
			v, _ := merged.Get(k)
			m.Set(k, v)
		}
	}
}

// FromValue builds a fresh node with default formatting for v
func FromValue(v tree.Value) *yaml.Node {
	switch x := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(x)}
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(int64(x), 10)}
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(x, 'g', -1, 64)}
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: x}
	case []tree.Value:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range x {
			n.Content = append(n.Content, FromValue(e))
		}
		return n
	case *tree.Map:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range x.Keys() {
			val, _ := x.Get(k)
			n.Content = append(n.Content, keyNode(k), FromValue(val))
		}
		return n
	}
	return FromValue(tree.Normalize(v))
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}
