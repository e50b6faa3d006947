// Package yamldoc wraps a yaml.v3 node tree as a path-addressable document
// that keeps comments, key order and scalar styles across edits.
package yamldoc

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Ning0612/pkgyaml/internal/domain"
	"github.com/Ning0612/pkgyaml/internal/tree"
)

const defaultIndent = 2

// Document is a formatted YAML document. A parsed document remembers its
// source bytes and their canonical encoding so Bytes can carry untouched
// lines over verbatim.
type Document struct {
	node   *yaml.Node
	indent int
	src    []byte
	base   []byte
}

// New creates an empty document
func New() *Document {
	return &Document{
		node:   &yaml.Node{Kind: yaml.DocumentNode},
		indent: defaultIndent,
	}
}

// Parse decodes data into a document. Only the first YAML document of a
// stream is kept.
func Parse(data []byte) (*Document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	if node.Kind == 0 {
		node.Kind = yaml.DocumentNode
	}
	d := &Document{node: &node, indent: sniffIndent(data)}
	if d.Root() != nil {
		if base, err := d.encode(); err == nil {
			d.src, d.base = data, base
		}
	}
	return d, nil
}

// ParseValue decodes data straight into a value tree
func ParseValue(data []byte) (tree.Value, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return doc.Contents(), nil
}

// sniffIndent returns the leading space count of the first indented
// mapping line, clamped to what the encoder accepts.
func sniffIndent(data []byte) int {
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimLeft(line, " ")
		n := len(line) - len(trimmed)
		if n == 0 || trimmed == "" || trimmed[0] == '#' || trimmed[0] == '-' {
			continue
		}
		if n < 2 {
			return defaultIndent
		}
		if n > 9 {
			return 9
		}
		return n
	}
	return defaultIndent
}

// Root returns the content node, or nil for an empty document
func (d *Document) Root() *yaml.Node {
	if len(d.node.Content) == 0 {
		return nil
	}
	return d.node.Content[0]
}

// Node returns the underlying document node
func (d *Document) Node() *yaml.Node {
	return d.node
}

// Contents decodes the document into a value tree; nil when empty
func (d *Document) Contents() tree.Value {
	root := d.Root()
	if root == nil {
		return nil
	}
	return ToValue(root)
}

// Bytes serializes the document with its original indentation. Lines of
// a parsed document that no edit touched are copied from the source, so
// blank lines, comment spacing and folded scalars survive.
func (d *Document) Bytes() ([]byte, error) {
	if d.Root() == nil {
		return nil, nil
	}
	out, err := d.encode()
	if err != nil {
		return nil, err
	}
	if d.src == nil {
		return out, nil
	}
	if bytes.Equal(out, d.base) {
		return d.src, nil
	}
	if merged, ok := splice(d.src, d.base, out); ok && d.decodesTo(merged) {
		return merged, nil
	}
	return out, nil
}

// encode runs the yaml.v3 encoder. Merge keys are emitted as plain "<<";
// the encoder would otherwise spell out their tag.
func (d *Document) encode() ([]byte, error) {
	var keys []*yaml.Node
	walk(d.node, func(n *yaml.Node) {
		if n.Kind == yaml.MappingNode {
			for i := 0; i+1 < len(n.Content); i += 2 {
				if isMergeKey(n.Content[i]) {
					keys = append(keys, n.Content[i])
				}
			}
		}
	})
	for _, k := range keys {
		k.Tag = ""
	}
	defer func() {
		for _, k := range keys {
			k.Tag = mergeTag
		}
	}()

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(d.indent)
	if err := enc.Encode(d.node); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// decodesTo reports whether data parses to the document's current content
func (d *Document) decodesTo(data []byte) bool {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return false
	}
	var got tree.Value
	if len(node.Content) > 0 {
		got = ToValue(node.Content[0])
	}
	return tree.Equal(got, d.Contents())
}

// String serializes the document, returning an empty string on failure
func (d *Document) String() string {
	out, err := d.Bytes()
	if err != nil {
		return ""
	}
	return string(out)
}

// Get returns the node at path
func (d *Document) Get(path tree.Path) (*yaml.Node, bool) {
	n := d.Root()
	for _, seg := range path {
		if n == nil {
			return nil, false
		}
		child, _ := childOf(n, seg)
		n = child
	}
	return n, n != nil
}

// SetIn stores value at path, creating missing intermediate collections.
// An empty path replaces the whole content node.
func (d *Document) SetIn(path tree.Path, value *yaml.Node) error {
	if len(path) == 0 {
		d.node.Content = []*yaml.Node{value}
		return nil
	}
	if d.Root() == nil {
		d.node.Content = []*yaml.Node{containerFor(path[0])}
	}

	parent := d.Root()
	for i, seg := range path[:len(path)-1] {
		child, err := d.editable(parent, seg)
		if err != nil {
			return fmt.Errorf("%s: %w", path[:i+1], err)
		}
		if child == nil {
			child = containerFor(path[i+1])
			if err := setChild(parent, seg, child); err != nil {
				return fmt.Errorf("%s: %w", path[:i+1], err)
			}
		}
		parent = child
	}
	last := path[len(path)-1]
	if old, _ := childOf(parent, last); old != nil {
		d.detachTree(old)
	}
	if err := setChild(parent, last, value); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// DeleteIn removes the node at path. Missing paths are a no-op; an empty
// path clears the document.
func (d *Document) DeleteIn(path tree.Path) error {
	if len(path) == 0 {
		d.node.Content = nil
		return nil
	}

	parent := d.Root()
	for i, seg := range path[:len(path)-1] {
		if parent == nil {
			return nil
		}
		child, err := d.editable(parent, seg)
		if err != nil {
			return fmt.Errorf("%s: %w", path[:i+1], err)
		}
		parent = child
	}
	if parent == nil {
		return nil
	}
	last := path[len(path)-1]
	if key, ok := last.(string); ok && inherited(parent, key) {
		flatten(parent)
	}
	if old, _ := childOf(parent, last); old != nil {
		d.detachTree(old)
	}
	if err := removeChild(parent, last); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// editable returns the child at seg ready for in-place edits. An alias
// child is replaced by a copy of its target, aliases elsewhere that point
// at the child are expanded, and a key only reachable through "<<" makes
// the parent spell out its merged keys first.
func (d *Document) editable(parent *yaml.Node, seg any) (*yaml.Node, error) {
	if key, ok := seg.(string); ok && inherited(parent, key) && keyIndex(parent, key) < 0 {
		flatten(parent)
	}
	child, err := childOf(parent, seg)
	if err != nil || child == nil {
		return child, err
	}
	if child.Kind == yaml.AliasNode {
		copied := FromValue(ToValue(child))
		copied.HeadComment, copied.LineComment, copied.FootComment = child.HeadComment, child.LineComment, child.FootComment
		if err := setChild(parent, seg, copied); err != nil {
			return nil, err
		}
		return copied, nil
	}
	d.detach(child)
	return child, nil
}

// detach expands every alias of target into a standalone copy
func (d *Document) detach(target *yaml.Node) {
	if target == nil || target.Anchor == "" {
		return
	}
	var expand func(n *yaml.Node)
	expand = func(n *yaml.Node) {
		for i, c := range n.Content {
			if c.Kind == yaml.AliasNode && c.Alias == target {
				n.Content[i] = FromValue(ToValue(target))
				continue
			}
			expand(c)
		}
	}
	expand(d.node)
}

// detachTree detaches every anchored node under n
func (d *Document) detachTree(n *yaml.Node) {
	walk(n, func(c *yaml.Node) {
		if c.Anchor != "" {
			d.detach(c)
		}
	})
}

// flatten rewrites a mapping with "<<" keys into explicit keys only. Nodes
// of explicit keys are kept as they are.
func flatten(m *yaml.Node) {
	if !hasMergeKey(m) {
		return
	}
	value, ok := ToValue(m).(*tree.Map)
	if !ok {
		return
	}
	content := make([]*yaml.Node, 0, len(m.Content))
	for i := 0; i+1 < len(m.Content); i += 2 {
		if !isMergeKey(m.Content[i]) {
			content = append(content, m.Content[i], m.Content[i+1])
		}
	}
	explicit := &yaml.Node{Kind: yaml.MappingNode, Content: content}
	for _, k := range value.Keys() {
		if keyIndex(explicit, k) >= 0 {
			continue
		}
		v, _ := value.Get(k)
		explicit.Content = append(explicit.Content, keyNode(k), FromValue(v))
	}
	m.Content = explicit.Content
}

// inherited reports whether a "<<" key of m carries key
func inherited(m *yaml.Node, key string) bool {
	if !hasMergeKey(m) {
		return false
	}
	merges := &yaml.Node{Kind: yaml.MappingNode}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if isMergeKey(m.Content[i]) {
			merges.Content = append(merges.Content, m.Content[i], m.Content[i+1])
		}
	}
	v, ok := ToValue(merges).(*tree.Map)
	if !ok {
		return false
	}
	_, found := v.Get(key)
	return found
}

// walk visits n and its descendants without following aliases
func walk(n *yaml.Node, fn func(*yaml.Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Content {
		walk(c, fn)
	}
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && (n.Kind == yaml.AliasNode || n.Kind == yaml.DocumentNode) {
		if n.Kind == yaml.AliasNode {
			n = n.Alias
		} else if len(n.Content) > 0 {
			n = n.Content[0]
		} else {
			return nil
		}
	}
	return n
}

// childOf looks up seg in a collection node. A nil node with nil error
// means the collection exists but has no such entry.
func childOf(parent *yaml.Node, seg any) (*yaml.Node, error) {
	parent = resolve(parent)
	switch key := seg.(type) {
	case string:
		if parent == nil || parent.Kind != yaml.MappingNode {
			return nil, domain.ErrNotCollection
		}
		if i := keyIndex(parent, key); i >= 0 {
			return parent.Content[i+1], nil
		}
		return nil, nil
	case int:
		if parent == nil || parent.Kind != yaml.SequenceNode {
			return nil, domain.ErrNotCollection
		}
		if key >= 0 && key < len(parent.Content) {
			return parent.Content[key], nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported path segment %T", seg)
}

func setChild(parent *yaml.Node, seg any, value *yaml.Node) error {
	parent = resolve(parent)
	switch key := seg.(type) {
	case string:
		if parent == nil || parent.Kind != yaml.MappingNode {
			return domain.ErrNotCollection
		}
		if i := keyIndex(parent, key); i >= 0 {
			parent.Content[i+1] = replacement(parent.Content[i+1], value)
			return nil
		}
		parent.Content = append(parent.Content, keyNode(key), value)
		return nil
	case int:
		if parent == nil || parent.Kind != yaml.SequenceNode {
			return domain.ErrNotCollection
		}
		if key < 0 {
			return fmt.Errorf("negative index %d", key)
		}
		if key < len(parent.Content) {
			parent.Content[key] = replacement(parent.Content[key], value)
			return nil
		}
		for len(parent.Content) < key {
			parent.Content = append(parent.Content, FromValue(nil))
		}
		parent.Content = append(parent.Content, value)
		return nil
	}
	return fmt.Errorf("unsupported path segment %T", seg)
}

func removeChild(parent *yaml.Node, seg any) error {
	parent = resolve(parent)
	switch key := seg.(type) {
	case string:
		if parent == nil || parent.Kind != yaml.MappingNode {
			return domain.ErrNotCollection
		}
		if i := keyIndex(parent, key); i >= 0 {
			parent.Content = append(parent.Content[:i], parent.Content[i+2:]...)
		}
		return nil
	case int:
		if parent == nil || parent.Kind != yaml.SequenceNode {
			return domain.ErrNotCollection
		}
		if key >= 0 && key < len(parent.Content) {
			parent.Content = append(parent.Content[:key], parent.Content[key+1:]...)
		}
		return nil
	}
	return fmt.Errorf("unsupported path segment %T", seg)
}

// replacement keeps the comments of a scalar that is overwritten by
// another scalar.
func replacement(old, value *yaml.Node) *yaml.Node {
	if old.Kind == yaml.ScalarNode && value.Kind == yaml.ScalarNode {
		value.HeadComment = old.HeadComment
		value.LineComment = old.LineComment
		value.FootComment = old.FootComment
	}
	return value
}

func keyIndex(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key && !isMergeKey(m.Content[i]) {
			return i
		}
	}
	return -1
}

func containerFor(seg any) *yaml.Node {
	if _, ok := seg.(int); ok {
		return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	}
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}
