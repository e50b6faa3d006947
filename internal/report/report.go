// Package report renders drift between package.json and the formatted file
// without writing either.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Ning0612/pkgyaml/internal/core/diff"
	"github.com/Ning0612/pkgyaml/internal/tree"
)

// Indent used for the canonical renderings compared by Lines
const Indent = "  "

// Colors holds the line styles; Plain leaves text untouched
type Colors struct {
	Added   func(a ...any) string
	Removed func(a ...any) string
	Context func(a ...any) string
}

// NewColors returns green/red styles that are emitted even when stdout is
// not a terminal; call UseColor to decide whether to use them
func NewColors() *Colors {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	context := color.New(color.Faint)
	for _, c := range []*color.Color{added, removed, context} {
		c.EnableColor()
	}
	return &Colors{
		Added:   added.SprintFunc(),
		Removed: removed.SprintFunc(),
		Context: context.SprintFunc(),
	}
}

// Plain returns styles that add no escape sequences
func Plain() *Colors {
	return &Colors{Added: fmt.Sprint, Removed: fmt.Sprint, Context: fmt.Sprint}
}

// UseColor reports whether w is a terminal that should get colors
func UseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Ops writes one line per edit op. Nothing is written for an empty list.
func Ops(w io.Writer, ops []diff.Op, c *Colors) error {
	if c == nil {
		c = Plain()
	}
	for _, op := range ops {
		line := op.String()
		switch _, eff := op.Target(); eff.Kind {
		case diff.KindNew:
			line = c.Added(line)
		case diff.KindDelete:
			line = c.Removed(line)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// Lines returns a line diff of the canonical JSON renderings of from and
// to. Lines only in to are prefixed "+ ", only in from "- ".
func Lines(from, to tree.Value, c *Colors) (string, error) {
	if c == nil {
		c = Plain()
	}
	a, err := tree.EncodeJSON(from, Indent)
	if err != nil {
		return "", fmt.Errorf("encode package.json side: %w", err)
	}
	b, err := tree.EncodeJSON(to, Indent)
	if err != nil {
		return "", fmt.Errorf("encode formatted side: %w", err)
	}

	dmp := diffmatchpatch.New()
	chars1, chars2, lines := dmp.DiffLinesToChars(string(a), string(b))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix, style := "  ", c.Context
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix, style = "+ ", c.Added
		case diffmatchpatch.DiffDelete:
			prefix, style = "- ", c.Removed
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			sb.WriteString(style(prefix+line) + "\n")
		}
	}
	return sb.String(), nil
}

// MergePatch returns the RFC 7386 merge patch turning from into to
func MergePatch(from, to tree.Value) ([]byte, error) {
	a, err := tree.EncodeJSON(from, "")
	if err != nil {
		return nil, err
	}
	b, err := tree.EncodeJSON(to, "")
	if err != nil {
		return nil, err
	}
	patch, err := jsonpatch.CreateMergePatch(a, b)
	if err != nil {
		return nil, fmt.Errorf("create merge patch: %w", err)
	}
	return patch, nil
}
