package yamldoc

import (
	"fmt"

	"github.com/Ning0612/pkgyaml/internal/core/diff"
)

// Apply replays ops against the document. Every written value becomes a
// fresh node; edits and deletes touch only the addressed node so sibling
// comments and ordering survive. An op whose path runs through a
// non-collection is skipped and reported; the remaining ops still apply.
func (d *Document) Apply(ops []diff.Op) []error {
	var skipped []error
	for _, op := range ops {
		path, eff := op.Target()

		var err error
		switch eff.Kind {
		case diff.KindEdit, diff.KindNew:
			err = d.SetIn(path, FromValue(eff.New))
		case diff.KindDelete:
			err = d.DeleteIn(path)
		default:
			err = fmt.Errorf("unknown op kind %q", eff.Kind)
		}

		if err != nil {
			skipped = append(skipped, fmt.Errorf("skip %s: %w", op, err))
		}
	}
	return skipped
}
