package yamldoc

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// hunk replaces base lines [from, to) with lines
type hunk struct {
	from, to int
	lines    []string
}

// splice replays the line edits that turn base into out onto src. base is
// the canonical encoding of src, so lines the edits never reach keep their
// source spelling. ok is false when the diffs do not line up.
func splice(src, base, out []byte) ([]byte, bool) {
	srcLines := splitLines(string(src))
	baseLines := splitLines(string(base))

	start, after, ok := align(len(baseLines), srcLines, lineDiff(string(base), string(src)))
	if !ok {
		return nil, false
	}
	hunks, ok := hunksOf(len(baseLines), lineDiff(string(base), string(out)))
	if !ok {
		return nil, false
	}

	var sb strings.Builder
	pos := 0
	for _, h := range hunks {
		from, to := after[h.from], after[h.from]
		if h.to > h.from {
			from, to = start[h.from], after[h.to]
		}
		if from < pos || to < from {
			return nil, false
		}
		sb.WriteString(strings.Join(srcLines[pos:from], ""))
		sb.WriteString(strings.Join(h.lines, ""))
		pos = to
	}
	sb.WriteString(strings.Join(srcLines[pos:], ""))
	return []byte(sb.String()), true
}

// align maps base line positions onto src lines. start[i] is the src index
// where base line i begins; after[i] is the src index just past base line
// i-1. A changed block maps all of its base lines onto the src block,
// leaving out blank lines at either end of it.
func align(n int, src []string, diffs []diffmatchpatch.Diff) (start, after []int, ok bool) {
	m := len(src)
	start = make([]int, n+1)
	after = make([]int, n+1)
	block := func(c, k, from, to int) {
		for from < to && blank(src[from]) {
			from++
		}
		for to > from && blank(src[to-1]) {
			to--
		}
		for t := 0; t < k; t++ {
			start[c+t] = from
			after[c+t+1] = to
		}
	}

	c, o := 0, 0
	for i := 0; i < len(diffs); i++ {
		k := len(splitLines(diffs[i].Text))
		if o+k > m && diffs[i].Type == diffmatchpatch.DiffInsert {
			return nil, nil, false
		}
		if c+k > n && diffs[i].Type != diffmatchpatch.DiffInsert {
			return nil, nil, false
		}
		switch diffs[i].Type {
		case diffmatchpatch.DiffEqual:
			for t := 0; t < k; t++ {
				start[c] = o
				o++
				c++
				after[c] = o
			}
		case diffmatchpatch.DiffDelete:
			added := 0
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffInsert {
				added = len(splitLines(diffs[i+1].Text))
				i++
			}
			if o+added > m {
				return nil, nil, false
			}
			block(c, k, o, o+added)
			c += k
			o += added
		case diffmatchpatch.DiffInsert:
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffDelete {
				removed := len(splitLines(diffs[i+1].Text))
				if c+removed > n {
					return nil, nil, false
				}
				block(c, removed, o, o+k)
				c += removed
				i++
			}
			o += k
		}
	}
	if c != n || o != m {
		return nil, nil, false
	}
	start[n] = o
	return start, after, true
}

// hunksOf groups the non-equal runs of a base-to-out diff
func hunksOf(n int, diffs []diffmatchpatch.Diff) ([]hunk, bool) {
	var (
		hunks []hunk
		cur   *hunk
	)
	flush := func() {
		if cur != nil {
			hunks = append(hunks, *cur)
			cur = nil
		}
	}

	c := 0
	for _, d := range diffs {
		lines := splitLines(d.Text)
		if d.Type == diffmatchpatch.DiffEqual {
			flush()
			c += len(lines)
			continue
		}
		if cur == nil {
			cur = &hunk{from: c, to: c}
		}
		if d.Type == diffmatchpatch.DiffDelete {
			c += len(lines)
			cur.to = c
		} else {
			cur.lines = append(cur.lines, lines...)
		}
	}
	flush()
	return hunks, c == n
}

func blank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func lineDiff(a, b string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	chars1, chars2, lines := dmp.DiffLinesToChars(a, b)
	return dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lines)
}

// splitLines splits s after each newline; a final unterminated line is kept
func splitLines(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
