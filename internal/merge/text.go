// Package merge holds the three-way merge primitives: the line merge, the
// per-path decision table and the persisted conflict state.
package merge

import (
	"bytes"
	"sort"

	"gible/internal/diff"
)

const (
	markerOurs   = "<<<<<<< HEAD\n"
	markerSep    = "=======\n"
	markerTheirs = ">>>>>>> "
)

type side int

const (
	sideOurs side = iota
	sideTheirs
)

type change struct {
	side side
	diff.OpCode
}

func (c change) insertion() bool { return c.I1 == c.I2 }

// region is a span of base lines touched by one or more changes.
type region struct {
	lo, hi  int
	changes []change
}

func (r *region) overlaps(c change) bool {
	if c.I1 < r.hi {
		return true
	}
	// Anything landing on an insertion point, or an insertion at the edge
	// of a region, has no unambiguous order.
	return c.I1 == r.hi && (c.insertion() || r.lo == r.hi || r.endsWithInsertion())
}

func (r *region) endsWithInsertion() bool {
	last := r.changes[len(r.changes)-1]
	return last.insertion() && last.I1 == r.hi
}

func (r *region) touchedBy(s side) bool {
	for _, c := range r.changes {
		if c.side == s {
			return true
		}
	}
	return false
}

// rewrite returns what side s turns base[lo:hi] into.
func (r *region) rewrite(s side, base, lines [][]byte) [][]byte {
	var out [][]byte
	k := r.lo
	for _, c := range r.changes {
		if c.side != s {
			continue
		}
		out = append(out, base[k:c.I1]...)
		out = append(out, lines[c.J1:c.J2]...)
		k = c.I2
	}
	return append(out, base[k:r.hi]...)
}

func changes(s side, base, other [][]byte) []change {
	var out []change
	for _, op := range diff.OpCodes(base, other) {
		if op.Tag != diff.TagEqual {
			out = append(out, change{side: s, OpCode: op})
		}
	}
	return out
}

// MergeText merges ours and theirs against their common base line by line.
// Regions changed by a single side take that side. Regions changed by both
// take the change when identical and otherwise become a conflict block
// labelled HEAD and label. conflicted reports whether any block was written.
func MergeText(base, ours, theirs []byte, label string) (merged []byte, conflicted bool) {
	baseLines := diff.SplitLines(base)
	oursLines := diff.SplitLines(ours)
	theirsLines := diff.SplitLines(theirs)

	all := append(changes(sideOurs, baseLines, oursLines), changes(sideTheirs, baseLines, theirsLines)...)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].I1 != all[j].I1 {
			return all[i].I1 < all[j].I1
		}
		return all[i].side < all[j].side
	})

	var regions []*region
	for _, c := range all {
		if n := len(regions); n > 0 && regions[n-1].overlaps(c) {
			r := regions[n-1]
			r.changes = append(r.changes, c)
			if c.I2 > r.hi {
				r.hi = c.I2
			}
			continue
		}
		regions = append(regions, &region{lo: c.I1, hi: c.I2, changes: []change{c}})
	}

	var out bytes.Buffer
	k := 0
	for _, r := range regions {
		writeLines(&out, baseLines[k:r.lo])
		k = r.hi

		touchedOurs, touchedTheirs := r.touchedBy(sideOurs), r.touchedBy(sideTheirs)
		oursRewrite := r.rewrite(sideOurs, baseLines, oursLines)
		switch {
		case !touchedTheirs:
			writeLines(&out, oursRewrite)
		case !touchedOurs:
			writeLines(&out, r.rewrite(sideTheirs, baseLines, theirsLines))
		default:
			theirsRewrite := r.rewrite(sideTheirs, baseLines, theirsLines)
			if sameLines(oursRewrite, theirsRewrite) {
				writeLines(&out, oursRewrite)
				continue
			}
			conflicted = true
			out.WriteString(markerOurs)
			writeBlock(&out, oursRewrite)
			out.WriteString(markerSep)
			writeBlock(&out, theirsRewrite)
			out.WriteString(markerTheirs + label + "\n")
		}
	}
	writeLines(&out, baseLines[k:])

	return out.Bytes(), conflicted
}

func writeLines(buf *bytes.Buffer, lines [][]byte) {
	for _, l := range lines {
		buf.Write(l)
	}
}

// writeBlock writes one side of a conflict, terminating an unterminated last
// line so the next marker starts on its own line.
func writeBlock(buf *bytes.Buffer, lines [][]byte) {
	writeLines(buf, lines)
	if n := len(lines); n > 0 {
		last := lines[n-1]
		if !bytes.HasSuffix(last, []byte("\n")) && !bytes.HasSuffix(last, []byte("\r")) {
			buf.WriteByte('\n')
		}
	}
}

func sameLines(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
