// internal/diff/diff.go
package diff

import (
	"bytes"
	"fmt"
)

// Line represents a single line in a diff with its type and content
type Line struct {
	Type    LineType
	Content string
	OldNum  int
	NewNum  int
}

// LineType indicates whether a line was added, removed, or is context
type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

// DiffResult contains the complete diff information
type DiffResult struct {
	Hunks []Hunk
	Stats struct {
		Additions int
		Deletions int
		Changes   int
	}
}

// Hunk represents a continuous section of changes
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Engine renders human-readable diffs. Storage uses the codecs instead.
type Engine struct {
	contextLines int
}

// NewEngine creates a new diff engine with specified context lines
func NewEngine(contextLines int) *Engine {
	return &Engine{
		contextLines: contextLines,
	}
}

// Diff generates a line-by-line diff between two contents
func (e *Engine) Diff(oldContent, newContent []byte) (*DiffResult, error) {
	oldLines := SplitLines(oldContent)
	newLines := SplitLines(newContent)

	result := &DiffResult{}
	for _, group := range e.groupOpCodes(OpCodes(oldLines, newLines)) {
		result.Hunks = append(result.Hunks, buildHunk(group, oldLines, newLines))
	}

	// Calculate stats
	for _, hunk := range result.Hunks {
		for _, line := range hunk.Lines {
			switch line.Type {
			case Addition:
				result.Stats.Additions++
			case Deletion:
				result.Stats.Deletions++
			}
		}
	}
	result.Stats.Changes = result.Stats.Additions + result.Stats.Deletions

	return result, nil
}

// groupOpCodes splits the script into hunks, trimming equal runs down to
// the configured context.
func (e *Engine) groupOpCodes(ops []OpCode) [][]OpCode {
	if len(ops) == 0 || (len(ops) == 1 && ops[0].Tag == TagEqual) {
		return nil
	}

	n := e.contextLines
	ops = append([]OpCode(nil), ops...)
	if first := &ops[0]; first.Tag == TagEqual {
		first.I1 = max(first.I1, first.I2-n)
		first.J1 = max(first.J1, first.J2-n)
	}
	if last := &ops[len(ops)-1]; last.Tag == TagEqual {
		last.I2 = min(last.I2, last.I1+n)
		last.J2 = min(last.J2, last.J1+n)
	}

	var groups [][]OpCode
	var group []OpCode
	for _, op := range ops {
		// Split on equal runs longer than two contexts
		if op.Tag == TagEqual && op.I2-op.I1 > 2*n {
			group = append(group, OpCode{Tag: TagEqual, I1: op.I1, I2: op.I1 + n, J1: op.J1, J2: op.J1 + n})
			groups = append(groups, group)
			group = nil
			op.I1 = op.I2 - n
			op.J1 = op.J2 - n
		}
		group = append(group, op)
	}
	if len(group) > 0 && !(len(group) == 1 && group[0].Tag == TagEqual) {
		groups = append(groups, group)
	}
	return groups
}

func buildHunk(group []OpCode, oldLines, newLines [][]byte) Hunk {
	first, last := group[0], group[len(group)-1]
	hunk := Hunk{
		OldStart: first.I1 + 1,
		OldLines: last.I2 - first.I1,
		NewStart: first.J1 + 1,
		NewLines: last.J2 - first.J1,
	}
	if hunk.OldLines == 0 {
		hunk.OldStart--
	}
	if hunk.NewLines == 0 {
		hunk.NewStart--
	}

	for _, op := range group {
		if op.Tag == TagEqual {
			for k := 0; k < op.I2-op.I1; k++ {
				hunk.Lines = append(hunk.Lines, Line{
					Type:    Context,
					Content: trimEOL(oldLines[op.I1+k]),
					OldNum:  op.I1 + k + 1,
					NewNum:  op.J1 + k + 1,
				})
			}
			continue
		}
		for i := op.I1; i < op.I2; i++ {
			hunk.Lines = append(hunk.Lines, Line{
				Type:    Deletion,
				Content: trimEOL(oldLines[i]),
				OldNum:  i + 1,
			})
		}
		for j := op.J1; j < op.J2; j++ {
			hunk.Lines = append(hunk.Lines, Line{
				Type:    Addition,
				Content: trimEOL(newLines[j]),
				NewNum:  j + 1,
			})
		}
	}
	return hunk
}

func trimEOL(line []byte) string {
	return string(bytes.TrimRight(line, "\r\n"))
}

// Format returns a string representation of the diff
func (r *DiffResult) Format() string {
	var buf bytes.Buffer

	for _, hunk := range r.Hunks {
		fmt.Fprintf(&buf, "@@ -%d,%d +%d,%d @@\n",
			hunk.OldStart, hunk.OldLines,
			hunk.NewStart, hunk.NewLines)

		for _, line := range hunk.Lines {
			switch line.Type {
			case Addition:
				buf.WriteString("+ ")
			case Deletion:
				buf.WriteString("- ")
			case Context:
				buf.WriteString("  ")
			}
			buf.WriteString(line.Content)
			buf.WriteString("\n")
		}
	}

	return buf.String()
}
