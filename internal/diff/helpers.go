package diff

import "bytes"

// Opcode tags, matching the edit-script vocabulary stored in text diffs.
const (
	TagEqual   = "equal"
	TagReplace = "replace"
	TagDelete  = "delete"
	TagInsert  = "insert"
)

// maxLCSCells bounds the LCS matrix. Larger middles are emitted as a single
// replace, which is still an exact (if not minimal) script.
const maxLCSCells = 16 << 20

// OpCode turns a[I1:I2] into b[J1:J2].
type OpCode struct {
	Tag string
	I1  int
	I2  int
	J1  int
	J2  int
}

// SplitLines splits data into lines, keeping terminators. A line ends at
// "\n", "\r\n" or a lone "\r"; the last line may have no terminator.
func SplitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case '\n':
			lines = append(lines, data[start:i+1])
			start = i + 1
		case '\r':
			if i+1 < len(data) && data[i+1] == '\n' {
				i++
			}
			lines = append(lines, data[start:i+1])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

// OpCodes computes an LCS-based edit script from a to b. Adjacent deletes
// and inserts are reported as one replace.
func OpCodes(a, b [][]byte) []OpCode {
	// Trim common prefix and suffix before building the matrix
	prefix := 0
	for prefix < len(a) && prefix < len(b) && bytes.Equal(a[prefix], b[prefix]) {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix &&
		bytes.Equal(a[len(a)-1-suffix], b[len(b)-1-suffix]) {
		suffix++
	}

	midA := a[prefix : len(a)-suffix]
	midB := b[prefix : len(b)-suffix]

	var steps []byte
	steps = append(steps, bytes.Repeat([]byte{'='}, prefix)...)
	steps = append(steps, alignSteps(midA, midB)...)
	steps = append(steps, bytes.Repeat([]byte{'='}, suffix)...)

	return groupSteps(steps)
}

// alignSteps returns one step per edit: '=' keep, '-' drop from a, '+' take from b.
func alignSteps(a, b [][]byte) []byte {
	n, m := len(a), len(b)
	if n == 0 || m == 0 || n*m > maxLCSCells {
		steps := make([]byte, 0, n+m)
		steps = append(steps, bytes.Repeat([]byte{'-'}, n)...)
		return append(steps, bytes.Repeat([]byte{'+'}, m)...)
	}

	lcs := buildLCSMatrix(a, b)

	steps := make([]byte, 0, n+m)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case bytes.Equal(a[i], b[j]):
			steps = append(steps, '=')
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			steps = append(steps, '-')
			i++
		default:
			steps = append(steps, '+')
			j++
		}
	}
	for ; i < n; i++ {
		steps = append(steps, '-')
	}
	for ; j < m; j++ {
		steps = append(steps, '+')
	}
	return steps
}

// buildLCSMatrix returns suffix LCS lengths: matrix[i][j] = LCS(a[i:], b[j:]).
func buildLCSMatrix(a, b [][]byte) [][]int32 {
	matrix := make([][]int32, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int32, len(b)+1)
	}

	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if bytes.Equal(a[i], b[j]) {
				matrix[i][j] = matrix[i+1][j+1] + 1
			} else {
				matrix[i][j] = max(matrix[i+1][j], matrix[i][j+1])
			}
		}
	}

	return matrix
}

func groupSteps(steps []byte) []OpCode {
	var ops []OpCode
	i, j := 0, 0
	for k := 0; k < len(steps); {
		i1, j1 := i, j
		if steps[k] == '=' {
			for k < len(steps) && steps[k] == '=' {
				i++
				j++
				k++
			}
			ops = append(ops, OpCode{Tag: TagEqual, I1: i1, I2: i, J1: j1, J2: j})
			continue
		}

		for k < len(steps) && steps[k] != '=' {
			if steps[k] == '-' {
				i++
			} else {
				j++
			}
			k++
		}

		tag := TagReplace
		switch {
		case j == j1:
			tag = TagDelete
		case i == i1:
			tag = TagInsert
		}
		ops = append(ops, OpCode{Tag: tag, I1: i1, I2: i, J1: j1, J2: j})
	}
	return ops
}
