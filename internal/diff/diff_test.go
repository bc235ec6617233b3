package diff

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	gerrors "gible/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"no terminator", "abc", []string{"abc"}},
		{"unix", "a\nb\n", []string{"a\n", "b\n"}},
		{"windows", "a\r\nb", []string{"a\r\n", "b"}},
		{"old mac", "a\rb\r", []string{"a\r", "b\r"}},
		{"blank lines", "\n\n", []string{"\n", "\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, l := range SplitLines([]byte(tt.input)) {
				got = append(got, string(l))
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, strings.Join(got, ""))
		})
	}
}

func lines(s ...string) [][]byte {
	out := make([][]byte, len(s))
	for i, l := range s {
		out[i] = []byte(l)
	}
	return out
}

func TestOpCodes(t *testing.T) {
	tests := []struct {
		name string
		a, b [][]byte
		want []OpCode
	}{
		{
			name: "identical",
			a:    lines("x\n", "y\n"),
			b:    lines("x\n", "y\n"),
			want: []OpCode{{TagEqual, 0, 2, 0, 2}},
		},
		{
			name: "replace middle",
			a:    lines("a\n", "b\n", "c\n"),
			b:    lines("a\n", "B\n", "c\n"),
			want: []OpCode{{TagEqual, 0, 1, 0, 1}, {TagReplace, 1, 2, 1, 2}, {TagEqual, 2, 3, 2, 3}},
		},
		{
			name: "insert at end",
			a:    lines("a\n"),
			b:    lines("a\n", "b\n"),
			want: []OpCode{{TagEqual, 0, 1, 0, 1}, {TagInsert, 1, 1, 1, 2}},
		},
		{
			name: "delete at start",
			a:    lines("a\n", "b\n"),
			b:    lines("b\n"),
			want: []OpCode{{TagDelete, 0, 1, 0, 0}, {TagEqual, 1, 2, 0, 1}},
		},
		{
			name: "from empty",
			a:    nil,
			b:    lines("a\n"),
			want: []OpCode{{TagInsert, 0, 0, 0, 1}},
		},
		{
			name: "both empty",
			a:    nil,
			b:    nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OpCodes(tt.a, tt.b))
		})
	}
}

func TestTextCodecRoundTrip(t *testing.T) {
	pairs := []struct {
		name     string
		old, new string
	}{
		{"single line change", "x\n", "y\n"},
		{"add trailing newline", "a\nb", "a\nb\n"},
		{"mixed terminators", "a\r\nb\rc\n", "a\nb\r\nc"},
		{"to empty", "a\nb\n", ""},
		{"from empty", "", "new file\n"},
		{"unicode", "héllo\n<tag>&\n", "héllo\n<tag>&amp;\nwörld\n"},
		{"reorder", "1\n2\n3\n4\n5\n", "5\n4\n3\n2\n1\n"},
	}

	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			patch, err := Text.Generate([]byte(tt.old), []byte(tt.new))
			require.NoError(t, err)

			got, err := Text.Apply([]byte(tt.old), patch)
			require.NoError(t, err)
			assert.Equal(t, tt.new, string(got))
		})
	}
}

func TestTextCodecRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	vocab := []string{"alpha\n", "beta\n", "gamma\r\n", "", "delta", "\n"}
	gen := func() []byte {
		var b bytes.Buffer
		for i := rng.Intn(30); i > 0; i-- {
			b.WriteString(vocab[rng.Intn(len(vocab))])
		}
		return b.Bytes()
	}

	for i := 0; i < 200; i++ {
		oldContent, newContent := gen(), gen()
		patch, err := Text.Generate(oldContent, newContent)
		require.NoError(t, err)
		got, err := Text.Apply(oldContent, patch)
		require.NoError(t, err)
		require.Equal(t, string(newContent), string(got))
	}
}

func TestTextCodecWireFormat(t *testing.T) {
	patch, err := Text.Generate([]byte("x\n"), []byte("y\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `[["replace",0,1,0,1,["y\n"]]]`, string(patch))

	patch, err = Text.Generate([]byte("a\nb\n"), []byte("a\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `[["equal",0,1,0,1,null],["delete",1,2,1,1,null]]`, string(patch))
}

func TestTextCodecRejectsBadPatches(t *testing.T) {
	base := []byte("a\nb\n")
	tests := []struct {
		name     string
		patch    string
		wantType gerrors.ErrorType
	}{
		{"unknown tag", `[["shuffle",0,1,0,1,null]]`, gerrors.ErrorTypeUnsupportedEntry},
		{"wrong arity", `[["equal",0,1]]`, gerrors.ErrorTypeUnsupportedEntry},
		{"not json", `{{`, gerrors.ErrorTypeUnsupportedEntry},
		{"range past end", `[["equal",0,9,0,9,null]]`, gerrors.ErrorTypeValidation},
		{"insert without lines", `[["insert",0,0,0,1,null]]`, gerrors.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Text.Apply(base, []byte(tt.patch))
			require.Error(t, err)
			assert.Equal(t, tt.wantType, gerrors.TypeOf(err))
		})
	}

	_, err := Text.Generate([]byte{0xff}, []byte("a"))
	assert.Error(t, err)
}

func TestIsIdentity(t *testing.T) {
	same, err := Text.Generate([]byte("a\n"), []byte("a\n"))
	require.NoError(t, err)
	assert.True(t, IsIdentity(same))

	changed, err := Text.Generate([]byte("a\n"), []byte("b\n"))
	require.NoError(t, err)
	assert.False(t, IsIdentity(changed))
	assert.False(t, IsIdentity([]byte("garbage")))
}

func TestBinaryCodecRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	oldContent := make([]byte, 4096)
	rng.Read(oldContent)
	oldContent[0] = 0xff

	newContent := append([]byte(nil), oldContent...)
	newContent[100] ^= 0x5a
	newContent = append(newContent, 0x00, 0x01, 0x02)

	patch, err := Binary.Generate(oldContent, newContent)
	require.NoError(t, err)
	got, err := Binary.Apply(oldContent, patch)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(newContent, got))
}

func TestFor(t *testing.T) {
	assert.Equal(t, "text", For([]byte("hello\n")).Name())
	assert.Equal(t, "binary", For([]byte{0xff, 0x00}).Name())
}

func TestStoreOrBase(t *testing.T) {
	t.Run("text diff", func(t *testing.T) {
		storage, payload, err := StoreOrBase([]byte("x\n"), []byte("y\n"))
		require.NoError(t, err)
		assert.Equal(t, StorageTextDiff, storage)
		assert.True(t, storage.IsDiff())

		got, err := Text.Apply([]byte("x\n"), payload)
		require.NoError(t, err)
		assert.Equal(t, "y\n", string(got))
	})

	t.Run("small binary falls back to base", func(t *testing.T) {
		prev := []byte{0xff, 0x01}
		next := []byte{0xfe, 0x02, 0x03}
		storage, payload, err := StoreOrBase(prev, next)
		require.NoError(t, err)
		assert.Equal(t, StorageBinaryBase, storage)
		assert.Equal(t, next, payload)
	})

	t.Run("large binary with small edit is a diff", func(t *testing.T) {
		prev := bytes.Repeat([]byte{0xff, 0x00, 0x13, 0x37}, 8192)
		next := append([]byte(nil), prev...)
		next[5000] = 0x42
		storage, payload, err := StoreOrBase(prev, next)
		require.NoError(t, err)
		assert.Equal(t, StorageBinaryDiff, storage)
		assert.Less(t, len(payload), len(next))
	})

	t.Run("unchanged text is rejected", func(t *testing.T) {
		_, _, err := StoreOrBase([]byte("same\n"), []byte("same\n"))
		assert.True(t, gerrors.HasType(err, gerrors.ErrorTypeValidation))
	})

	t.Run("text to binary is a base", func(t *testing.T) {
		storage, _, err := StoreOrBase([]byte("text\n"), []byte{0xff})
		require.NoError(t, err)
		assert.Equal(t, StorageBinaryBase, storage)
		assert.False(t, storage.IsDiff())
	})
}

func TestEngineFormat(t *testing.T) {
	e := NewEngine(1)
	result, err := e.Diff([]byte("a\nb\nc\nd\ne\n"), []byte("a\nb\nC\nd\ne\n"))
	require.NoError(t, err)

	require.Len(t, result.Hunks, 1)
	assert.Equal(t, 1, result.Stats.Additions)
	assert.Equal(t, 1, result.Stats.Deletions)
	assert.Equal(t, "@@ -2,3 +2,3 @@\n  b\n- c\n+ C\n  d\n", result.Format())

	none, err := e.Diff([]byte("same\n"), []byte("same\n"))
	require.NoError(t, err)
	assert.Empty(t, none.Hunks)
	assert.Equal(t, "", none.Format())
}
