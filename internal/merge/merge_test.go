package merge

import (
	"strings"
	"testing"

	gerrors "gible/internal/errors"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeText(t *testing.T) {
	tests := []struct {
		name               string
		base, ours, theirs string
		want               string
		conflicted         bool
	}{
		{
			name: "disjoint edits",
			base: "a\nb\nc\nd\ne\n", ours: "A\nb\nc\nd\ne\n", theirs: "a\nb\nc\nd\nE\n",
			want: "A\nb\nc\nd\nE\n",
		},
		{
			name: "same edit on both sides",
			base: "a\nb\nc\n", ours: "a\nX\nc\n", theirs: "a\nX\nc\n",
			want: "a\nX\nc\n",
		},
		{
			name: "one side appends",
			base: "a\n", ours: "a\n", theirs: "a\nb\n",
			want: "a\nb\n",
		},
		{
			name: "edits on adjacent lines merge",
			base: "1\n2\n3\n4\n", ours: "1\nTWO\n3\n4\n", theirs: "1\n2\nTHREE\n4\n",
			want: "1\nTWO\nTHREE\n4\n",
		},
		{
			name: "same line changed differently",
			base: "a\nb\nc\n", ours: "a\nours\nc\n", theirs: "a\ntheirs\nc\n",
			want:       "a\n<<<<<<< HEAD\nours\n=======\ntheirs\n>>>>>>> feature\nc\n",
			conflicted: true,
		},
		{
			name: "inserts at the same point",
			base: "a\nz\n", ours: "a\nfrom ours\nz\n", theirs: "a\nfrom theirs\nz\n",
			want:       "a\n<<<<<<< HEAD\nfrom ours\n=======\nfrom theirs\n>>>>>>> feature\nz\n",
			conflicted: true,
		},
		{
			name: "unterminated last line gets a newline before the marker",
			base: "a", ours: "b", theirs: "c",
			want:       "<<<<<<< HEAD\nb\n=======\nc\n>>>>>>> feature\n",
			conflicted: true,
		},
		{
			name: "delete against edit of the same line",
			base: "a\nb\nc\n", ours: "a\nc\n", theirs: "a\nB\nc\n",
			want:       "a\n<<<<<<< HEAD\n=======\nB\n>>>>>>> feature\nc\n",
			conflicted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, conflicted := MergeText([]byte(tt.base), []byte(tt.ours), []byte(tt.theirs), "feature")
			assert.Equal(t, tt.want, string(got))
			assert.Equal(t, tt.conflicted, conflicted)
		})
	}
}

func TestClassify(t *testing.T) {
	b := func(s string) []byte { return []byte(s) }
	bin := []byte{0xff, 0xfe}

	tests := []struct {
		name               string
		base, ours, theirs []byte
		action             Action
		content            string
		kind               ConflictKind
	}{
		{"both deleted", b("x"), nil, nil, ActionDelete, "", ""},
		{"ours deleted, theirs unchanged", b("x"), nil, b("x"), ActionDelete, "", ""},
		{"theirs deleted, ours unchanged", b("x"), b("x"), nil, ActionDelete, "", ""},
		{"ours deleted, theirs modified", b("x"), nil, b("y"), ActionConflict, "y", ConflictDeleteModify},
		{"theirs deleted, ours modified", b("x"), b("y"), nil, ActionConflict, "y", ConflictDeleteModify},
		{"added on theirs only", nil, nil, b("new"), ActionTake, "new", ""},
		{"added on ours only", nil, b("new"), nil, ActionTake, "new", ""},
		{"unchanged", b("x"), b("x"), b("x"), ActionTake, "x", ""},
		{"theirs changed", b("x"), b("x"), b("y"), ActionTake, "y", ""},
		{"ours changed", b("x"), b("y"), b("x"), ActionTake, "y", ""},
		{"changed identically", b("x"), b("z"), b("z"), ActionTake, "z", ""},
		{"binary diverged keeps ours", bin, []byte{0xff, 0x01}, []byte{0xff, 0x02}, ActionConflict, "\xff\x01", ConflictBinary},
		{"text merges cleanly", b("1\n2\n3\n"), b("one\n2\n3\n"), b("1\n2\nthree\n"), ActionTake, "one\n2\nthree\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(tt.base, tt.ours, tt.theirs, "feature")
			assert.Equal(t, tt.action, d.Action, d.Action.String())
			assert.Equal(t, tt.content, string(d.Content))
			assert.Equal(t, tt.kind, d.Kind)
		})
	}

	d := Classify([]byte("a\nb\n"), []byte("a\nB1\n"), []byte("a\nB2\n"), "feature")
	assert.Equal(t, ActionConflict, d.Action)
	assert.Equal(t, ConflictContent, d.Kind)
	assert.Contains(t, string(d.Content), "<<<<<<< HEAD")
}

func TestState(t *testing.T) {
	fs := memfs.New()
	s := NewState(fs)

	_, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	id := strings.Repeat("c", 64)
	require.NoError(t, s.Save(id))
	got, ok, err := s.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear(), "clearing twice is fine")

	require.NoError(t, util.WriteFile(fs, HeadFile, []byte("garbage"), 0644))
	_, _, err = s.Load()
	assert.True(t, gerrors.HasType(err, gerrors.ErrorTypeCorruptMetadata))
}

func TestConflictStore(t *testing.T) {
	fs := memfs.New()
	store := NewConflictStore(fs)

	records, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, records)

	mergeID := NewMergeID()
	text := NewRecord("dir/a.txt", ConflictContent, mergeID, []byte("b\n"), []byte("o\n"), []byte("t\n"))
	binary := NewRecord("a_txt", ConflictDeleteModify, mergeID, []byte{0xff}, nil, []byte{0x00, 0xfe})
	require.NoError(t, store.Write(text))
	require.NoError(t, store.Write(binary))

	ok, err := util.ReadFile(fs, "merge_conflicts/dir%2Fa.txt.json")
	require.NoError(t, err)
	assert.Contains(t, string(ok), `"status": "conflict"`)

	records, err = store.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a_txt", records[0].File)
	assert.Equal(t, EncodingBase64, records[0].Encoding)
	assert.Nil(t, records[0].Ours)
	theirs, err := records[0].Decode(records[0].Theirs)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xfe}, theirs)

	assert.Equal(t, "dir/a.txt", records[1].File)
	assert.Equal(t, EncodingText, records[1].Encoding)
	assert.Equal(t, "o\n", *records[1].Ours)
	assert.Equal(t, mergeID, records[1].MergeID)

	require.NoError(t, store.Clear())
	records, err = store.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}
