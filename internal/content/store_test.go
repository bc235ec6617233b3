package content

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressorHash(t *testing.T) {
	tests := []struct {
		name      string
		algorithm string
		input     []byte
		want      string
	}{
		{
			name:      "sha256 empty",
			algorithm: "sha256",
			input:     []byte{},
			want:      "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:      "default is sha256",
			algorithm: "",
			input:     []byte("abc"),
			want:      "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
		{
			name:      "blake3 empty",
			algorithm: "blake3",
			input:     []byte{},
			want:      "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAddressor(tt.algorithm)
			require.NoError(t, err)
			got := a.Hash(tt.input)
			assert.Equal(t, tt.want, got)
			assert.True(t, ValidOID(got))
			assert.Equal(t, got, a.Hash(tt.input))
		})
	}
}

func TestAddressorAlgorithm(t *testing.T) {
	a, err := NewAddressor("")
	require.NoError(t, err)
	assert.Equal(t, "sha256", a.Algorithm())

	a, err = NewAddressor("blake3")
	require.NoError(t, err)
	assert.Equal(t, "blake3", a.Algorithm())

	_, err = NewAddressor("md5")
	assert.Error(t, err)
}

func TestCompressRoundTrip(t *testing.T) {
	a, err := NewAddressor("sha256")
	require.NoError(t, err)

	inputs := [][]byte{
		{},
		[]byte("hello\n"),
		bytes.Repeat([]byte("gible "), 4096),
		{0x00, 0xff, 0x10, 0x80},
	}
	for _, in := range inputs {
		packed, err := a.Compress(in)
		require.NoError(t, err)
		out, err := a.Decompress(packed)
		require.NoError(t, err)
		assert.Equal(t, len(in), len(out))
		assert.True(t, bytes.Equal(in, out))
	}

	_, err = a.Decompress([]byte("not zlib"))
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ModeText, Classify([]byte("plain\n")))
	assert.Equal(t, ModeText, Classify([]byte{}))
	assert.Equal(t, ModeBinary, Classify([]byte{0xff, 0xfe, 0x00}))
	assert.True(t, ModeBinary.Valid())
	assert.False(t, Mode("other").Valid())
	assert.False(t, ValidOID("xyz"))
}
