package diff

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gible/internal/content"
	gerrors "gible/internal/errors"

	"github.com/gabstv/go-bsdiff/pkg/bsdiff"
	"github.com/gabstv/go-bsdiff/pkg/bspatch"
)

// Codec produces and replays reversible patches.
type Codec interface {
	Name() string
	Generate(oldContent, newContent []byte) ([]byte, error)
	Apply(base, patch []byte) ([]byte, error)
}

var (
	Text   Codec = TextCodec{}
	Binary Codec = BinaryCodec{}
)

// For picks the codec matching buf's classification.
func For(buf []byte) Codec {
	if content.IsText(buf) {
		return Text
	}
	return Binary
}

// TextCodec stores a JSON edit script: [[tag, i1, i2, j1, j2, lines|null], ...].
// Only replace and insert carry lines.
type TextCodec struct{}

func (TextCodec) Name() string { return "text" }

type scriptOp struct {
	OpCode
	Lines []string
}

func (op scriptOp) MarshalJSON() ([]byte, error) {
	var lines any
	if op.Lines != nil {
		lines = op.Lines
	}
	return json.Marshal([]any{op.Tag, op.I1, op.I2, op.J1, op.J2, lines})
}

func (op *scriptOp) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return gerrors.UnsupportedEntryKind("text diff op is not a list: %v", err)
	}
	if len(fields) != 6 {
		return gerrors.UnsupportedEntryKind("text diff op has %d fields, want 6", len(fields))
	}
	if err := json.Unmarshal(fields[0], &op.Tag); err != nil {
		return gerrors.UnsupportedEntryKind("text diff tag: %v", err)
	}
	for k, dst := range []*int{&op.I1, &op.I2, &op.J1, &op.J2} {
		if err := json.Unmarshal(fields[k+1], dst); err != nil {
			return gerrors.ValidationError(fmt.Sprintf("text diff range: %v", err), nil)
		}
	}
	op.Lines = nil
	if !bytes.Equal(bytes.TrimSpace(fields[5]), []byte("null")) {
		if err := json.Unmarshal(fields[5], &op.Lines); err != nil {
			return gerrors.ValidationError(fmt.Sprintf("text diff lines: %v", err), nil)
		}
	}
	return nil
}

func (TextCodec) Generate(oldContent, newContent []byte) ([]byte, error) {
	if !content.IsText(oldContent) || !content.IsText(newContent) {
		return nil, fmt.Errorf("text diff requires UTF-8 input on both sides")
	}

	newLines := SplitLines(newContent)
	codes := OpCodes(SplitLines(oldContent), newLines)

	script := make([]scriptOp, 0, len(codes))
	for _, code := range codes {
		op := scriptOp{OpCode: code}
		if code.Tag == TagReplace || code.Tag == TagInsert {
			op.Lines = make([]string, 0, code.J2-code.J1)
			for _, line := range newLines[code.J1:code.J2] {
				op.Lines = append(op.Lines, string(line))
			}
		}
		script = append(script, op)
	}

	patch, err := json.Marshal(script)
	if err != nil {
		return nil, fmt.Errorf("encoding text diff: %w", err)
	}
	return patch, nil
}

func decodeScript(patch []byte) ([]scriptOp, error) {
	var script []scriptOp
	if err := json.Unmarshal(patch, &script); err != nil {
		if gerrors.TypeOf(err) != "" {
			return nil, err
		}
		return nil, gerrors.UnsupportedEntryKind("malformed text diff: %v", err)
	}
	return script, nil
}

func (TextCodec) Apply(base, patch []byte) ([]byte, error) {
	script, err := decodeScript(patch)
	if err != nil {
		return nil, err
	}

	baseLines := SplitLines(base)
	out := make([]byte, 0, len(base))
	for _, op := range script {
		if op.I1 < 0 || op.I1 > op.I2 || op.I2 > len(baseLines) {
			return nil, gerrors.ValidationError(
				fmt.Sprintf("text diff range [%d:%d] outside %d base lines", op.I1, op.I2, len(baseLines)), nil)
		}

		switch op.Tag {
		case TagEqual:
			for _, line := range baseLines[op.I1:op.I2] {
				out = append(out, line...)
			}
		case TagReplace, TagInsert:
			if op.Lines == nil {
				return nil, gerrors.ValidationError(fmt.Sprintf("%s op without lines", op.Tag), nil)
			}
			for _, line := range op.Lines {
				out = append(out, line...)
			}
		case TagDelete:
		default:
			return nil, gerrors.UnsupportedEntryKind("unknown text diff tag %q", op.Tag)
		}
	}
	return out, nil
}

// IsIdentity reports whether a text patch changes nothing.
func IsIdentity(patch []byte) bool {
	script, err := decodeScript(patch)
	if err != nil {
		return false
	}
	for _, op := range script {
		if op.Tag != TagEqual {
			return false
		}
	}
	return true
}

// BinaryCodec wraps bsdiff/bspatch.
type BinaryCodec struct{}

func (BinaryCodec) Name() string { return "binary" }

func (BinaryCodec) Generate(oldContent, newContent []byte) ([]byte, error) {
	patch, err := bsdiff.Bytes(oldContent, newContent)
	if err != nil {
		return nil, fmt.Errorf("generating binary diff: %w", err)
	}
	return patch, nil
}

func (BinaryCodec) Apply(base, patch []byte) ([]byte, error) {
	out, err := bspatch.Bytes(base, patch)
	if err != nil {
		return nil, fmt.Errorf("applying binary diff: %w", err)
	}
	return out, nil
}

// Storage says how a changed file is recorded.
type Storage string

const (
	StorageBase       Storage = "base"
	StorageTextDiff   Storage = "text-diff"
	StorageBinaryDiff Storage = "binary-diff"
	StorageBinaryBase Storage = "binary-base"
)

// IsDiff reports whether the payload is a patch rather than full content.
func (s Storage) IsDiff() bool {
	return s == StorageTextDiff || s == StorageBinaryDiff
}

// StoreOrBase decides how to record next given the previous value prev.
// The codec follows prev's classification, since that is what
// reconstruction will pick when replaying the patch:
//   - text to text: always a text diff.
//   - binary prev: a binary diff only when strictly smaller than next.
//   - text to binary: a full base; the text script cannot carry the bytes.
func StoreOrBase(prev, next []byte) (Storage, []byte, error) {
	if content.IsText(prev) {
		if !content.IsText(next) {
			return StorageBinaryBase, next, nil
		}
		patch, err := Text.Generate(prev, next)
		if err != nil {
			return "", nil, err
		}
		if IsIdentity(patch) {
			return "", nil, gerrors.ValidationError("content is unchanged, nothing to record", nil)
		}
		return StorageTextDiff, patch, nil
	}

	patch, err := Binary.Generate(prev, next)
	if err != nil {
		return "", nil, err
	}
	if len(patch) < len(next) {
		return StorageBinaryDiff, patch, nil
	}
	return StorageBinaryBase, next, nil
}
