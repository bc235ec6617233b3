package content

import "unicode/utf8"

// Mode classifies a buffer for codec selection.
type Mode string

const (
	ModeText   Mode = "text"
	ModeBinary Mode = "binary"
)

// IsText reports whether data decodes as UTF-8.
func IsText(data []byte) bool {
	return utf8.Valid(data)
}

// Classify returns the mode of data.
func Classify(data []byte) Mode {
	if IsText(data) {
		return ModeText
	}
	return ModeBinary
}

func (m Mode) Valid() bool {
	return m == ModeText || m == ModeBinary
}
