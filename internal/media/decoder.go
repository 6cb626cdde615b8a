package media

import (
	"io"
)

// Decoder turns an encoded audio stream into a Clip
type Decoder interface {
	// Decode reads encoded audio from reader and returns a fully decoded clip
	Decode(reader io.Reader) (*Clip, error)

	// CanDecode checks if this decoder can handle the given filename
	CanDecode(filename string) bool

	// FormatName returns the name of the format this decoder handles
	FormatName() string
}
