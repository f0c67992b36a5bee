package io

// Serializable defines the binary encoding/decoding interface. Errors are
// returned directly instead of through the sticky reader/writer state, so
// implementations can report semantic failures as well.
type Serializable interface {
	DecodeBinary(*BinReader) error
	EncodeBinary(*BinWriter) error
}
