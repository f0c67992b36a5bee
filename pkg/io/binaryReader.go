package io

import (
	"bytes"
	"encoding/binary"
	"io"
)

// BinReader is a convenient wrapper around an io.Reader and err object.
// Used to simplify error handling when reading a structure with many fields.
// It keeps count of the bytes consumed, which codecs report as field offsets.
type BinReader struct {
	r    io.Reader
	Err  error
	pos  int64
	peek []byte
	u    [8]byte
}

// NewBinReaderFromIO makes a BinReader from io.Reader.
func NewBinReaderFromIO(ior io.Reader) *BinReader {
	return &BinReader{r: ior}
}

// NewBinReaderFromBuf makes a BinReader from byte buffer.
func NewBinReaderFromBuf(b []byte) *BinReader {
	return NewBinReaderFromIO(bytes.NewReader(b))
}

// Pos returns the number of bytes consumed so far. Peeked but not yet
// consumed bytes don't count.
func (r *BinReader) Pos() int64 {
	return r.pos
}

// Buffered returns the number of peeked bytes not consumed yet.
func (r *BinReader) Buffered() int {
	return len(r.peek)
}

// Read implements io.Reader. Unlike the typed helpers it doesn't touch the
// sticky error (apart from honoring it), the caller deals with io errors
// itself. Short reads drain the lookahead buffer first.
func (r *BinReader) Read(p []byte) (int, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if len(r.peek) > 0 {
		n := copy(p, r.peek)
		r.peek = r.peek[n:]
		r.pos += int64(n)
		return n, nil
	}
	n, err := r.r.Read(p)
	r.pos += int64(n)
	return n, err
}

// ReadByte implements io.ByteReader without touching the sticky error.
func (r *BinReader) ReadByte() (byte, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	if len(r.peek) > 0 {
		b := r.peek[0]
		r.peek = r.peek[1:]
		r.pos++
		return b, nil
	}
	var b [1]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, err
	}
	r.pos++
	return b[0], nil
}

// Peek returns up to n bytes of lookahead without consuming them. The result
// may be shorter than n when the source ends first; it stays valid until the
// next read. Peek never sets the sticky error, probing past the end of input
// is not a reader failure.
func (r *BinReader) Peek(n int) []byte {
	if r.Err != nil || n <= 0 {
		return nil
	}
	if d := n - len(r.peek); d > 0 {
		chunk := make([]byte, d)
		m, _ := io.ReadFull(r.r, chunk)
		r.peek = append(r.peek, chunk[:m]...)
	}
	if len(r.peek) > n {
		return r.peek[:n]
	}
	return r.peek
}

// ReadBytes fills the given slice from the underlying reader. On a short
// source it sets io.EOF when nothing at all was read and io.ErrUnexpectedEOF
// otherwise.
func (r *BinReader) ReadBytes(b []byte) {
	if r.Err != nil {
		return
	}
	_, r.Err = io.ReadFull(r, b)
}

// ReadB reads a single byte.
func (r *BinReader) ReadB() byte {
	r.ReadBytes(r.u[:1])
	if r.Err != nil {
		return 0
	}
	return r.u[0]
}

// ReadU16LE reads a little-endian uint16.
func (r *BinReader) ReadU16LE() uint16 {
	r.ReadBytes(r.u[:2])
	if r.Err != nil {
		return 0
	}
	return binary.LittleEndian.Uint16(r.u[:2])
}

// ReadU16BE reads a big-endian uint16.
func (r *BinReader) ReadU16BE() uint16 {
	r.ReadBytes(r.u[:2])
	if r.Err != nil {
		return 0
	}
	return binary.BigEndian.Uint16(r.u[:2])
}

// ReadU32LE reads a little-endian uint32.
func (r *BinReader) ReadU32LE() uint32 {
	r.ReadBytes(r.u[:4])
	if r.Err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(r.u[:4])
}

// ReadU32BE reads a big-endian uint32.
func (r *BinReader) ReadU32BE() uint32 {
	r.ReadBytes(r.u[:4])
	if r.Err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(r.u[:4])
}

// ReadU64LE reads a little-endian uint64.
func (r *BinReader) ReadU64LE() uint64 {
	r.ReadBytes(r.u[:8])
	if r.Err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(r.u[:8])
}

// ReadU64BE reads a big-endian uint64.
func (r *BinReader) ReadU64BE() uint64 {
	r.ReadBytes(r.u[:8])
	if r.Err != nil {
		return 0
	}
	return binary.BigEndian.Uint64(r.u[:8])
}
