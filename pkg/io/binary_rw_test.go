package io

import (
	"bytes"
	"errors"
	gio "io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	bw := NewBufBinWriter()
	bw.WriteB(0x42)
	bw.WriteU16LE(0x1234)
	bw.WriteU16BE(0x1234)
	bw.WriteU32LE(0xdeadbeef)
	bw.WriteU32BE(0xdeadbeef)
	bw.WriteU64LE(0x0102030405060708)
	bw.WriteU64BE(0x0102030405060708)
	bw.WriteBytes([]byte("abc"))
	require.NoError(t, bw.Err)
	require.EqualValues(t, 32, bw.Written())

	data := bw.Bytes()
	require.Equal(t, 32, len(data))

	br := NewBinReaderFromBuf(data)
	assert.Equal(t, byte(0x42), br.ReadB())
	assert.Equal(t, uint16(0x1234), br.ReadU16LE())
	assert.Equal(t, uint16(0x1234), br.ReadU16BE())
	assert.Equal(t, uint32(0xdeadbeef), br.ReadU32LE())
	assert.Equal(t, uint32(0xdeadbeef), br.ReadU32BE())
	assert.Equal(t, uint64(0x0102030405060708), br.ReadU64LE())
	assert.Equal(t, uint64(0x0102030405060708), br.ReadU64BE())
	rest := make([]byte, 3)
	br.ReadBytes(rest)
	assert.Equal(t, []byte("abc"), rest)
	require.NoError(t, br.Err)
	assert.EqualValues(t, 32, br.Pos())
}

func TestReaderEOF(t *testing.T) {
	br := NewBinReaderFromBuf(nil)
	br.ReadB()
	assert.ErrorIs(t, br.Err, gio.EOF)

	br = NewBinReaderFromBuf([]byte{0x01})
	br.ReadU16LE()
	assert.ErrorIs(t, br.Err, gio.ErrUnexpectedEOF)
}

func TestReaderStickyError(t *testing.T) {
	br := NewBinReaderFromBuf([]byte{1, 2, 3, 4})
	br.Err = errors.New("failure")
	assert.Equal(t, byte(0), br.ReadB())
	assert.Equal(t, uint32(0), br.ReadU32LE())
	assert.EqualValues(t, 0, br.Pos())

	_, err := br.Read(make([]byte, 2))
	assert.Error(t, err)
	_, err = br.ReadByte()
	assert.Error(t, err)
}

func TestReadByteNotSticky(t *testing.T) {
	br := NewBinReaderFromBuf([]byte{0x7f})
	b, err := br.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x7f), b)

	_, err = br.ReadByte()
	assert.ErrorIs(t, err, gio.EOF)
	// The sticky error stays unset for raw byte access.
	assert.NoError(t, br.Err)
}

func TestPeek(t *testing.T) {
	br := NewBinReaderFromBuf([]byte{1, 2, 3})

	assert.Equal(t, []byte{1, 2}, br.Peek(2))
	assert.EqualValues(t, 0, br.Pos())
	// Peeking again returns the same bytes.
	assert.Equal(t, []byte{1}, br.Peek(1))
	// Peeking past the end is short, not an error.
	assert.Equal(t, []byte{1, 2, 3}, br.Peek(10))
	assert.NoError(t, br.Err)

	// Reads consume the lookahead first.
	assert.Equal(t, byte(1), br.ReadB())
	assert.Equal(t, byte(2), br.ReadB())
	assert.Equal(t, byte(3), br.ReadB())
	assert.EqualValues(t, 3, br.Pos())
	assert.Equal(t, 0, len(br.Peek(1)))
}

func TestPeekAcrossReads(t *testing.T) {
	br := NewBinReaderFromBuf([]byte{0xaa, 0xbb, 0xcc, 0xdd})
	_ = br.Peek(3)
	assert.Equal(t, uint16(0xbbaa), br.ReadU16LE())
	assert.Equal(t, []byte{0xcc, 0xdd}, br.Peek(2))
	assert.Equal(t, uint16(0xccdd), br.ReadU16BE())
	require.NoError(t, br.Err)
	assert.EqualValues(t, 4, br.Pos())
}

func TestWriterStickyError(t *testing.T) {
	bw := NewBufBinWriter()
	bw.WriteB(1)
	bw.Err = errors.New("failure")
	bw.WriteU32LE(5)
	bw.WriteBytes([]byte{1, 2, 3})
	assert.EqualValues(t, 1, bw.Written())
	assert.Nil(t, bw.Bytes())
}

func TestBufBinWriterDrain(t *testing.T) {
	bw := NewBufBinWriter()
	bw.WriteU16LE(0x55aa)
	require.NoError(t, bw.Err)
	assert.Equal(t, 2, bw.Len())
	assert.Equal(t, []byte{0xaa, 0x55}, bw.Bytes())

	// Drained buffer refuses further writes until Reset.
	bw.WriteB(1)
	assert.Error(t, bw.Err)

	bw.Reset()
	bw.WriteB(1)
	require.NoError(t, bw.Err)
	assert.Equal(t, []byte{1}, bw.Bytes())
}

func TestBinWriterToStream(t *testing.T) {
	var buf bytes.Buffer
	w := NewBinWriterFromIO(&buf)
	w.WriteU32BE(0x01020304)
	n, err := w.Write([]byte{5, 6})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, w.Err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, buf.Bytes())
	assert.EqualValues(t, 6, w.Written())
}
