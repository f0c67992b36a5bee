package data

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const blobDoc = `
records:
  blob:
    fields:
      - name: length
        type: uint16
        length_of: payload
      - name: payload
        type: bytes
        size_ref: length
      - name: version
        type: uint8
        default: 7
`

func testApp(w *bytes.Buffer) *cli.App {
	app := cli.NewApp()
	app.Commands = NewCommands()
	app.Writer = w
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	fmtPath := writeTemp(t, "blob.yml", []byte(blobDoc))
	valsPath := writeTemp(t, "vals.yml", []byte("payload: abc\n"))
	binPath := filepath.Join(t.TempDir(), "out.bin")

	var buf bytes.Buffer
	app := testApp(&buf)
	require.NoError(t, app.Run([]string{"binrec", "data", "encode",
		"-f", fmtPath, "-r", "blob", "-i", valsPath, "-o", binPath}))
	require.Contains(t, buf.String(), "6 bytes written")

	data, err := os.ReadFile(binPath)
	require.NoError(t, err)
	require.Equal(t, []byte{0x03, 0x00, 'a', 'b', 'c', 0x07}, data)

	buf.Reset()
	require.NoError(t, app.Run([]string{"binrec", "data", "decode",
		"-f", fmtPath, "-r", "blob", binPath}))
	out := buf.String()
	require.Contains(t, out, `"length": 3`)
	require.Contains(t, out, `"payload": "616263"`)
	require.Contains(t, out, `"version": 7`)
	// JSON output follows declaration order, not key order
	require.Less(t, strings.Index(out, "length"), strings.Index(out, "payload"))
}

func TestDecodeYAML(t *testing.T) {
	fmtPath := writeTemp(t, "blob.yml", []byte(blobDoc))
	binPath := writeTemp(t, "in.bin", []byte{0x02, 0x00, 'h', 'i', 0x09})

	var buf bytes.Buffer
	app := testApp(&buf)
	require.NoError(t, app.Run([]string{"binrec", "data", "decode",
		"-f", fmtPath, "-r", "blob", "--yaml", binPath}))
	require.Contains(t, buf.String(), "length: 2\n")
	require.Contains(t, buf.String(), `payload: "6869"`)
	require.Contains(t, buf.String(), "version: 9\n")
}

func TestLZ4RoundTrip(t *testing.T) {
	fmtPath := writeTemp(t, "blob.yml", []byte(blobDoc))
	valsPath := writeTemp(t, "vals.yml", []byte("payload: abc\n"))
	binPath := filepath.Join(t.TempDir(), "out.lz4")

	var buf bytes.Buffer
	app := testApp(&buf)
	require.NoError(t, app.Run([]string{"binrec", "data", "encode",
		"-f", fmtPath, "-r", "blob", "-i", valsPath, "-o", binPath, "--lz4"}))

	packed, err := os.ReadFile(binPath)
	require.NoError(t, err)
	require.NotEqual(t, []byte{0x03, 0x00, 'a', 'b', 'c', 0x07}, packed)

	buf.Reset()
	require.NoError(t, app.Run([]string{"binrec", "data", "decode",
		"-f", fmtPath, "-r", "blob", "--lz4", binPath}))
	require.Contains(t, buf.String(), `"payload": "616263"`)
}

func TestDecodeUpTo(t *testing.T) {
	fmtPath := writeTemp(t, "blob.yml", []byte(blobDoc))
	// payload bytes only, no version byte
	binPath := writeTemp(t, "in.bin", []byte{0x02, 0x00, 'h', 'i'})

	var buf bytes.Buffer
	app := testApp(&buf)
	require.NoError(t, app.Run([]string{"binrec", "data", "decode",
		"-f", fmtPath, "-r", "blob", "--up-to", "payload", binPath}))
	require.Contains(t, buf.String(), `"payload": "6869"`)
}

func TestDecodeErrors(t *testing.T) {
	fmtPath := writeTemp(t, "blob.yml", []byte(blobDoc))
	binPath := writeTemp(t, "in.bin", []byte{0x02, 0x00, 'h', 'i', 0x09, 0xff})

	var buf bytes.Buffer
	app := testApp(&buf)
	err := app.Run([]string{"binrec", "data", "decode",
		"-f", fmtPath, "-r", "blob", binPath})
	require.ErrorContains(t, err, "bytes after record")

	err = app.Run([]string{"binrec", "data", "decode", "-f", fmtPath, "-r", "blob"})
	require.ErrorContains(t, err, "missing input file")

	err = app.Run([]string{"binrec", "data", "decode",
		"-f", fmtPath, "-r", "nope", binPath})
	require.ErrorContains(t, err, "unknown record")
}
