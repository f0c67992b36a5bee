package convert

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestParseInteger(t *testing.T) {
	out := Parse("256")
	require.Contains(t, out, "Integer to LE Hex\t0001\n")
	require.Contains(t, out, "Integer to Base64\tAAE=\n")
	require.Contains(t, out, "Integer to ULEB128\t8002\n")
	require.Contains(t, out, "Integer to VLQ\t8200\n")
	require.Contains(t, out, "Integer to Compact\tfd0001\n")
	require.Contains(t, out, "Integer to LEB128\t8002\n")
}

func TestParseNegative(t *testing.T) {
	out := Parse("-1")
	require.Contains(t, out, "Integer to LE Hex\tff\n")
	require.Contains(t, out, "Integer to LEB128\t7f\n")
	// unsigned renditions make no sense for negative values
	require.NotContains(t, out, "ULEB128")
	require.NotContains(t, out, "Compact")
}

func TestParseHex(t *testing.T) {
	out := Parse("0102ff")
	require.Contains(t, out, "Hex to Integer\t-65023\n")
	require.Contains(t, out, "Hex to Base64\tAQL/\n")
	require.Contains(t, out, "Swap Endianness\tff0201\n")

	// a 0x prefix is accepted for the hex reading
	require.Contains(t, Parse("0xff"), "Hex to Integer\t-1\n")
}

func TestParseString(t *testing.T) {
	out := Parse("hi")
	require.Contains(t, out, "String to Hex\t6869\n")
	require.Contains(t, out, "String to Base64\taGk=\n")
	// not a decimal integer and not valid hex
	require.NotContains(t, out, "Integer to")
	require.NotContains(t, out, "Hex to")
}

func TestConvertCommand(t *testing.T) {
	var buf bytes.Buffer
	app := cli.NewApp()
	app.Commands = NewCommands()
	app.Writer = &buf
	app.ExitErrHandler = func(*cli.Context, error) {}

	require.NoError(t, app.Run([]string{"binrec", "convert", "7"}))
	require.Contains(t, buf.String(), "Integer to LE Hex\t07\n")

	err := app.Run([]string{"binrec", "convert"})
	require.ErrorContains(t, err, "missing argument")
}
