// Package convert implements a helper command interpreting a byte-string
// argument in every representation it could carry.
package convert

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/binrec/pkg/encoding/bigint"
	"github.com/nspcc-dev/binrec/pkg/varint"
	"github.com/urfave/cli/v2"
)

// NewCommands returns the convert command for the binrec CLI.
func NewCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "convert",
			Usage: "Convert provided argument into other possible formats",
			UsageText: `convert <arg>

<arg> is tried as a decimal integer, a hex string, base64, base58 and a raw
        string; every interpretation that works is printed with its other views.`,
			Action: handleConvert,
		},
	}
}

func handleConvert(ctx *cli.Context) error {
	if !ctx.Args().Present() {
		return cli.Exit("missing argument", 1)
	}
	fmt.Fprint(ctx.App.Writer, Parse(ctx.Args().First()))
	return nil
}

// Parse renders every interpretation of arg: integers get their byte and
// varint forms, encoded byte strings get re-encoded the other ways, and
// the raw string views always close the output.
func Parse(arg string) string {
	buf := bytes.NewBuffer(nil)
	if val, err := strconv.ParseInt(arg, 10, 64); err == nil {
		bs := minimalBytes(big.NewInt(val))
		fmt.Fprintf(buf, "Integer to LE Hex\t%s\n", hex.EncodeToString(bs))
		fmt.Fprintf(buf, "Integer to Base64\t%s\n", base64.StdEncoding.EncodeToString(bs))
		fmt.Fprintf(buf, "Integer to LEB128\t%s\n", hex.EncodeToString(varint.AppendLEB128(nil, val)))
		if val >= 0 {
			fmt.Fprintf(buf, "Integer to ULEB128\t%s\n", hex.EncodeToString(varint.AppendULEB128(nil, uint64(val))))
			fmt.Fprintf(buf, "Integer to VLQ\t%s\n", hex.EncodeToString(varint.AppendVLQ(nil, uint64(val))))
			fmt.Fprintf(buf, "Integer to Compact\t%s\n", hex.EncodeToString(varint.AppendCompact(nil, uint64(val))))
		}
	}
	noX := strings.TrimPrefix(arg, "0x")
	if raw, err := hex.DecodeString(noX); err == nil {
		fmt.Fprintf(buf, "Hex to String\t%q\n", string(raw))
		fmt.Fprintf(buf, "Hex to Integer\t%s\n", bigint.FromBytes(raw))
		fmt.Fprintf(buf, "Hex to Base64\t%s\n", base64.StdEncoding.EncodeToString(raw))
		fmt.Fprintf(buf, "Hex to Base58\t%s\n", base58.Encode(raw))
		fmt.Fprintf(buf, "Swap Endianness\t%s\n", hex.EncodeToString(reversed(raw)))
	}
	if raw, err := base64.StdEncoding.DecodeString(arg); err == nil {
		fmt.Fprintf(buf, "Base64 to String\t%q\n", string(raw))
		fmt.Fprintf(buf, "Base64 to BigInteger\t%s\n", bigint.FromBytes(raw))
		fmt.Fprintf(buf, "Base64 to Hex\t%s\n", hex.EncodeToString(raw))
	}
	if raw, err := base58.Decode(arg); err == nil {
		fmt.Fprintf(buf, "Base58 to String\t%q\n", string(raw))
		fmt.Fprintf(buf, "Base58 to Hex\t%s\n", hex.EncodeToString(raw))
	}
	fmt.Fprintf(buf, "String to Hex\t%s\n", hex.EncodeToString([]byte(arg)))
	fmt.Fprintf(buf, "String to Base64\t%s\n", base64.StdEncoding.EncodeToString([]byte(arg)))
	fmt.Fprintf(buf, "String to Base58\t%s\n", base58.Encode([]byte(arg)))
	return buf.String()
}

// minimalBytes is the shortest little-endian two's-complement form of n.
func minimalBytes(n *big.Int) []byte {
	width := n.BitLen()/8 + 1
	bs, err := bigint.ToBytes(n, width, true)
	if err != nil {
		return nil
	}
	return bs
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = b[len(b)-1-i]
	}
	return out
}
