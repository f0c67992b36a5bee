// Package vint provides commands to work with variable-length integers.
package vint

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nspcc-dev/binrec/pkg/varint"
	"github.com/urfave/cli/v2"
)

var schemeFlag = &cli.StringFlag{
	Name:    "scheme",
	Aliases: []string{"s"},
	Value:   "uleb128",
	Usage:   "Varint scheme (uleb128, leb128, vlq, compact)",
}

// NewCommands returns vint commands for the binrec CLI.
func NewCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "vint",
			Usage: "Variable-length integer utilities",
			Subcommands: []*cli.Command{
				{
					Name:      "encode",
					Usage:     "Encode an integer and print its hex form",
					UsageText: "encode [-s scheme] <value>",
					Action:    handleEncode,
					Flags:     []cli.Flag{schemeFlag},
				},
				{
					Name:      "decode",
					Usage:     "Decode a hex-encoded varint and print its value",
					UsageText: "decode [-s scheme] <hex>",
					Action:    handleDecode,
					Flags:     []cli.Flag{schemeFlag},
				},
				{
					Name:      "size",
					Usage:     "Print the encoded byte size of an integer",
					UsageText: "size [-s scheme] <value>",
					Action:    handleSize,
					Flags:     []cli.Flag{schemeFlag},
				},
			},
		},
	}
}

func schemeArg(ctx *cli.Context) (varint.Scheme, string, error) {
	s, err := varint.ParseScheme(ctx.String("scheme"))
	if err != nil {
		return 0, "", err
	}
	if !ctx.Args().Present() {
		return 0, "", errors.New("missing argument")
	}
	return s, ctx.Args().First(), nil
}

func encodeValue(s varint.Scheme, arg string) ([]byte, error) {
	if s.Signed() {
		v, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not a signed integer: %q", arg)
		}
		return varint.AppendLEB128(nil, v), nil
	}
	v, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("not an unsigned integer: %q", arg)
	}
	switch s {
	case varint.VLQ:
		return varint.AppendVLQ(nil, v), nil
	case varint.CompactIndex:
		return varint.AppendCompact(nil, v), nil
	default:
		return varint.AppendULEB128(nil, v), nil
	}
}

func handleEncode(ctx *cli.Context) error {
	s, arg, err := schemeArg(ctx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	b, err := encodeValue(s, arg)
	if err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, hex.EncodeToString(b))
	return nil
}

func handleDecode(ctx *cli.Context) error {
	s, arg, err := schemeArg(ctx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	b, err := hex.DecodeString(strings.TrimPrefix(arg, "0x"))
	if err != nil {
		return cli.Exit(fmt.Errorf("not a hex string: %q", arg), 1)
	}
	r := bytes.NewReader(b)
	var (
		out string
		n   int
	)
	if s.Signed() {
		v, cnt, err := varint.DecodeLEB128(r, varint.Limit{})
		if err != nil {
			return cli.Exit(err, 1)
		}
		out, n = strconv.FormatInt(v, 10), cnt
	} else {
		var (
			v   uint64
			cnt int
		)
		switch s {
		case varint.VLQ:
			v, cnt, err = varint.DecodeVLQ(r, varint.Limit{})
		case varint.CompactIndex:
			v, cnt, err = varint.DecodeCompact(r, varint.Limit{})
		default:
			v, cnt, err = varint.DecodeULEB128(r, varint.Limit{})
		}
		if err != nil {
			return cli.Exit(err, 1)
		}
		out, n = strconv.FormatUint(v, 10), cnt
	}
	if n != len(b) {
		return cli.Exit(fmt.Errorf("%d trailing bytes after a %d-byte value", len(b)-n, n), 1)
	}
	fmt.Fprintln(ctx.App.Writer, out)
	return nil
}

func handleSize(ctx *cli.Context) error {
	s, arg, err := schemeArg(ctx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	var n int
	if s.Signed() {
		v, perr := strconv.ParseInt(arg, 10, 64)
		if perr != nil {
			return cli.Exit(fmt.Errorf("not a signed integer: %q", arg), 1)
		}
		n = varint.SizeLEB128(v)
	} else {
		v, perr := strconv.ParseUint(arg, 10, 64)
		if perr != nil {
			return cli.Exit(fmt.Errorf("not an unsigned integer: %q", arg), 1)
		}
		switch s {
		case varint.VLQ:
			n = varint.SizeVLQ(v)
		case varint.CompactIndex:
			n = varint.SizeCompact(v)
		default:
			n = varint.SizeULEB128(v)
		}
	}
	fmt.Fprintln(ctx.App.Writer, n)
	return nil
}
