// Package data implements decode and encode commands working on binary
// record files.
package data

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	gio "io"
	"math/big"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/nspcc-dev/binrec/cli/options"
	"github.com/nspcc-dev/binrec/pkg/record"
	json "github.com/nspcc-dev/go-ordered-json"
	"github.com/pierrec/lz4"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	yamlFlag = &cli.BoolFlag{
		Name:  "yaml",
		Usage: "Print the decoded record as YAML instead of JSON",
	}
	verboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Dump the decoded record with Go value details",
	}
	lz4Flag = &cli.BoolFlag{
		Name:  "lz4",
		Usage: "Treat the binary file as an lz4 frame",
	}
	upToFlag = &cli.StringFlag{
		Name:  "up-to",
		Usage: "Decode only the leading fields through the named one",
	}
	inFlag = &cli.StringFlag{
		Name:     "in",
		Aliases:  []string{"i"},
		Usage:    "YAML file with field values to encode",
		Required: true,
	}
	outFlag = &cli.StringFlag{
		Name:     "out",
		Aliases:  []string{"o"},
		Usage:    "Output file for the encoded record",
		Required: true,
	}
)

// NewCommands returns data commands for the binrec CLI.
func NewCommands() []*cli.Command {
	decodeFlags := []cli.Flag{options.Format, options.Record, options.Timeout,
		yamlFlag, verboseFlag, lz4Flag, upToFlag}
	encodeFlags := []cli.Flag{options.Format, options.Record, options.Timeout,
		inFlag, outFlag, lz4Flag}
	return []*cli.Command{
		{
			Name:  "data",
			Usage: "Decode and encode binary record files",
			Subcommands: []*cli.Command{
				{
					Name:      "decode",
					Usage:     "Decode a binary file and print its fields",
					UsageText: "decode -f format.yml -r record [--yaml] [--verbose] [--lz4] [--up-to field] <file>",
					Action:    handleDecode,
					Flags:     decodeFlags,
				},
				{
					Name:      "encode",
					Usage:     "Encode field values from a YAML file into binary",
					UsageText: "encode -f format.yml -r record -i values.yml -o out.bin [--lz4]",
					Action:    handleEncode,
					Flags:     encodeFlags,
				},
			},
		},
	}
}

func handleDecode(ctx *cli.Context) error {
	if !ctx.Args().Present() {
		return cli.Exit("missing input file", 1)
	}
	s, err := options.ReadSchema(ctx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	log, err := options.HandleLoggingParams(ctx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer func() { _ = log.Sync() }()

	name := ctx.Args().First()
	data, err := os.ReadFile(name)
	if err != nil {
		return cli.Exit(fmt.Errorf("can't read %q: %w", name, err), 1)
	}
	if ctx.Bool("lz4") {
		if data, err = unpack(data); err != nil {
			return cli.Exit(fmt.Errorf("can't decompress %q: %w", name, err), 1)
		}
	}
	log.Debug("decoding", zap.String("file", name), zap.String("record", s.Name()),
		zap.Int("bytes", len(data)))

	tctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	var rec *record.Record
	if upto := ctx.String("up-to"); upto != "" {
		rec, err = s.PartialDecode(tctx, bytes.NewReader(data), upto)
	} else {
		rec, err = s.DecodeBytes(tctx, data)
	}
	if err != nil {
		return cli.Exit(err, 1)
	}
	return printRecord(ctx, tctx, rec)
}

func printRecord(ctx *cli.Context, opCtx context.Context, rec *record.Record) error {
	m, err := rec.Map(opCtx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	if ctx.Bool("verbose") {
		spew.Fdump(ctx.App.Writer, m)
		return nil
	}
	if ctx.Bool("yaml") {
		out, err := yaml.Marshal(plainValue(m))
		if err != nil {
			return cli.Exit(err, 1)
		}
		fmt.Fprint(ctx.App.Writer, string(out))
		return nil
	}
	out, err := json.MarshalIndent(orderedView(rec.Schema(), m), "", "  ")
	if err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, string(out))
	return nil
}

func handleEncode(ctx *cli.Context) error {
	s, err := options.ReadSchema(ctx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	raw, err := os.ReadFile(ctx.String("in"))
	if err != nil {
		return cli.Exit(fmt.Errorf("can't read values: %w", err), 1)
	}
	var vals map[string]any
	if err := yaml.Unmarshal(raw, &vals); err != nil {
		return cli.Exit(fmt.Errorf("can't parse values: %w", err), 1)
	}
	rec, err := s.NewRecord(vals)
	if err != nil {
		return cli.Exit(err, 1)
	}

	tctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	data, err := rec.EncodeBytes(tctx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	if ctx.Bool("lz4") {
		if data, err = pack(data); err != nil {
			return cli.Exit(fmt.Errorf("can't compress: %w", err), 1)
		}
	}
	name := ctx.String("out")
	if err := os.WriteFile(name, data, 0644); err != nil {
		return cli.Exit(fmt.Errorf("can't write %q: %w", name, err), 1)
	}
	fmt.Fprintf(ctx.App.Writer, "%d bytes written to %s\n", len(data), name)
	return nil
}

// orderedView arranges a flattened record into declaration order for JSON
// output, descending into nested records where the schema is known.
func orderedView(s *record.Schema, m map[string]any) json.OrderedObject {
	out := make(json.OrderedObject, 0, len(m))
	for _, f := range s.Fields() {
		if f.Discarded() {
			continue
		}
		v, ok := m[f.Name()]
		if !ok {
			continue
		}
		out = append(out, json.Member{Key: f.Name(), Value: fieldView(f, v)})
	}
	return out
}

func fieldView(f *record.FieldSpec, v any) any {
	if inner := f.Inner(); inner != nil {
		if m, ok := v.(map[string]any); ok {
			return orderedView(inner, m)
		}
	}
	if elem := f.Elem(); elem != nil {
		if s, ok := v.([]any); ok {
			out := make([]any, len(s))
			for i, e := range s {
				out[i] = fieldView(elem, e)
			}
			return out
		}
	}
	return plainValue(v)
}

// plainValue rewrites engine-specific values into ones generic marshalers
// handle: sentinels become nulls, byte strings become hex, big integers
// degrade to int64 where they fit and decimal strings where they don't.
func plainValue(v any) any {
	switch x := v.(type) {
	case record.Sentinel:
		return nil
	case []byte:
		return hex.EncodeToString(x)
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		return x.String()
	case uuid.UUID:
		return x.String()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plainValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plainValue(e)
		}
		return out
	}
	return v
}

// pack wraps data into an lz4 frame.
func pack(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// unpack reads a whole lz4 frame back.
func unpack(data []byte) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(data))
	return gio.ReadAll(zr)
}
