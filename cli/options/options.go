/*
Package options contains a set of common CLI options and helper functions to use them.
*/
package options

import (
	"context"
	"fmt"
	"time"

	"github.com/nspcc-dev/binrec/pkg/format"
	"github.com/nspcc-dev/binrec/pkg/record"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultTimeout is the default timeout used for codec operations.
const DefaultTimeout = 10 * time.Second

// Debug is a flag for commands that allow debug logging.
var Debug = &cli.BoolFlag{
	Name:    "debug",
	Aliases: []string{"d"},
	Usage:   "Enable debug logging (LOTS of output)",
}

// Format is a flag for commands that read a format definition file.
var Format = &cli.StringFlag{
	Name:     "format",
	Aliases:  []string{"f"},
	Usage:    "YAML format definition file",
	Required: true,
}

// Record is a flag for commands that work with a single record of a format.
var Record = &cli.StringFlag{
	Name:     "record",
	Aliases:  []string{"r"},
	Usage:    "Record name within the format definition",
	Required: true,
}

// Timeout is a flag for commands that run the codec engine.
var Timeout = &cli.DurationFlag{
	Name:  "timeout",
	Value: DefaultTimeout,
	Usage: "Timeout for the operation",
}

// HandleLoggingParams builds a console zap logger from command line
// parameters. The debug flag raises the level to DEBUG, everything else
// stays at INFO.
func HandleLoggingParams(ctx *cli.Context) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if ctx.Bool("debug") {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil
	return cc.Build()
}

// GetTimeoutContext returns a context.Context with the default or a user-set timeout.
func GetTimeoutContext(ctx *cli.Context) (context.Context, func()) {
	dur := ctx.Duration("timeout")
	if dur == 0 {
		dur = DefaultTimeout
	}
	return context.WithTimeout(context.Background(), dur)
}

// ReadFormat loads and parses the format definition named by the format flag.
func ReadFormat(ctx *cli.Context) (*format.Set, error) {
	name := ctx.String("format")
	set, err := format.Load(name)
	if err != nil {
		return nil, fmt.Errorf("format %q: %w", name, err)
	}
	return set, nil
}

// ReadSchema loads the format definition and picks the record named by the
// record flag from it.
func ReadSchema(ctx *cli.Context) (*record.Schema, error) {
	set, err := ReadFormat(ctx)
	if err != nil {
		return nil, err
	}
	return set.Schema(ctx.String("record"))
}
