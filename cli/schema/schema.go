// Package schema implements commands inspecting and compiling format
// definition files.
package schema

import (
	"fmt"
	"os"

	"github.com/nspcc-dev/binrec/cli/options"
	"github.com/nspcc-dev/binrec/pkg/binding"
	"github.com/nspcc-dev/binrec/pkg/format"
	"github.com/urfave/cli/v2"
)

var (
	packageFlag = &cli.StringFlag{
		Name:     "package",
		Aliases:  []string{"p"},
		Usage:    "Package name for the generated source",
		Required: true,
	}
	outFlag = &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "Output file (stdout when omitted)",
	}
)

// NewCommands returns schema commands for the binrec CLI.
func NewCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "schema",
			Usage: "Inspect and compile format definitions",
			Subcommands: []*cli.Command{
				{
					Name:      "check",
					Usage:     "Parse format definitions and report problems",
					UsageText: "check <format.yml> [<format.yml>...]",
					Action:    handleCheck,
				},
				{
					Name:      "id",
					Usage:     "Print schema fingerprints",
					UsageText: "id -f format.yml [<record>...]",
					Action:    handleID,
					Flags:     []cli.Flag{options.Format},
				},
				{
					Name:      "gen",
					Usage:     "Generate Go struct bindings from a format definition",
					UsageText: "gen -f format.yml -p package [-o file]",
					Action:    handleGen,
					Flags:     []cli.Flag{options.Format, packageFlag, outFlag},
				},
			},
		},
	}
}

func handleCheck(ctx *cli.Context) error {
	if !ctx.Args().Present() {
		return cli.Exit("missing format file", 1)
	}
	var bad int
	for _, name := range ctx.Args().Slice() {
		set, err := format.Load(name)
		if err != nil {
			fmt.Fprintf(ctx.App.Writer, "%s: %s\n", name, err)
			bad++
			continue
		}
		fmt.Fprintf(ctx.App.Writer, "%s: OK, %d records\n", name, len(set.Names()))
	}
	if bad != 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files have problems", bad, ctx.Args().Len()), 1)
	}
	return nil
}

func handleID(ctx *cli.Context) error {
	set, err := options.ReadFormat(ctx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	names := ctx.Args().Slice()
	if len(names) == 0 {
		names = set.Names()
	}
	for _, name := range names {
		s, err := set.Schema(name)
		if err != nil {
			return cli.Exit(err, 1)
		}
		fmt.Fprintf(ctx.App.Writer, "%s\t%016x\n", name, s.Fingerprint())
	}
	return nil
}

func handleGen(ctx *cli.Context) error {
	set, err := options.ReadFormat(ctx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	cfg := binding.Config{
		Package: ctx.String("package"),
		Set:     set,
		Output:  ctx.App.Writer,
	}
	if name := ctx.String("out"); name != "" {
		f, err := os.Create(name)
		if err != nil {
			return cli.Exit(fmt.Errorf("can't create %q: %w", name, err), 1)
		}
		defer f.Close()
		cfg.Output = f
	}
	if err := binding.Generate(cfg); err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}
