package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/binrec/cli/convert"
	"github.com/nspcc-dev/binrec/cli/data"
	"github.com/nspcc-dev/binrec/cli/options"
	"github.com/nspcc-dev/binrec/cli/schema"
	"github.com/nspcc-dev/binrec/cli/vint"
	"github.com/nspcc-dev/binrec/pkg/config"
	"github.com/urfave/cli/v2"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "binrec\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a binrec instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "binrec"
	ctl.Version = config.Version
	ctl.Usage = "Declarative binary record codec"
	ctl.ErrWriter = os.Stdout
	ctl.Flags = []cli.Flag{options.Debug}

	ctl.Commands = append(ctl.Commands, data.NewCommands()...)
	ctl.Commands = append(ctl.Commands, schema.NewCommands()...)
	ctl.Commands = append(ctl.Commands, vint.NewCommands()...)
	ctl.Commands = append(ctl.Commands, convert.NewCommands()...)
	return ctl
}
