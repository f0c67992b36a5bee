package options

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"
)

func TestGetTimeoutContext(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		start := time.Now()
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		actualCtx, cancel := GetTimeoutContext(ctx)
		defer cancel()
		end := time.Now()
		dl, _ := actualCtx.Deadline()
		require.True(t, start.Before(dl) && dl.Before(end.Add(DefaultTimeout)))
	})

	t.Run("set", func(t *testing.T) {
		start := time.Now()
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.Duration("timeout", time.Duration(20), "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		actualCtx, cancel := GetTimeoutContext(ctx)
		defer cancel()
		end := time.Now()
		dl, _ := actualCtx.Deadline()
		require.True(t, start.Before(dl) && dl.Before(end.Add(time.Nanosecond*20)))
	})
}

func TestHandleLoggingParams(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		log, err := HandleLoggingParams(ctx)
		require.NoError(t, err)
		require.False(t, log.Core().Enabled(zapcore.DebugLevel))
		require.True(t, log.Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("debug", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.Bool("debug", true, "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		log, err := HandleLoggingParams(ctx)
		require.NoError(t, err)
		require.True(t, log.Core().Enabled(zapcore.DebugLevel))
	})
}

func TestReadFormat(t *testing.T) {
	doc := `
records:
  point:
    fields:
      - name: x
        type: int16
      - name: y
        type: int16
`
	path := filepath.Join(t.TempDir(), "point.yml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	set := flag.NewFlagSet("flagSet", flag.ExitOnError)
	set.String("format", path, "")
	set.String("record", "point", "")
	ctx := cli.NewContext(cli.NewApp(), set, nil)

	fs, err := ReadFormat(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"point"}, fs.Names())

	sch, err := ReadSchema(ctx)
	require.NoError(t, err)
	require.Equal(t, "point", sch.Name())

	t.Run("missing file", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("format", filepath.Join(t.TempDir(), "nope.yml"), "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		_, err := ReadFormat(ctx)
		require.Error(t, err)
	})
}
