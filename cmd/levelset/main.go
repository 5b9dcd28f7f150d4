package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/linuxmatters/levelset/internal/cli"
)

var (
	version = "0.1.0"
)

// errInterrupted ends a run cancelled from the keyboard or by a signal
var errInterrupted = errors.New("interrupted")

// versionFlag prints the version and exits before any command runs
type versionFlag bool

func (v versionFlag) BeforeReset(app *kong.Kong, vars kong.Vars) error {
	cli.PrintVersion(vars["version"])
	app.Exit(0)
	return nil
}

// Globals are the flags shared by every command
type Globals struct {
	Version  versionFlag `short:"v" help:"Show version information"`
	Config   string      `type:"path" help:"Path to TOML settings file (optional)"`
	Meter    string      `placeholder:"ffmpeg|native" help:"Loudness meter (overrides settings)"`
	Cache    string      `type:"path" help:"Measurement cache database (overrides settings)"`
	NoCache  bool        `help:"Measure every file, ignoring the cache"`
	DebugLog string      `type:"path" help:"Append debug diagnostics to this file"`
	Verbose  bool        `help:"Print debug diagnostics to stderr"`
	NoTUI    bool        `name:"no-tui" help:"Plain line progress instead of the live display"`
}

// CLI defines the command-line interface
type CLI struct {
	Globals

	Analyze  AnalyzeCmd `cmd:"" help:"Measure the loudness of audio files"`
	Process  ProcessCmd `cmd:"" help:"Adjust gain and export audio files"`
	Preview  PreviewCmd `cmd:"" help:"Preview a gain change on one file without exporting"`
	CacheCmd CacheCmd   `cmd:"" name:"cache" help:"Show or clear the measurement cache"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// newParser builds the command-line parser. Flag values may start with a
// hyphen so that negative gains and targets parse, e.g. "-t -14".
func newParser(cliArgs *CLI, stdout, stderr io.Writer) (*kong.Kong, error) {
	return kong.New(cliArgs,
		kong.Name("levelset"),
		kong.Description("EBU R128 loudness analysis and gain processing"),
		kong.Vars{
			"version": version,
		},
		kong.Writers(stdout, stderr),
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
		kong.WithHyphenPrefixedParameters(true),
	)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cliArgs := &CLI{}
	parser, err := newParser(cliArgs, stdout, stderr)
	if err != nil {
		cli.PrintError(err.Error())
		return 1
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		cli.PrintError(err.Error())
		var parseErr *kong.ParseError
		if errors.As(err, &parseErr) {
			_ = parseErr.Context.PrintUsage(false)
		}
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Only the audio commands need ffmpeg
	audioTools := kctx.Selected() == nil || kctx.Selected().Name != "cache"
	app, err := newApp(cliArgs.Globals, audioTools, stdin, stdout, stderr)
	if err != nil {
		cli.PrintError(err.Error())
		return 1
	}
	defer app.Close()

	kctx.BindTo(ctx, (*context.Context)(nil))
	if err := kctx.Run(app); err != nil {
		return exitCode(err)
	}
	return 0
}

// exitCode reports a fatal error and maps it to the process exit status
func exitCode(err error) int {
	if errors.Is(err, errInterrupted) || errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr)
		cli.PrintWarning("Interrupted")
		return 130
	}
	cli.PrintError(err.Error())
	return 1
}
