// Package commands implements the docdeploy command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docdeploy/internal/config"
	ferrors "git.home.luguber.info/inful/docdeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/docdeploy/internal/logging"
	"git.home.luguber.info/inful/docdeploy/internal/version"
)

// SuccessMessage is printed to stdout after a complete deployment.
const SuccessMessage = "Documentation deployment completed successfully"

// Global is shared state bound into every command.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
	// Lookup reads environment values; nil means os.LookupEnv.
	Lookup config.LookupFunc
	// Components builds the builder, dialer and copier; zero value means the
	// real implementations.
	Components Components
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Settings file path" default:"docdeploy.yaml"`
	EnvFile   string           `name:"env-file" help:"Dotenv file loaded before reading the environment" default:".env"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log format (auto, text, json)" enum:"auto,text,json" default:"auto"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Deploy DeployCmd `cmd:"" default:"withargs" help:"Build the site and deploy it to the remote host (default)"`
	Build  BuildCmd  `cmd:"" help:"Build the site locally without deploying"`
	Check  CheckCmd  `cmd:"" help:"Verify credentials and inspect the remote target without changing it"`
}

// AfterApply runs after flag parsing; set up logging once.
func (c *CLI) AfterApply(g *Global) error {
	if g.Logger != nil {
		return nil
	}
	format, err := logging.ParseFormat(c.LogFormat)
	if err != nil {
		return err
	}
	g.Logger = logging.New(g.Stderr, logging.Options{Verbose: c.Verbose, Format: format})
	return nil
}

func (c *CLI) loadOptions(g *Global) config.LoadOptions {
	return config.LoadOptions{
		EnvFile:              c.EnvFile,
		EnvFileExplicit:      c.EnvFile != config.DefaultEnvFile,
		SettingsFile:         c.Config,
		SettingsFileExplicit: c.Config != config.DefaultSettingsFile,
		Lookup:               g.Lookup,
	}
}

type exitCode int

// Main parses args, runs the selected command and returns the process exit
// status.
func Main(ctx context.Context, args []string, g *Global) (code int) {
	if g.Stdout == nil {
		g.Stdout = os.Stdout
	}
	if g.Stderr == nil {
		g.Stderr = os.Stderr
	}

	// kong exits on --help and --version; turn that into a return value.
	defer func() {
		if r := recover(); r != nil {
			if c, ok := r.(exitCode); ok {
				code = int(c)
				return
			}
			panic(r)
		}
	}()

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("docdeploy"),
		kong.Description("Build a static documentation site and publish it to a web host over SSH."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Writers(g.Stdout, g.Stderr),
		kong.Exit(func(c int) { panic(exitCode(c)) }),
		kong.Bind(g, cli),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err != nil {
		fmt.Fprintf(g.Stderr, "Error: %v\n", err)
		return ferrors.ExitFailure
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(g.Stderr, "Error: %v\n", err)
		return ferrors.ExitFailure
	}

	if err := kctx.Run(); err != nil {
		return ferrors.NewCLIErrorAdapter(cli.Verbose, g.Logger).Report(g.Stderr, err)
	}
	return 0
}
