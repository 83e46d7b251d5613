package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/larsks/npsctl/internal/logsetup"
	"github.com/larsks/npsctl/internal/npsctl"
	"github.com/larsks/npsctl/internal/version"
	"github.com/spf13/pflag"
)

// Exit codes
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// CLI represents the command line interface
type CLI struct {
	stdout io.Writer
	stderr io.Writer
}

// NewCLI creates a new CLI instance
func NewCLI(stdout, stderr io.Writer) *CLI {
	return &CLI{
		stdout: stdout,
		stderr: stderr,
	}
}

// CommandArgs represents parsed command line arguments
type CommandArgs struct {
	Command string
	Config  *npsctl.Config
	Usage   string
}

// ParseArgsWithFlagSet parses command line arguments with a custom flag set (for testing)
func ParseArgsWithFlagSet(args []string, fs *pflag.FlagSet) (*CommandArgs, error) {
	versionFlag := fs.Bool("version", false, "Show version and exit")
	helpFlag := fs.BoolP("help", "h", false, "Show help")

	cfg := npsctl.NewConfig()
	cfg.AddFlags(fs)

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", npsctl.ErrUsage, err)
	}

	cmdArgs := &CommandArgs{Config: cfg, Usage: fs.FlagUsages()}

	switch {
	case *versionFlag:
		cmdArgs.Command = "version"
		return cmdArgs, nil
	case *helpFlag, len(args) == 0:
		cmdArgs.Command = "help"
		return cmdArgs, nil
	}

	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments: %v", npsctl.ErrUsage, fs.Args())
	}

	if err := cfg.LoadConfigWithFlagSet(fs); err != nil {
		return nil, fmt.Errorf("%w: failed to load config: %w", npsctl.ErrUsage, err)
	}

	cmdArgs.Command = "run"
	return cmdArgs, nil
}

// Execute runs the specified command
func (c *CLI) Execute(ctx context.Context, cmdArgs *CommandArgs) error {
	switch cmdArgs.Command {
	case "version":
		version.Fprint(c.stdout)
		return nil
	case "help":
		c.showHelp(cmdArgs.Usage)
		return nil
	case "run":
		return c.run(ctx, cmdArgs.Config)
	default:
		return fmt.Errorf("unknown command: %s", cmdArgs.Command)
	}
}

// run validates everything before touching the network, so bad input
// never reaches the device.
func (c *CLI) run(ctx context.Context, cfg *npsctl.Config) error {
	req, err := cfg.Request()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logsetup.New(c.stderr, cfg.Debug)
	handler := npsctl.NewHandler(cfg,
		npsctl.WithStdout(c.stdout),
		npsctl.WithLogger(logger),
	)
	return handler.Run(ctx, req)
}

func (c *CLI) showHelp(usage string) {
	//nolint:errcheck
	fmt.Fprintf(c.stdout, `npsctl - control the relays of a network power switch

Usage: npsctl --host <address> (--on|--off|--reboot|--status) <n|all> [flags]

Relays are numbered 1 through 8. "all" acts on every relay in turn.
--status prints ON or OFF for each relay, one per line.

Flags:
%s
Exit status is 0 on success, 2 for invalid arguments or configuration,
and 1 if the device could not be reached or did not respond.
`, usage)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case npsctl.IsUsageError(err):
		return exitUsage
	default:
		return exitError
	}
}

func runMain(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("npsctl", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cli := NewCLI(stdout, stderr)

	cmdArgs, err := ParseArgsWithFlagSet(args, fs)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err) //nolint:errcheck
		return exitCode(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, cmdArgs); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(stderr, "Interrupted") //nolint:errcheck
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err) //nolint:errcheck
		}
		return exitCode(err)
	}

	return exitOK
}

func main() {
	os.Exit(runMain(os.Args[1:], os.Stdout, os.Stderr))
}
