package main

import (
	"fmt"
	"io"
	"os"

	"github.com/larsks/npsctl/internal/npsctl"
	"github.com/larsks/npsctl/internal/simulator"
	"github.com/larsks/npsctl/internal/version"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("configvalidate", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		versionFlag = fs.Bool("version", false, "Show version and exit")
		configType  = fs.String("type", "npsctl", "Configuration type: npsctl or simulator")
		configFile  = fs.String("config", "", "Configuration file to validate")
		helpFlag    = fs.BoolP("help", "h", false, "Show help")
	)

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *versionFlag {
		version.Fprint(stdout)
		return 0
	}

	if *helpFlag {
		usage(stdout, fs)
		return 0
	}

	if *configFile == "" {
		fmt.Fprintf(stderr, "Error: --config flag is required\n\n") //nolint:errcheck
		usage(stderr, fs)
		return 2
	}

	if _, err := os.Stat(*configFile); os.IsNotExist(err) {
		fmt.Fprintf(stderr, "Error: Configuration file %s does not exist\n", *configFile) //nolint:errcheck
		return 1
	}

	var err error
	switch *configType {
	case "npsctl":
		err = validateNpsctlConfig(*configFile)
	case "simulator":
		err = validateSimulatorConfig(*configFile)
	default:
		fmt.Fprintf(stderr, "Error: Unknown configuration type '%s'. Must be 'npsctl' or 'simulator'\n", *configType) //nolint:errcheck
		return 2
	}

	if err != nil {
		fmt.Fprintf(stderr, "Validation failed: %v\n", err) //nolint:errcheck
		return 1
	}

	fmt.Fprintf(stdout, "Configuration file %s is valid for %s\n", *configFile, *configType) //nolint:errcheck
	return 0
}

func usage(w io.Writer, fs *pflag.FlagSet) {
	//nolint:errcheck
	fmt.Fprintf(w, `Usage: configvalidate [--type TYPE] --config FILE

A tool for validating npsctl and nps-simulator configuration files.
Unknown keys are reported as errors.

Options:
%s
Examples:
  configvalidate --config ~/.config/npsctl/npsctl.toml
  configvalidate --type simulator --config nps-simulator.toml
`, fs.FlagUsages())
}

func validateNpsctlConfig(configFile string) error {
	cfg := npsctl.NewConfig()

	if err := cfg.LoadFile(configFile); err != nil {
		return fmt.Errorf("failed to load npsctl configuration: %w", err)
	}

	return cfg.Validate()
}

func validateSimulatorConfig(configFile string) error {
	cfg := simulator.NewConfig()
	cfg.ConfigFile = configFile

	// Flags are registered but never parsed; only the file is checked.
	fs := pflag.NewFlagSet("simulator", pflag.ContinueOnError)
	cfg.AddFlags(fs)

	if err := cfg.LoadConfigWithFlagSet(fs); err != nil {
		return fmt.Errorf("failed to load simulator configuration: %w", err)
	}

	return cfg.Validate()
}
