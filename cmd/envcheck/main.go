// envcheck verifies that a PHP installation meets a shop's requirements.
//
// Usage:
//
//	envcheck check
//	envcheck check -o json --requirements shop/requirements.xml
//	envcheck serve
//	envcheck history list
//	envcheck history diff <from> <to>
//	envcheck init
//	envcheck version --check-latest
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cgast/envcheck/internal/config"
	"github.com/cgast/envcheck/pkg/events"
)

var version = "dev"

// errFatal signals that a blocking requirement failed. The report has
// already been written, so main only sets the exit code.
var errFatal = errors.New("mandatory requirements not met")

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	outputFmt  string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
	bus    *events.MemoryBus
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		if !errors.Is(err, errFatal) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{logger: zap.NewNop(), bus: events.NewMemoryBus()}

	rootCmd := &cobra.Command{
		Use:   "envcheck",
		Short: "Check a PHP environment against installation requirements",
		Long: `envcheck probes a PHP interpreter and compares what it finds with a
requirement list: interpreter version, extensions, ini settings, library
versions and free disk space. Blocking requirements that fail make the
check exit non-zero.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(stderr)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath, "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&a.outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(checkCmd(a))
	rootCmd.AddCommand(serveCmd(a))
	rootCmd.AddCommand(historyCmd(a))
	rootCmd.AddCommand(initCmd(a))
	rootCmd.AddCommand(versionCmd(a))

	return rootCmd
}

// setup loads configuration and builds the logger.
func (a *app) setup(stderr io.Writer) error {
	switch a.outputFmt {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q: want table, json or yaml", a.outputFmt)
	}

	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.LogLevel, a.verbose, stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	return nil
}

func newLogger(level string, verbose bool, w io.Writer) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	if verbose {
		lvl.SetLevel(zapcore.DebugLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}
