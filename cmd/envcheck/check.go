package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cgast/envcheck/pkg/check"
	"github.com/cgast/envcheck/pkg/history"
	"github.com/cgast/envcheck/pkg/phpruntime"
	"github.com/cgast/envcheck/pkg/requirement"
)

// CheckResult is the result of a check command.
type CheckResult struct {
	Requirements []check.Export `json:"requirements" yaml:"requirements"`
	Summary      check.Summary  `json:"summary" yaml:"summary"`
	RunID        string         `json:"runId,omitempty" yaml:"runId,omitempty"`
}

func checkCmd(a *app) *cobra.Command {
	var (
		requirementsPath string
		phpBinary        string
		save             bool
		listOverrides    bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the PHP environment against the requirement list",
		Long: `Probe the PHP interpreter once and evaluate every requirement.

Examples:
  # Check against the built-in list
  envcheck check

  # Check a project's own list with a specific interpreter
  envcheck check --requirements requirements.xml --php /usr/bin/php8.2 -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listOverrides {
				for _, name := range check.DefaultRegistry().Names() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			if cmd.Flags().Changed("requirements") {
				a.cfg.Requirements.Path = requirementsPath
			}
			if cmd.Flags().Changed("php") {
				a.cfg.PHP.Binary = phpBinary
			}

			e, err := a.newEvaluator(cmd.Context())
			if err != nil {
				return err
			}

			list := e.Export()
			result := CheckResult{Requirements: list, Summary: check.Summarize(list)}
			result.Summary.Fatal = e.FatalError()

			if save && a.cfg.History.Persist {
				id, err := a.saveRun(list, result.Summary.Fatal)
				if err != nil {
					a.logger.Warn("could not record run", zap.Error(err))
				}
				result.RunID = id
			}

			if err := outputResult(cmd.OutOrStdout(), result, a.outputFmt); err != nil {
				return err
			}
			if result.Summary.Fatal {
				return errFatal
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&requirementsPath, "requirements", "r", "", "Requirement list (.yaml or .xml); built-in list when empty")
	cmd.Flags().StringVar(&phpBinary, "php", "", "PHP CLI binary to probe")
	cmd.Flags().BoolVar(&save, "save", true, "Record the run in history")
	cmd.Flags().BoolVar(&listOverrides, "list-overrides", false, "Print the requirement names with built-in probes and exit")

	return cmd
}

// source returns the configured requirement list.
func (a *app) source() requirement.Source {
	if a.cfg.Requirements.Path == "" {
		return requirement.DefaultSource()
	}
	return requirement.FileSource{Path: a.cfg.Requirements.Path}
}

// newEvaluator probes the interpreter and returns an evaluator over it.
func (a *app) newEvaluator(ctx context.Context) (*check.Evaluator, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	snap, err := phpruntime.Collect(ctx, phpruntime.Options{
		Binary:   a.cfg.PHP.Binary,
		Timeout:  a.cfg.PHP.Timeout,
		DiskPath: a.cfg.PHP.DiskPath,
	})
	if err != nil {
		return nil, fmt.Errorf("probe php: %w", err)
	}
	a.logger.Debug("php probed",
		zap.String("version", snap.Version()),
		zap.Int("extensions", len(snap.Extensions)),
	)

	return check.NewEvaluator(a.source(), snap,
		check.WithLogger(a.logger),
		check.WithBus(a.bus),
	), nil
}

func (a *app) openHistory() (*history.BoltStore, error) {
	if err := ensureDir(a.cfg.History.Path); err != nil {
		return nil, err
	}
	return history.NewBoltStore(a.cfg.History.Path)
}

func (a *app) saveRun(list []check.Export, fatal bool) (string, error) {
	store, err := a.openHistory()
	if err != nil {
		return "", err
	}
	defer store.Close()

	run := history.NewRun(list, fatal)
	if err := store.Save(run); err != nil {
		return "", err
	}
	if removed, err := store.Prune(a.cfg.History.MaxEntries); err != nil {
		a.logger.Warn("prune history", zap.Error(err))
	} else if removed > 0 {
		a.logger.Debug("pruned history", zap.Int("removed", removed))
	}
	return run.ID, nil
}
