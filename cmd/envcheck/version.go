package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/cgast/envcheck/internal/release"
)

// VersionResult is the result of a version command.
type VersionResult struct {
	Version         string `json:"version" yaml:"version"`
	Latest          string `json:"latest,omitempty" yaml:"latest,omitempty"`
	UpdateAvailable bool   `json:"updateAvailable" yaml:"updateAvailable"`
}

func versionCmd(a *app) *cobra.Command {
	var checkLatest bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version, optionally checking for a newer release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result := VersionResult{Version: version}
			if checkLatest {
				latest, available, err := a.latestRelease(cmd.Context())
				if err != nil {
					return err
				}
				result.Latest = latest
				result.UpdateAvailable = available
			}
			return outputResult(cmd.OutOrStdout(), result, a.outputFmt)
		},
	}

	cmd.Flags().BoolVar(&checkLatest, "check-latest", false, "Query the release repository for a newer version")
	return cmd
}

// releaseOptions is extended by tests to point at a fake API.
var releaseOptions []release.Option

func (a *app) latestRelease(ctx context.Context) (string, bool, error) {
	owner, repo, err := a.cfg.Release.OwnerRepo()
	if err != nil {
		return "", false, err
	}
	opts := append([]release.Option{release.WithToken(a.cfg.Release.Token)}, releaseOptions...)
	checker, err := release.NewChecker(owner, repo, opts...)
	if err != nil {
		return "", false, err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return checker.UpdateAvailable(ctx, version)
}
