package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cgast/envcheck/internal/config"
	"github.com/cgast/envcheck/pkg/requirement"
)

// configTemplate is written by `envcheck init`.
const configTemplate = `# envcheck configuration. ${VAR} references are read from the environment.
log_level: info

requirements:
  path: %s

php:
  binary: php
  timeout: 30s
  disk_path: ""

history:
  path: %s
  max_entries: 100
  persist: true

api:
  port: 8080
  # token: "${ENVCHECK_API_TOKEN}"
  token: ""
  debug: false

release:
  repo: cgast/envcheck
`

func initCmd(a *app) *cobra.Command {
	var (
		dir   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a config file and an editable requirement list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base := filepath.Join(dir, config.Dir)
			if err := os.MkdirAll(base, 0755); err != nil {
				return fmt.Errorf("create %s: %w", base, err)
			}

			listPath := filepath.Join(base, "requirements.yaml")
			cfgPath := filepath.Join(base, "config.yaml")
			histPath := filepath.Join(base, "history.db")

			files := []struct {
				path string
				data []byte
			}{
				{listPath, requirement.DefaultList()},
				{cfgPath, []byte(fmt.Sprintf(configTemplate, listPath, histPath))},
			}
			for _, f := range files {
				if err := writeNew(f.path, f.data, force); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", f.path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "Project directory")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}

// writeNew writes data to path, refusing to replace an existing file
// unless force is set.
func writeNew(path string, data []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ensureDir creates the parent directory of path.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
