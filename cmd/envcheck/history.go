package main

import (
	"github.com/spf13/cobra"

	"github.com/cgast/envcheck/pkg/history"
)

func historyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded check runs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded runs, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List()
			if err != nil {
				return err
			}
			if runs == nil {
				runs = []history.Run{}
			}
			return outputResult(cmd.OutOrStdout(), runs, a.outputFmt)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.Get(args[0])
			if err != nil {
				return err
			}
			return outputResult(cmd.OutOrStdout(), run, a.outputFmt)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "diff <from> <to>",
		Short: "Show what changed between two runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			from, err := store.Get(args[0])
			if err != nil {
				return err
			}
			to, err := store.Get(args[1])
			if err != nil {
				return err
			}
			changes := history.Diff(from, to)
			if changes == nil {
				changes = []history.Change{}
			}
			return outputResult(cmd.OutOrStdout(), changes, a.outputFmt)
		},
	})

	return cmd
}
