package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dkoosis/verifyapi/internal/history"
	"github.com/dkoosis/verifyapi/internal/version"
	"github.com/dkoosis/verifyapi/pkg/mapper"
)

func (a *app) historyCommand() *cobra.Command {
	var limit int
	var contract string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs with pass-rate trends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.cfg.HistoryPath()
			if path == "" {
				return usage(errors.New("run history is disabled (history_db: off)"))
			}
			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()
			entries, err := store.Recent(cmd.Context(), limit, contract)
			if err != nil {
				return err
			}
			return a.render(mapper.FromHistory(entries))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	cmd.Flags().StringVar(&contract, "contract", "", "only show runs of this contract path")
	return cmd
}

func (a *app) configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with API keys redacted",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			data, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			if a.cfg.Path != "" {
				fmt.Fprintf(a.stdout, "# loaded from %s\n", a.cfg.Path)
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfig": "true"},
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintln(a.stdout, version.String())
			return err
		},
	}
}
