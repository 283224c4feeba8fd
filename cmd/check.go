package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/agentic-research/livegraph/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	checkCmd.Flags().StringVarP(&configPath, "config", "c", "livegraph.hcl", "Path to the updater configuration")
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a configuration and list its updaters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tUPDATE\tEVERY\tURL")
		for _, u := range cfg.Updaters {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Type, u.UpdateType, config.Frequency(u), u.URL)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d updaters OK\n", configPath, len(cfg.Updaters))
		return nil
	},
}
