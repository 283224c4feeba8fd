package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentic-research/livegraph/internal/config"
	"github.com/agentic-research/livegraph/internal/journal"
	"github.com/agentic-research/livegraph/internal/notes"
	"github.com/agentic-research/livegraph/internal/status"
	"github.com/agentic-research/livegraph/internal/updater"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	configPath string
	writeQueue int
)

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "livegraph.hcl", "Path to the updater configuration (.hcl, .json, .yaml)")
	serveCmd.Flags().StringVarP(&graphPath, "graph", "g", "", "Path to the street network GeoJSON")
	serveCmd.Flags().IntVar(&writeQueue, "write-queue", 64, "Graph writer queue length")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the configured feeds and serve their status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		g, err := loadGraph(graphPath)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		writer := updater.NewExecutor(log, writeQueue)
		defer writer.Close()

		deps := updater.Deps{Graph: g, Notes: notes.NewService(), Writer: writer, Log: log}
		var history status.History
		if cfg.Journal != "" {
			j, err := journal.Open(cfg.Journal)
			if err != nil {
				return fmt.Errorf("journal: %w", err)
			}
			defer func() { _ = j.Close() }()
			deps.Journal = j
			history = j
		}

		mgr, err := updater.FromConfig(cfg, deps)
		if err != nil {
			return err
		}
		log.WithField("updaters", len(mgr.Updaters())).Info("starting")

		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error { return mgr.Run(ctx) })
		if cfg.Listen != "" {
			srv := status.New(mgr, history, log)
			srv.Version = Version
			eg.Go(func() error { return srv.Run(ctx, cfg.Listen) })
		}
		err = eg.Wait()
		log.Info("stopped")
		return err
	},
}
