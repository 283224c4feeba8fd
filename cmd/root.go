package cmd

import (
	"fmt"
	"os"

	"github.com/agentic-research/livegraph/internal/graph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var (
	logLevel  string
	logFormat string
	graphPath string
)

var log = logrus.New()

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
}

var rootCmd = &cobra.Command{
	Use:           "livegraph",
	Short:         "Live feed updates for a street graph",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		lvl, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		log.SetLevel(lvl)
		switch logFormat {
		case "json":
			log.SetFormatter(&logrus.JSONFormatter{})
		case "text":
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		default:
			return fmt.Errorf("unknown log format %q", logFormat)
		}
		return nil
	},
}

// loadGraph reads the street network fixture. An empty path yields an
// empty graph.
func loadGraph(path string) (*graph.Graph, error) {
	if path == "" {
		log.Warn("no street graph given, feeds will match nothing")
		return graph.New(graph.DefaultCellDegrees), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open graph: %w", err)
	}
	defer f.Close()
	g, err := graph.LoadGeoJSON(f, graph.DefaultCellDegrees)
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", path, err)
	}
	log.WithField("edges", len(g.Edges())).Info("street graph loaded")
	return g, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
