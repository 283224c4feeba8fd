package cmd

import (
	"errors"
	"fmt"

	"github.com/agentic-research/livegraph/internal/config"
	"github.com/agentic-research/livegraph/internal/geo"
	"github.com/agentic-research/livegraph/internal/graph"
	"github.com/spf13/cobra"
)

var (
	matchLon, matchLat float64
	matchRadius        float64
	matchModes         string
)

func init() {
	matchCmd.Flags().StringVarP(&graphPath, "graph", "g", "", "Path to the street network GeoJSON")
	matchCmd.Flags().Float64Var(&matchLon, "lon", 0, "Longitude")
	matchCmd.Flags().Float64Var(&matchLat, "lat", 0, "Latitude")
	matchCmd.Flags().Float64Var(&matchRadius, "radius", config.DefaultSearchRadius, "Search radius in meters")
	matchCmd.Flags().StringVar(&matchModes, "modes", "CAR", "Traversal modes the edge must allow")
	_ = matchCmd.MarkFlagRequired("graph")
	_ = matchCmd.MarkFlagRequired("lon")
	_ = matchCmd.MarkFlagRequired("lat")
	rootCmd.AddCommand(matchCmd)
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Show which edge a feed location would be bound to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		modes, err := graph.ParseModes(matchModes)
		if err != nil {
			return err
		}
		g, err := loadGraph(graphPath)
		if err != nil {
			return err
		}
		m := geo.NewMatcher(g.Index(), matchRadius)
		e := m.MatchPoint(geo.Coordinate{Lon: matchLon, Lat: matchLat}, graph.TraversalRequirements{Modes: modes})
		if e == nil {
			return errors.New("matched to nothing")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "edge %d %q\n", e.ID, e.Name)
		return nil
	},
}
