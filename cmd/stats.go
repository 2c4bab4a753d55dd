package main

import (
	"fmt"

	"github.com/spf13/cobra"

	routegraph "github.com/sakhatrans/routegraph"
	"github.com/sakhatrans/routegraph/storage"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Shows the active graph and dataset",
	Args:  cobra.NoArgs,
	RunE:  stats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func stats(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	md, err := a.store.Stats()
	if err == routegraph.ErrNoActiveGraph {
		fmt.Println("no active graph; run the pipeline first")
		return nil
	} else if err != nil {
		return err
	}

	fmt.Printf("%s, built %s\n", md.String(), md.BuiltAt.Format("2006-01-02 15:04:05 MST"))

	ds, err := a.storage.GetDataset(md.DatasetVersion)
	if err == storage.ErrNotFound {
		fmt.Println("dataset for active graph is gone")
		return nil
	} else if err != nil {
		return err
	}

	virtualStops := 0
	for _, s := range ds.Stops {
		if s.Virtual {
			virtualStops++
		}
	}
	virtualRoutes := 0
	for _, r := range ds.Routes {
		if r.Virtual {
			virtualRoutes++
		}
	}

	fmt.Printf("dataset %s: mode=%s quality=%d active=%v\n", ds.Version, ds.Mode, ds.Quality, ds.Active)
	fmt.Printf("  stops:   %d (%d virtual)\n", len(ds.Stops), virtualStops)
	fmt.Printf("  routes:  %d (%d virtual)\n", len(ds.Routes), virtualRoutes)
	fmt.Printf("  flights: %d\n", len(ds.Flights))

	for _, w := range a.pipeline.Workers() {
		if w.Runs == 0 {
			continue
		}
		fmt.Printf("worker %s: %s at %s (%d runs)\n",
			w.ID, w.LastStatus, w.LastRun.Format("2006-01-02 15:04:05"), w.Runs)
	}

	return nil
}
