package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	routegraph "github.com/sakhatrans/routegraph"
)

var (
	routeDate       string
	routePassengers int
)

var routeCmd = &cobra.Command{
	Use:   "route <from> <to>",
	Short: "Plans a trip between two cities",
	Args:  cobra.ExactArgs(2),
	RunE:  route,
}

func init() {
	routeCmd.Flags().StringVarP(&routeDate, "date", "", "", "travel date, YYYY-MM-DD (default today)")
	routeCmd.Flags().IntVarP(&routePassengers, "passengers", "", 1, "passenger count")
	rootCmd.AddCommand(routeCmd)
}

func route(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	if routePassengers < 1 {
		return fmt.Errorf("passengers must be >= 1")
	}

	plan, err := a.planner.PlanTrip(context.Background(), routegraph.TripRequest{
		From:       args[0],
		To:         args[1],
		Date:       routeDate,
		Passengers: routePassengers,
	})
	if err != nil {
		return err
	}

	if plan.Empty() {
		fmt.Printf("no route found from %q to %q\n", args[0], args[1])
		return nil
	}

	it := plan.Itinerary
	fmt.Printf("%s -> %s  %s, %d passenger(s)\n", it.From, it.To, it.Date, it.Passengers)
	for i, seg := range it.Segments {
		if seg.TransferMinutes > 0 {
			fmt.Printf("    transfer %.0f min\n", seg.TransferMinutes)
		}
		fmt.Printf("%2d. %-8s %s -> %s  %.0f min  %s\n",
			i+1,
			seg.Segment.Kind,
			seg.Departure.Format(time.RFC3339),
			seg.Arrival.Format(time.RFC3339),
			seg.DurationMinutes,
			strconv.FormatFloat(seg.Price, 'f', -1, 64),
		)
	}
	fmt.Printf("total: %.0f min, %.0f, %d transfer(s)\n",
		it.TotalDurationMinutes, it.TotalPrice, it.TransferCount)

	if plan.Risk != nil {
		fmt.Printf("risk: %d/10 %s - %s\n", plan.Risk.Score, plan.Risk.Band, plan.Risk.Description)
		for _, rec := range plan.Risk.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}
	if len(plan.Alternatives) > 0 {
		fmt.Printf("%d alternative(s) available\n", len(plan.Alternatives))
	}

	return nil
}
