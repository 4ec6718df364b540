package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/TrendFlow"
)

// Declares one polled log over a local point without a config file and
// archives it to sqlite.
func main() {
	enabled := true
	zoneTemp := trendflow.LogConfig{
		Instance:       1,
		Name:           "zone temperature",
		Enabled:        &enabled,
		Interval:       time.Minute,
		AlignIntervals: true,
		BufferSize:     1440,
		Source:         trendflow.SourceConfig{ObjectType: "analog-input", Instance: 1},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := trendflow.NewFlow(260001).
		StreamIN(
			trendflow.TrendLog(zoneTemp),
			trendflow.LocalPoint(trendflow.PointConfig{Object: "analog-input:1", Name: "zone temp", Value: 21}),
		).
		Run(ctx, trendflow.ArchiveSQL("sqlite", "./data/trendflow.db"))
	if err != nil && err != context.Canceled {
		log.Fatalf("runtime exited: %v", err)
	}
}
