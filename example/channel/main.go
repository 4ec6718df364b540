package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/TrendFlow"
)

// Drives the configured point table with a synthetic signal and watches the
// archived records on a channel.
func main() {
	flow, err := trendflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink := trendflow.NewChannelSink("fanout", 32)
	defer sink.Close()

	// only log 1 samples the simulated point
	rt, err := flow.StreamOUT(trendflow.ArchiveSink(trendflow.OnlyLogs(sink, 1)))
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	go fanoutWorker("archive", sink.Batches())
	go simulate(ctx, rt.Points())

	if err := rt.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

func simulate(ctx context.Context, points *trendflow.PointTable) {
	if points == nil {
		return
	}
	id, err := trendflow.ParseObjectID("analog-input:1")
	if err != nil {
		log.Printf("parse point: %v", err)
		return
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			v := 21 + 2*math.Sin(float64(now.Unix())/600)
			if err := points.Set(id, v); err != nil {
				log.Printf("set point: %v", err)
				return
			}
		}
	}
}

func fanoutWorker(name string, batches <-chan []trendflow.ArchiveRecord) {
	for batch := range batches {
		fmt.Printf("[%s] forwarding %d records at %s\n", name, len(batch), time.Now().Format(time.RFC3339))
	}
}
