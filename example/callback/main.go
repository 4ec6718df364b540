package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/TrendFlow/pkg/trendflow"
)

func main() {
	flow, err := trendflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(batch []trendflow.ArchiveRecord) error {
		for _, r := range batch {
			fmt.Printf("%s log=%d seq=%d %s=%s\n",
				r.Timestamp.Format(time.RFC3339),
				r.LogInstance,
				r.Seq,
				r.Kind,
				r.Value,
			)
		}
		return nil
	}

	if err := flow.Run(ctx, trendflow.ArchiveCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
