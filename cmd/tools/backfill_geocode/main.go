// Command backfill_geocode fills in coordinates for listings that were
// saved without them, in rate-limited batches against Nominatim.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"realscan/internal/geocode"
	"realscan/internal/repository"
)

func main() {
	var (
		batchSize int
		loop      bool
		sleepSec  int
	)

	flag.IntVar(&batchSize, "batch-size", 50, "listings per sweep")
	flag.BoolVar(&loop, "loop", false, "keep sweeping until no listings are missing coordinates")
	flag.IntVar(&sleepSec, "sleep", 5, "seconds between sweeps when --loop is set")
	flag.Parse()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = os.Getenv("DB_URL")
	}
	if databaseURL == "" {
		log.Fatal("DATABASE_URL or DB_URL is required")
	}

	repo, err := repository.New(databaseURL)
	if err != nil {
		log.Fatalf("failed to connect repository: %v", err)
	}
	defer repo.Close()

	client := geocode.New(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := time.Now()
	totals := geocode.BulkResult{}

	for {
		res, err := client.BulkGeocode(ctx, batchSize)
		if err != nil {
			log.Fatalf("[backfill_geocode] sweep failed: %v", err)
		}
		totals.Processed += res.Processed
		totals.Succeeded += res.Succeeded
		totals.Failed += res.Failed
		log.Printf("[backfill_geocode] sweep: processed=%d succeeded=%d failed=%d", res.Processed, res.Succeeded, res.Failed)

		if !loop || res.Processed == 0 {
			break
		}
		time.Sleep(time.Duration(sleepSec) * time.Second)
	}

	log.Printf("[backfill_geocode] done in %s: processed=%d succeeded=%d failed=%d",
		time.Since(started).Truncate(time.Second), totals.Processed, totals.Succeeded, totals.Failed)
}
