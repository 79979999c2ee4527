// Command backfill_ruian resolves cadastre map links for listings that
// have none yet, via the RÚIAN address search.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"realscan/internal/repository"
	"realscan/internal/ruian"
)

func main() {
	var (
		batchSize         int
		overwriteNotFound bool
		loop              bool
		sleepSec          int
	)

	flag.IntVar(&batchSize, "batch-size", 50, "listings per sweep")
	flag.BoolVar(&overwriteNotFound, "retry-not-found", false, "re-attempt listings previously marked not_found")
	flag.BoolVar(&loop, "loop", false, "keep sweeping until no listings are pending")
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

	client := ruian.New(repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := time.Now()
	totals := ruian.BulkResult{}

	for {
		res, err := client.BulkProcess(ctx, batchSize, overwriteNotFound)
		if err != nil {
			log.Fatalf("[backfill_ruian] sweep failed: %v", err)
		}
		totals.Processed += res.Processed
		totals.Found += res.Found
		totals.NotFound += res.NotFound
		totals.Errors += res.Errors
		log.Printf("[backfill_ruian] sweep: processed=%d found=%d not_found=%d errors=%d",
			res.Processed, res.Found, res.NotFound, res.Errors)

		if !loop || res.Processed == 0 {
			break
		}
		// After the first sweep, retried not_found rows would come back
		// forever; only honor the flag once.
		overwriteNotFound = false
		time.Sleep(time.Duration(sleepSec) * time.Second)
	}

	log.Printf("[backfill_ruian] done in %s: processed=%d found=%d not_found=%d errors=%d",
		time.Since(started).Truncate(time.Second), totals.Processed, totals.Found, totals.NotFound, totals.Errors)
}
