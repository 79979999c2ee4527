// Command run_scrape executes a scrape job from the command line,
// without the API server or the scheduler. Useful for one-off runs and
// for cron environments that predate the built-in scheduler.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"realscan/internal/browser"
	"realscan/internal/config"
	"realscan/internal/eventbus"
	"realscan/internal/filter"
	"realscan/internal/repository"
	"realscan/internal/runner"
	"realscan/internal/scrape"
)

func main() {
	var (
		sources    string
		fullRescan bool
		configPath string
	)

	flag.StringVar(&sources, "sources", "", "comma-separated source codes (default: all enabled sources)")
	flag.BoolVar(&fullRescan, "full-rescan", false, "re-fetch every page and deactivate listings not seen in this run")
	flag.StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration document")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = config.Default()
		} else {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = os.Getenv("DB_URL")
	}
	if databaseURL == "" {
		databaseURL = cfg.DatabaseURL()
	}

	repo, err := repository.New(databaseURL)
	if err != nil {
		log.Fatalf("failed to connect repository: %v", err)
	}
	defer repo.Close()

	var sourceCodes []string
	if sources != "" {
		for _, code := range strings.Split(sources, ",") {
			if code = strings.TrimSpace(code); code != "" {
				sourceCodes = append(sourceCodes, strings.ToUpper(code))
			}
		}
	}

	bus := eventbus.New()
	defer bus.Close()

	var pool *browser.Pool
	if cfg.UsesBrowser() {
		pool = browser.NewPool(2)
		defer pool.Close()
	}

	run := runner.New(repo, cfg, filter.New(cfg), bus, pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, err := repo.CreateJob(ctx, sourceCodes, fullRescan)
	if err != nil {
		log.Fatalf("[run_scrape] failed to create job: %v", err)
	}

	started := time.Now()
	log.Printf("[run_scrape] job %s started (sources=%v full_rescan=%v known=%v)",
		job.ID, sourceCodes, fullRescan, scrape.Codes())

	if err := run.Execute(ctx, job.ID, runner.Request{SourceCodes: sourceCodes, FullRescan: fullRescan}); err != nil {
		log.Fatalf("[run_scrape] job failed: %v", err)
	}

	final, err := repo.GetJob(ctx, job.ID)
	if err != nil || final == nil {
		log.Fatalf("[run_scrape] failed to read back job: %v", err)
	}
	log.Printf("[run_scrape] done in %s: found=%d new=%d updated=%d",
		time.Since(started).Truncate(time.Second), final.ListingsFound, final.ListingsNew, final.ListingsUpdated)
}
