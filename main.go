package main

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"realscan/internal/api"
	"realscan/internal/browser"
	"realscan/internal/config"
	"realscan/internal/eventbus"
	"realscan/internal/filter"
	"realscan/internal/geocode"
	"realscan/internal/repository"
	"realscan/internal/ruian"
	"realscan/internal/runner"
	"realscan/internal/scheduler"
)

// BuildCommit is set at build time via -ldflags.
var BuildCommit = "dev"

func main() {
	// 1. Config
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config %s not found, using defaults", configPath)
			cfg = config.Default()
		} else {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		dbURL = cfg.DatabaseURL()
	}

	apiPort := os.Getenv("PORT")
	if apiPort == "" {
		apiPort = "8080"
	}

	log.Printf("Initializing realscan backend (%s)...", BuildCommit)
	log.Printf("DB: %s", redactDatabaseURL(dbURL))
	log.Printf("API Port: %s", apiPort)

	// 2. Dependencies
	repo, err := repository.New(dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer repo.Close()

	// 2a. Auto-Migration (skip with SKIP_MIGRATION=true for API-only containers)
	if os.Getenv("SKIP_MIGRATION") == "true" {
		log.Println("Database Migration SKIPPED (SKIP_MIGRATION=true)")
	} else {
		log.Println("Running Database Migration...")
		if err := repo.Migrate("schema.sql"); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Database Migration Complete.")
	}

	// 3. Services
	bus := eventbus.New()
	defer bus.Close()

	policy := filter.New(cfg)

	// The headless browser is expensive; only launch it when a
	// configured source actually renders pages with it.
	var pool *browser.Pool
	if cfg.UsesBrowser() {
		pool = browser.NewPool(getEnvInt("BROWSER_MAX_TABS", 2))
		defer pool.Close()
		log.Println("Headless browser pool started")
	}

	jobRunner := runner.New(repo, cfg, policy, bus, pool)
	geocoder := geocode.New(repo)
	cadastre := ruian.New(repo)

	// 4. API + Scheduler. The scheduler enqueues through the same path
	// the HTTP trigger uses, so scheduled jobs show up in job listings.
	// The closure breaks the construction cycle: the scheduler needs the
	// server's enqueue, the server needs the scheduler for its admin
	// endpoints. Nothing fires before sched.Start().
	var apiServer *api.Server
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(func(fullRescan bool) {
			apiServer.EnqueueScheduled(fullRescan)
		}, cfg.Scheduler.DailyCron, cfg.Scheduler.WeeklyCron)
		if err != nil {
			log.Fatalf("Failed to build scheduler: %v", err)
		}
	} else {
		log.Println("Scheduler is DISABLED (scheduler.enabled=false)")
	}
	apiServer = api.NewServer(repo, jobRunner, sched, geocoder, cadastre, bus, apiPort)
	if sched != nil {
		sched.Start()
		defer sched.Stop()
	}

	// Handle SIGINT/SIGTERM — blocks on sigChan at end of main()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting API Server on :%s", apiPort)
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API Server failed: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	apiServer.Shutdown(ctx)
}

func getEnvInt(key string, defaultVal int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			return val
		}
	}
	return defaultVal
}

func redactDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err == nil && u.Scheme != "" {
		if u.User != nil {
			user := u.User.Username()
			if user == "" {
				user = "user"
			}
			u.User = url.UserPassword(user, "****")
		}
		u.RawQuery = ""
		return u.String()
	}

	// Best-effort fallback for malformed/DSN-like URLs.
	re := regexp.MustCompile(`(?i)(postgres(?:ql)?://[^:/?#]+):([^@]+)@`)
	if re.MatchString(raw) {
		return re.ReplaceAllString(raw, "$1:****@")
	}
	return raw
}
