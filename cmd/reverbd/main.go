package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nbd-wtf/go-nostr"

	"github.com/reverbhq/reverb/internal/cache"
	"github.com/reverbhq/reverb/internal/config"
	"github.com/reverbhq/reverb/internal/dedup"
	"github.com/reverbhq/reverb/internal/feed"
	"github.com/reverbhq/reverb/internal/handlers"
	"github.com/reverbhq/reverb/internal/ingest"
	"github.com/reverbhq/reverb/internal/ops"
	"github.com/reverbhq/reverb/internal/relay"
	"github.com/reverbhq/reverb/internal/search"
	"github.com/reverbhq/reverb/internal/store"
	"github.com/reverbhq/reverb/internal/trending"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "manual"
)

func main() {
	// Define subcommands
	if len(os.Args) > 1 && os.Args[1] == "init" {
		handleInit()
		return
	}

	var (
		showVersion = flag.Bool("version", false, "Show version information")
		configPath  = flag.String("config", "", "Path to configuration file")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("reverbd %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		fmt.Printf("  by:     %s\n", builtBy)
		os.Exit(0)
	}

	if *configPath == "" {
		fmt.Println("reverbd - Relay Ingestion and Ranking Core")
		fmt.Println()
		fmt.Println("No configuration file specified. Use --config <path> to specify config.")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  reverbd init              Generate example configuration")
		fmt.Println("  reverbd --version         Show version information")
		fmt.Println("  reverbd --config <path>   Start with configuration file")
		os.Exit(1)
	}

	// Load and validate configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Starting reverbd %s\n", version)
	fmt.Printf("  Relay: %s\n", cfg.Relay.URL)
	fmt.Printf("  Store: %s\n", cfg.Storage.SQLitePath)
	fmt.Println()

	if err := run(cfg); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := ops.NewLogger(&cfg.Logging)
	ops.SetDefault(logger)

	// Initialize storage
	fmt.Println("Initializing storage...")
	st, err := store.New(ctx, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer st.Close()
	fmt.Println("  Storage ready")

	// Initialize search index
	idx, err := search.New(ctx, st.DB())
	if err != nil {
		return fmt.Errorf("failed to initialize search index: %w", err)
	}
	fmt.Println("  Search index ready")

	// Initialize cache
	fmt.Println("Initializing cache...")
	c := cache.New(&cfg.Cache)
	defer c.Close()
	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach cache at %s: %w", cfg.Cache.Addr, err)
	}
	fmt.Printf("  Cache: %s ready\n", cfg.Cache.Addr)

	// Initialize deduplicator
	dd, err := dedup.New(dedup.Options{
		BloomCapacity:  cfg.Dedup.BloomCapacity,
		BloomFPRate:    cfg.Dedup.BloomFPRate,
		ExactCapacity:  cfg.Dedup.ExactCapacity,
		ResetThreshold: cfg.Dedup.ResetThreshold,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize deduplicator: %w", err)
	}

	// Wire the ingestion pipeline
	fmt.Println("Initializing ingestion pipeline...")
	mgr := handlers.NewManager(st, idx, logger)
	feedSvc := feed.New(st, c, &cfg.Feed, logger)
	mgr.Register(handlers.KindFollowList, invalidateFeedOnListChange(feedSvc))
	mgr.Register(handlers.KindMuteList, invalidateFeedOnListChange(feedSvc))
	client := relay.New(&cfg.Relay)
	ingester := ingest.New(client, st, dd, mgr, cfg, logger)
	fmt.Println("  Ingestion pipeline ready")

	// Trending computer
	computer := trending.New(st, c, &cfg.Trending, logger)
	fmt.Printf("  Trending recompute every %s\n", cfg.Trending.Interval())

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ingester.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("ingester stopped", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := computer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("trending computer stopped", "error", err)
		}
	}()

	fmt.Println()
	fmt.Println("✓ All services started successfully!")
	fmt.Println()
	fmt.Println("Press Ctrl+C to shutdown gracefully...")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println()
	fmt.Println("Shutting down gracefully...")

	cancel()
	wg.Wait()

	fmt.Println("✓ Shutdown complete")
	return nil
}

// invalidateFeedOnListChange drops the author's cached feed when their
// follow or mute list changes, so the next read reflects the new graph.
func invalidateFeedOnListChange(svc *feed.Service) handlers.Handler {
	return handlers.HandlerFunc(func(ctx context.Context, event *nostr.Event) error {
		return svc.Invalidate(ctx, event.PubKey)
	})
}

func handleInit() {
	exampleConfig, err := config.GetExampleConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading example config: %v\n", err)
		os.Exit(1)
	}

	// Write to stdout
	fmt.Print(string(exampleConfig))
}
