package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"wikimap/pkg/catalog"
	"wikimap/pkg/config"
	"wikimap/pkg/core"
	"wikimap/pkg/db"
	"wikimap/pkg/logging"
	"wikimap/pkg/meta"
	"wikimap/pkg/osm"
	"wikimap/pkg/reconcile"
	"wikimap/pkg/regions"
	"wikimap/pkg/request"
	"wikimap/pkg/store"
	"wikimap/pkg/tracker"
	"wikimap/pkg/version"
)

var (
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	configPath = flag.String("config", "configs/wikimap.yaml", "Path to config file")
	regionList = flag.String("regions", "", "Comma-separated region keys to process (default: all)")
	dryRun     = flag.Bool("dry-run", false, "Fetch and classify but write nothing")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional .env for local overrides; absence is fine
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("wikimap started", "version", version.Version)

	// Region configuration is required; abort before touching anything remote
	regs, err := regions.Load(cfg.Sources.RegionsFile)
	if err != nil {
		return fmt.Errorf("failed to load regions: %w", err)
	}
	if *regionList != "" {
		keys := strings.Split(*regionList, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
		regs, err = regions.Select(regs, keys)
		if err != nil {
			return err
		}
	}
	slog.Info("Regions loaded", "count", len(regs))

	dbConn, err := db.Init(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer dbConn.Close()
	st := store.NewSQLiteStore(dbConn)

	if last, ok := st.GetState(ctx, "last_run"); ok {
		slog.Info("Previous run", "finished", last)
	}

	tr := tracker.New()
	rc := request.New(cfg.Request, tr)

	mt, err := meta.Load(cfg.Output.MetadataFile)
	if err != nil {
		return fmt.Errorf("failed to load run metadata: %w", err)
	}

	pipeline := core.New(core.Options{
		Maps:       osm.NewClient(rc, cfg.Sources.OverpassEndpoint, slog.Default()),
		Catalog:    catalog.NewClient(rc, cfg.Sources.SPARQLEndpoint, cfg.Sources.LabelLanguage, slog.Default()),
		Cache:      st,
		Classifier: reconcile.NewClassifier(cfg.Classifier),
		Meta:       mt,
		Tracker:    tr,
		OutDir:     cfg.Output.Dir,
		Politeness: cfg.Request.Politeness.D(),
		DryRun:     *dryRun,
	})

	outcomes, err := pipeline.Run(ctx, regs, cfg.Output.CombinedKey)
	if err != nil {
		return err
	}

	done, skipped := 0, 0
	for _, o := range outcomes {
		if o.State == core.StateSkipped {
			skipped++
		} else {
			done++
		}
	}
	slog.Info("Run finished", "regions", len(outcomes), "done", done, "skipped", skipped)
	for provider, stats := range tr.Snapshot() {
		slog.Info("Provider stats", "provider", provider,
			"success", stats.APISuccess, "failures", stats.APIFailures,
			"retries", stats.Retries, "cache_fallbacks", stats.CacheFallbacks)
	}

	if !*dryRun && done > 0 {
		runID := uuid.NewString()
		if err := mt.Persist(runID); err != nil {
			return fmt.Errorf("failed to persist run metadata: %w", err)
		}
		if err := st.SetState(ctx, "last_run", time.Now().UTC().Format(time.RFC3339)); err != nil {
			slog.Error("Failed to record run state", "error", err)
		}
		slog.Info("Metadata written", "path", cfg.Output.MetadataFile, "run_id", runID)
	}

	if len(outcomes) > 0 && skipped == len(outcomes) {
		return fmt.Errorf("all %d regions skipped", skipped)
	}
	return nil
}
