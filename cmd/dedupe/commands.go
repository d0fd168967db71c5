package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"outletdedup/internal/dedup/handler"
	"outletdedup/internal/dedup/models"
	"outletdedup/internal/platform/config"
	"outletdedup/internal/platform/httpserver"
	platformmetrics "outletdedup/internal/platform/metrics"
	httptransport "outletdedup/internal/transport/http"
)

func runCommand(ctx context.Context, args []string, stdout io.Writer) error {
	var seedPath string
	var asJSON bool
	cfg, log, err := loadConfig("run", args, func(fs *flag.FlagSet, _ *config.Config) {
		fs.StringVar(&seedPath, "names", "", "file of raw names, one per line (memory driver)")
		fs.BoolVar(&asJSON, "json", false, "print the summary as JSON")
	})
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log, appOptions{seedPath: seedPath, withSideEffects: true})
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.service.Run(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(handler.FromSummary(summary))
	}
	return printSummary(stdout, summary)
}

// printSummary writes the four headline counters first, then the diagnostics.
func printSummary(w io.Writer, s *models.Summary) error {
	rows := []struct {
		label string
		value any
	}{
		{"Total records", s.TotalRecords},
		{"Canonical groups", s.Groups},
		{"Largest group", s.LargestGroup},
		{"Records updated", s.RecordsUpdated},
		{"Unassigned records", s.Unassigned},
		{"Canonical lookup misses", s.LookupMisses},
		{"Truncation collisions", s.Collisions},
		{"Duplicate record ids", s.DuplicateRecordID},
		{"Metric", fmt.Sprintf("%s (threshold %g)", s.Metric, s.Threshold)},
		{"Duration", s.Duration.Round(time.Millisecond)},
	}
	if _, err := fmt.Fprintf(w, "Deduplication summary (run %s)\n", s.RunID); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%-24s %v\n", row.label+":", row.value); err != nil {
			return err
		}
	}
	return nil
}

func serveCommand(ctx context.Context, args []string) error {
	cfg, log, err := loadConfig("serve", args, func(fs *flag.FlagSet, cfg *config.Config) {
		fs.StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "admin HTTP listen address")
	})
	if err != nil {
		return err
	}
	if cfg.Database.Driver == config.DriverMemory {
		return errors.New("serve needs a postgres or sqlite database")
	}

	a, err := newApp(ctx, cfg, log, appOptions{withSideEffects: true})
	if err != nil {
		return err
	}
	defer a.Close()

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Runs:       handler.New(a.service, log),
		Metrics:    platformmetrics.Handler(a.registry),
		Health:     a.healthChecks(),
		AdminToken: cfg.Server.AdminToken,
		Logger:     log,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting outletdedup admin server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.InfoContext(shutdownCtx, "shutting down admin server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func schemaCommand(ctx context.Context, args []string) error {
	cfg, log, err := loadConfig("schema", args, nil)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == config.DriverMemory {
		return errors.New("schema needs a postgres or sqlite database")
	}

	a, err := newApp(ctx, cfg, log, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.schema.EnsureSchema(ctx, cfg.Dedup.MaxKeyLength); err != nil {
		return err
	}
	log.InfoContext(ctx, "schema ready",
		"records_table", cfg.Tables.Records,
		"canonical_table", cfg.Tables.Canonical,
	)
	return nil
}
