// Command store places Sentinel zipfiles into the archive directory
// structure, writing the description sidecar and preview alongside each one.
//
// Zipfiles are given as arguments, or with -watch the incoming directory is
// polled and drained continuously.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/auscophub/archive/internal/archive"
	"github.com/auscophub/archive/internal/config"
	"github.com/auscophub/archive/internal/ingest"
	"github.com/auscophub/archive/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	watch := flag.Bool("watch", false, "poll the incoming directory instead of taking zipfiles as arguments")
	incoming := flag.String("incoming", "", "incoming directory to poll with -watch")
	topDir := flag.String("storagetopdir", "", "archive root, overriding STORAGE_ROOT")
	useCopy := flag.Bool("copy", false, "copy zipfiles into place instead of moving")
	useSymlink := flag.Bool("symlink", false, "symlink zipfiles into place instead of moving")
	dummy := flag.Bool("dummy", false, "log what would be done without touching anything")
	verbose := flag.Bool("verbose", false, "debug logging")
	metricsAddr := flag.String("metricsaddr", "", "optional address to serve /metrics on while ingesting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *topDir != "" {
		cfg.Storage.Root = *topDir
	}
	if cfg.Storage.Root == "" {
		return fmt.Errorf("archive root is required; set STORAGE_ROOT or -storagetopdir")
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	logger := cfg.Logging.NewLogger()

	mode, err := archive.ParseTransferMode(cfg.Storage.TransferMode)
	if err != nil {
		return err
	}
	switch {
	case *useCopy && *useSymlink:
		return fmt.Errorf("-copy and -symlink are mutually exclusive")
	case *useCopy:
		mode = archive.Copy
	case *useSymlink:
		mode = archive.Symlink
	}

	storer := &archive.Storer{
		Root:   cfg.Storage.Root,
		Mode:   mode,
		Dummy:  *dummy || cfg.Ingest.Dummy,
		Logger: logger,
	}

	pipeline := ingest.New(storer, logger, observability.NewMetrics(), cfg.Ingest.Workers)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info("metrics listening", "addr", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	if *watch {
		if *incoming == "" {
			return fmt.Errorf("-watch requires -incoming")
		}
		logger.Info("watching incoming directory",
			"dir", *incoming,
			"interval", cfg.Ingest.PollInterval,
		)
		if err := pipeline.Watch(ctx, *incoming, cfg.Ingest.PollInterval); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}

	zipfiles := flag.Args()
	if len(zipfiles) == 0 {
		return fmt.Errorf("no zipfiles given; pass them as arguments or use -watch")
	}

	results, err := pipeline.Run(ctx, zipfiles)
	if err != nil {
		return err
	}

	var failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
			logger.Error("zipfile not archived", "zipfile", res.Zipfile, "error", res.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d zipfiles failed", failed, len(results))
	}
	return nil
}
