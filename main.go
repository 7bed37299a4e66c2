package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"illust-packer/internal/archive"
	"illust-packer/internal/blobstore"
	"illust-packer/internal/database"
	"illust-packer/internal/logging"
	"illust-packer/internal/metrics"
	"illust-packer/internal/pipeline"
	"illust-packer/internal/scanner"
	"illust-packer/internal/startup"
	"illust-packer/internal/transform"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig(os.Args[1:])
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Cancellation is honored at batch boundaries: the first signal stops
	// scheduling new work, the open batch still commits or rolls back.
	ctx, cancel := context.WithCancel(context.Background())
	go handleSignals(cancel)

	// Open both stores up front; either failing is fatal before any
	// source file is touched.
	storeStart := time.Now()
	blob, err := blobstore.Open(config.BlobPath, blobstore.DefaultOptions())
	if err != nil {
		startup.LogFatal("Failed to open blob store: %v", err)
	}
	defer blob.Close()

	db, err := database.New(ctx, config.DatabasePath, config.KeyMode)
	if err != nil {
		startup.LogFatal("Failed to open metadata database: %v", err)
	}
	defer db.Close()
	startup.LogStoresInit(time.Since(storeStart))

	if config.MetricsEnabled {
		metricsServer := metrics.NewServer(config.MetricsPort)
		metricsServer.Start()
		defer metricsServer.Stop(5 * time.Second)
	}

	transformCfg := transform.DefaultConfig()
	transformCfg.Width = config.TargetSize
	transformCfg.Height = config.TargetSize
	engine := transform.SelectEngine(transformCfg)
	defer transform.ShutdownVips()

	depth := scanner.DepthOne
	if config.Recursive {
		depth = scanner.DepthRecursive
	}

	summary := logging.NewSummary()
	defer summary.Flush()

	pipelineCfg := pipeline.DefaultConfig()
	pipelineCfg.BatchSize = config.BatchSize
	pipelineCfg.Workers = config.Workers
	pipelineCfg.ConsumeSidecars = config.ConsumeSidecars

	startup.LogIngestStart(config.SourceDir)
	p := pipeline.New(pipelineCfg, scanner.New(config.SourceDir, depth), engine, blob, db, summary)

	runErr := p.Run(ctx)
	interrupted := errors.Is(runErr, context.Canceled)
	if runErr != nil && !interrupted {
		summary.Flush()
		startup.LogFatal("Ingest failed: %v", runErr)
	}

	// The archive sweep runs only after a full pass, so an interrupted
	// run never tars sidecars whose images are still pending.
	if !config.SkipArchive && !interrupted {
		startup.LogArchiveStart()
		added, err := archive.New(config.SourceDir).Run()
		if err != nil {
			logging.Error("Sidecar archive failed: %v", err)
		} else {
			summary.AddArchived(int64(added))
			logging.Info("  [OK] %d sidecars archived", added)
		}
	}

	summary.Flush()
	startup.LogRunComplete(time.Since(startTime))
}

func handleSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	startup.LogShutdownInitiated(sig.String())
	cancel()

	// A second signal aborts without waiting for the open batch.
	<-sigChan
	logging.Warn("Forced exit before batch boundary")
	os.Exit(1)
}
