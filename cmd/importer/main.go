package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"foerderscout/internal/bootstrap"
)

func main() {
	path := flag.String("file", "data/grants.json", "path to the grants JSON file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, bootstrap.WithoutWorker())
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("close resources failed: %v", err)
		}
	}()
	logger := app.Logger.Named("importer")

	data, err := os.ReadFile(*path)
	if err != nil {
		logger.Error("read grants file failed", zap.String("file", *path), zap.Error(err))
		return
	}

	importer := app.Services.Importer
	records, report, err := importer.ParseGrantFile(data)
	if err != nil {
		logger.Error("parse grants file failed", zap.String("file", *path), zap.Error(err))
		return
	}
	for _, msg := range report.Errors {
		logger.Warn("skipped grant record", zap.String("reason", msg))
	}

	report, err = importer.Import(ctx, records, report)
	if err != nil {
		logger.Error("import grants failed", zap.Error(err))
		return
	}

	for _, change := range report.Changes {
		logger.Info("grant updated",
			zap.String("external_id", change.ExternalID),
			zap.Strings("fields", change.Fields),
		)
	}
	logger.Info("grant import finished",
		zap.String("file", *path),
		zap.Int("new", report.New),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("reindexed", report.Reindexed),
		zap.Int("invalid", report.Invalid),
		zap.Int("enqueued", report.Enqueued),
	)
}
