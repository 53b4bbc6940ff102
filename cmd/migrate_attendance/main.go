// Command migrate_attendance backfills attendance rows for bookings and enrollments that reached a
// final status before attendance tracking existed. It is safe to run repeatedly.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/dance_studio/internal/app"
	"github.com/Freeeeeet/dance_studio/internal/config"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Attendance migration failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	services := app.NewServices(store, cfg, logger)

	report, err := services.Attendance.MigrateHistorical(ctx)
	if err != nil {
		return err
	}

	logger.Info("Attendance migration report",
		zap.Int("bookings_scanned", report.Bookings.Scanned),
		zap.Int("bookings_created", report.Bookings.Created),
		zap.Int("bookings_existing", report.Bookings.Existing),
		zap.Int("bookings_skipped", report.Bookings.Skipped),
		zap.Int("bookings_failed", report.Bookings.Failed),
		zap.Int("enrollments_scanned", report.Enrollments.Scanned),
		zap.Int("enrollments_created", report.Enrollments.Created),
		zap.Int("enrollments_existing", report.Enrollments.Existing),
		zap.Int("enrollments_skipped", report.Enrollments.Skipped),
		zap.Int("enrollments_failed", report.Enrollments.Failed),
	)

	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d rows could not be migrated", n)
	}
	return nil
}
