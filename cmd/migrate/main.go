package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"fars-analytics/internal/config"
	"fars-analytics/internal/repository"
	"fars-analytics/pkg/database"
	"fars-analytics/pkg/logging"
	"fars-analytics/pkg/metrics"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	statement, err := migration(*direction)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("fars-migrate", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	if err := run(cfg, logger, *direction, statement); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Migration completed successfully")
}

func run(cfg *config.Config, logger *logging.StructuredLogger, direction, statement string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.NewPostgresDB(ctx, cfg.Database.Postgres(), logger, metrics.NewCollector("fars_migrate"))
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Printf("Running migration: %s\n", direction)

	_, err = db.ExecContext(ctx, "migrate_"+direction, statement)
	return err
}

// migration returns the schema statement for direction
func migration(direction string) (string, error) {
	switch direction {
	case "up":
		return repository.SchemaUp, nil
	case "down":
		return repository.SchemaDown, nil
	default:
		return "", fmt.Errorf("unknown direction %q, want up or down", direction)
	}
}
