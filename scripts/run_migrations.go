package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/safar/tackle-shop/internal/config"
	"github.com/safar/tackle-shop/internal/database"
	"github.com/safar/tackle-shop/internal/telemetry"
)

const migrationDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: go run scripts/run_migrations.go [up|down]")
		os.Exit(2)
	}

	if err := run(os.Args[1]); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(direction string) error {
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be 'up' or 'down', got %q", direction)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(telemetry.NewLogger(os.Stderr, cfg.Log.Level))

	ctx := context.Background()
	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	files, err := os.ReadDir(migrationDir)
	if err != nil {
		return fmt.Errorf("read migration directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), "."+direction+".sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)
	if direction == "down" {
		slices.Reverse(migrationFiles)
	}

	for _, filename := range migrationFiles {
		content, err := os.ReadFile(filepath.Join(migrationDir, filename))
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", filename, err)
		}

		slog.Info("running migration", "file", filename)
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", filename, err)
		}
	}

	slog.Info("migrations applied", "count", len(migrationFiles), "direction", direction)
	return nil
}
