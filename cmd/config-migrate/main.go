package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/chrissnell/quasar/internal/log"
	"github.com/chrissnell/quasar/pkg/config"
	"github.com/chrissnell/quasar/pkg/migrate"
	_ "modernc.org/sqlite" // SQLite driver
)

func main() {
	var (
		dbPath        = flag.String("db", "", "SQLite configuration database")
		command       = flag.String("command", "status", "Migration command: up, to, version, status")
		targetVersion = flag.String("target", "", "Target version for the 'to' command")
		helpFlag      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if *dbPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -db flag is required\n")
		showHelp()
		os.Exit(1)
	}

	if err := log.Init(false); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(os.Stdout, *dbPath, *command, *targetVersion); err != nil {
		log.Fatalf("Migration command failed: %v", err)
	}
}

func run(w io.Writer, dbPath, command, target string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	migrator := config.NewSchemaMigrator(db)
	migrator.Logf = log.Infof

	switch command {
	case "up":
		if err := migrator.MigrateUp(); err != nil {
			return err
		}
	case "to":
		if target == "" {
			return fmt.Errorf("-target is required for the 'to' command")
		}
		version, err := strconv.Atoi(target)
		if err != nil || version < 0 {
			return fmt.Errorf("invalid target version %q", target)
		}
		if err := migrator.MigrateTo(version); err != nil {
			return err
		}
	case "version":
		version, err := migrator.GetCurrentVersion()
		if err != nil {
			return fmt.Errorf("failed to get current version: %w", err)
		}
		fmt.Fprintf(w, "Current version: %d\n", version)
		return nil
	case "status":
		return showStatus(w, migrator)
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	version, err := migrator.GetCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	fmt.Fprintf(w, "Schema is at version %d\n", version)
	return nil
}

func showStatus(w io.Writer, migrator *migrate.Migrator) error {
	currentVersion, err := migrator.GetCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	pending, err := migrator.GetPendingMigrations()
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	fmt.Fprintf(w, "Current version: %d\n", currentVersion)
	fmt.Fprintf(w, "Pending migrations: %d\n", len(pending))
	for _, migration := range pending {
		fmt.Fprintf(w, "  %d: %s\n", migration.Version, migration.Name)
	}
	return nil
}

func showHelp() {
	fmt.Println("Configuration schema migration tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  config-migrate -db config.db [-command up|to|version|status] [-target N]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up                 Apply all pending migrations")
	fmt.Println("  to                 Migrate to a specific version (up or down)")
	fmt.Println("  version            Show the current schema version")
	fmt.Println("  status             Show the current version and pending migrations")
}
