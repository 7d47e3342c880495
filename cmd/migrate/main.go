package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/migration"
	"github.com/crm/backend/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var errUsage = errors.New("invalid usage")

func main() {
	var (
		migrationsPath string
		logLevel       string
	)
	flag.StringVar(&migrationsPath, "path", "", "Read migrations from this directory instead of the embedded set")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(logger.Config{Level: logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	if err := run(args, migrationsPath, cfg, log); err != nil {
		if errors.Is(err, errUsage) {
			log.Error(err.Error())
			printUsage()
			os.Exit(2)
		}
		log.Fatal("Migration command failed", zap.String("command", args[0]), zap.Error(err))
	}
}

func run(args []string, migrationsPath string, cfg *config.Config, log *zap.Logger) error {
	command := args[0]
	files := migration.SourceFS(migrations.FS, migrationsPath)

	// create and list work on files only
	switch command {
	case "create":
		if len(args) < 2 {
			return fmt.Errorf("%w: migrate create <name>", errUsage)
		}
		dir := migrationsPath
		if dir == "" {
			dir = cfg.Database.MigrationsPath
		}
		entry, err := migration.CreateMigration(dir, args[1], time.Now())
		if err != nil {
			return err
		}
		log.Info("Migration created",
			zap.Uint("version", entry.Version),
			zap.String("dir", dir),
			zap.String("name", entry.Base()),
		)
		return nil

	case "list":
		entries, err := migration.ListMigrations(files)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			log.Info("No migrations found")
			return nil
		}
		for _, e := range entries {
			status := "ok"
			if !e.Complete() {
				status = "missing half"
			}
			fmt.Printf("  %s  %s\n", e.Base(), status)
		}
		return nil
	}

	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("versioned migrations need the postgres driver, configured %q", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	m, err := migration.New(db, files, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()

	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "step":
		n, err := intArg(args, "step <n>")
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "goto":
		n, err := intArg(args, "goto <version>")
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("%w: version must not be negative", errUsage)
		}
		return m.GoTo(uint(n))
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	case "force":
		n, err := intArg(args, "force <version>")
		if err != nil {
			return err
		}
		return m.Force(n)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func intArg(args []string, usage string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%w: migrate %s", errUsage, usage)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errUsage, args[1])
	}
	return n, nil
}

func printUsage() {
	fmt.Println(`CRM Database Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                 Apply all pending migrations
  down               Roll back all migrations
  step <n>           Apply n migrations (negative rolls back)
  goto <version>     Migrate to a specific version
  version            Show the applied version
  force <version>    Record a version without running it (clears a dirty state)
  create <name>      Create the next numbered migration pair on disk
  list               List available migrations

Flags:
  -path string       Migrations directory (default: the set built into the binary)
  -log-level string  debug, info, warn, error (default: info)

Environment:
  CRM_DATABASE_HOST, CRM_DATABASE_PORT, CRM_DATABASE_USER,
  CRM_DATABASE_PASSWORD, CRM_DATABASE_NAME, CRM_DATABASE_SSLMODE`)
}
