package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/infrastructure/config"
	"github.com/mobilsoft/connectors/internal/infrastructure/logger"
	"github.com/mobilsoft/connectors/internal/infrastructure/migration"
	"github.com/mobilsoft/connectors/migrations"
)

const sourceTree = "migrations"

var errUsage = errors.New("usage")

// schemaCommand runs against the database through a Migrator
type schemaCommand struct {
	usage string
	help  string
	run   func(m *migration.Migrator, args []string, log *zap.Logger) error
}

var schemaCommands = map[string]schemaCommand{
	"up": {"up", "Apply all pending migrations", func(m *migration.Migrator, _ []string, _ *zap.Logger) error {
		return m.Up()
	}},
	"down": {"down", "Roll back all migrations", func(m *migration.Migrator, _ []string, _ *zap.Logger) error {
		return m.Down()
	}},
	"step": {"step <n>", "Apply n migrations, rolling back when n is negative", func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Steps(n)
	}},
	"goto": {"goto <version>", "Migrate up or down to a version", func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		n, err := intArg(args)
		if err != nil || n < 0 {
			return errUsage
		}
		return m.GoTo(uint(n))
	}},
	"version": {"version", "Show the applied version", func(m *migration.Migrator, _ []string, log *zap.Logger) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	}},
	"force": {"force <version>", "Mark a version applied after repairing a dirty schema", func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Force(n)
	}},
	"drop": {"drop -confirm", "Drop every table (irreversible)", func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		if !slices.Contains(args, "-confirm") && !slices.Contains(args, "--confirm") {
			return fmt.Errorf("refusing to drop without -confirm")
		}
		return m.Drop()
	}},
}

// fileCommand works on the source tree and needs no database
type fileCommand struct {
	usage string
	help  string
	run   func(dir string, args []string, log *zap.Logger) error
}

var fileCommands = map[string]fileCommand{
	"create": {"create <name> [description]", "Scaffold the next up/down pair", func(dir string, args []string, log *zap.Logger) error {
		if len(args) == 0 {
			return errUsage
		}
		description := ""
		if len(args) > 1 {
			description = args[1]
		}
		mf, err := migration.CreateMigration(dir, args[0], description)
		if err != nil {
			return err
		}
		log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up", mf.UpPath),
			zap.String("down", mf.DownPath),
		)
		return nil
	}},
	"list": {"list", "List migrations in the source tree", func(dir string, _ []string, log *zap.Logger) error {
		found, err := migration.ListMigrations(dir)
		if err != nil {
			return err
		}
		log.Info("Migrations", zap.String("dir", dir), zap.Int("count", len(found)))
		for _, name := range found {
			fmt.Println("  -", name)
		}
		return nil
	}},
}

func main() {
	var dir, logLevel string
	flag.StringVar(&dir, "path", "", "Read migrations from this directory instead of the set compiled into the binary")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	name, args := flag.Arg(0), flag.Args()[1:]

	log, err := logger.New(&logger.Config{Level: logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	if err := run(name, args, dir, log); err != nil {
		if errors.Is(err, errUsage) {
			usage()
			os.Exit(2)
		}
		log.Fatal("Migration command failed", zap.String("command", name), zap.Error(err))
	}
}

func run(name string, args []string, dir string, log *zap.Logger) error {
	if cmd, ok := fileCommands[name]; ok {
		if dir == "" {
			dir = findSourceTree()
		}
		return cmd.run(dir, args, log)
	}

	cmd, ok := schemaCommands[name]
	if !ok {
		log.Error("Unknown command", zap.String("command", name))
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	src := migration.Embedded(migrations.FS)
	if dir != "" {
		src = migration.Dir(dir)
	}
	m, err := migration.New(db, src, log)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() { _ = m.Close() }()

	log.Info("Running migration command",
		zap.String("command", name),
		zap.String("source", src.String()),
		zap.String("database", cfg.Database.DBName),
	)
	return cmd.run(m, args, log)
}

func intArg(args []string) (int, error) {
	if len(args) == 0 {
		return 0, errUsage
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%q is not a number: %w", args[0], errUsage)
	}
	return n, nil
}

// findSourceTree looks for the migrations directory in the working directory,
// then at the repository root relative to the binary
func findSourceTree() string {
	if _, err := os.Stat(sourceTree); err == nil {
		return sourceTree
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "..", "..", sourceTree)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return sourceTree
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "Connectors schema migrations")
	fmt.Fprintln(out, "\nUsage:\n  migrate [flags] <command> [arguments]")
	fmt.Fprintln(out, "\nDatabase commands:")
	for _, name := range sortedKeys(schemaCommands) {
		fmt.Fprintf(out, "  %-28s %s\n", schemaCommands[name].usage, schemaCommands[name].help)
	}
	fmt.Fprintln(out, "\nSource tree commands:")
	for _, name := range sortedKeys(fileCommands) {
		fmt.Fprintf(out, "  %-28s %s\n", fileCommands[name].usage, fileCommands[name].help)
	}
	fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
	fmt.Fprintln(out, "\nThe database is read from CONN_DATABASE_HOST, CONN_DATABASE_PORT, CONN_DATABASE_USER,")
	fmt.Fprintln(out, "CONN_DATABASE_PASSWORD, CONN_DATABASE_DBNAME and CONN_DATABASE_SSLMODE.")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
