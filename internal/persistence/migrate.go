package persistence

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"

	"civicbriefs/internal/logger"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus represents the status of a migration
type MigrationStatus struct {
	Version     int
	Description string
	Applied     bool
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// MigrationManager handles database migrations for the connected dialect
type MigrationManager struct {
	db  *SQLDB
	dir string
	log *slog.Logger
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *SQLDB) *MigrationManager {
	dir := "migrations/sqlite"
	if db.driver == DriverPostgres {
		dir = "migrations/postgres"
	}
	return &MigrationManager{
		db:  db,
		dir: dir,
		log: logger.Get(),
	}
}

// Migrate applies every pending migration in version order, each in its own transaction.
func (m *MigrationManager) Migrate(ctx context.Context) error {
	available, applied, err := m.inventory(ctx)
	if err != nil {
		return err
	}

	var pending []Migration
	for _, mig := range available {
		if !applied[mig.Version] {
			pending = append(pending, mig)
		}
	}
	if len(pending) == 0 {
		m.log.Debug("Schema up to date", "driver", m.db.driver)
		return nil
	}

	for _, mig := range pending {
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
		}
	}
	m.log.Info("Applied migrations", "driver", m.db.driver, "count", len(pending))
	return nil
}

// Status lists every known migration and whether it has been applied.
func (m *MigrationManager) Status(ctx context.Context) ([]MigrationStatus, error) {
	available, applied, err := m.inventory(ctx)
	if err != nil {
		return nil, err
	}
	status := make([]MigrationStatus, 0, len(available))
	for _, mig := range available {
		status = append(status, MigrationStatus{
			Version:     mig.Version,
			Description: mig.Description,
			Applied:     applied[mig.Version],
		})
	}
	return status, nil
}

// inventory returns the embedded migrations and the set of applied versions.
func (m *MigrationManager) inventory(ctx context.Context) ([]Migration, map[int]bool, error) {
	if _, err := m.db.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	query, args, err := m.db.sb.Select("version").From("schema_migrations").ToSql()
	if err != nil {
		return nil, nil, err
	}
	rows, err := m.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, nil, err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	available, err := m.loadMigrations()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	return available, applied, nil
}

// loadMigrations loads the dialect's migration files from the embedded filesystem
func (m *MigrationManager) loadMigrations() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" {
			continue
		}

		// "001_initial_schema.sql" -> 1, "initial schema"
		prefix, rest, ok := strings.Cut(strings.TrimSuffix(name, ".sql"), "_")
		version, err := strconv.Atoi(prefix)
		if !ok || err != nil {
			m.log.Warn("Skipping migration file without a numeric version prefix", "file", name)
			continue
		}
		description := strings.ReplaceAll(rest, "_", " ")

		content, err := migrationFiles.ReadFile(path.Join(m.dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		migrations = append(migrations, Migration{
			Version:     version,
			Description: description,
			SQL:         string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// apply runs one migration and records it atomically.
func (m *MigrationManager) apply(ctx context.Context, migration Migration) error {
	m.log.Info("Applying migration", "version", migration.Version, "description", migration.Description)

	tx, err := m.db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	query, args, err := m.db.sb.Insert("schema_migrations").
		Columns("version", "description").
		Values(migration.Version, migration.Description).
		Suffix("ON CONFLICT (version) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

// Migrate applies pending migrations for db's dialect.
func (s *SQLDB) Migrate(ctx context.Context) error {
	return NewMigrationManager(s).Migrate(ctx)
}
