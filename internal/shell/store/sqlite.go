package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", 0, "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", 0, "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", 0, err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Deployment History Operations
// =============================================================================

// deploymentRow represents a deployment history row in the database.
type deploymentRow struct {
	ID           int64  `db:"id"`
	AppName      string `db:"app_name"`
	ArtifactPath string `db:"artifact_path"`
	State        string `db:"state"`
	Detail       string `db:"detail"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

func (r deploymentRow) toRecord() DeploymentRecord {
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	updated, _ := time.Parse(time.RFC3339, r.UpdatedAt)
	return DeploymentRecord{
		ID:           r.ID,
		AppName:      r.AppName,
		ArtifactPath: r.ArtifactPath,
		State:        r.State,
		Detail:       r.Detail,
		CreatedAt:    created,
		UpdatedAt:    updated,
	}
}

// DeploymentStarted records a new deploy attempt in the "pushed"-pending
// state and returns the record ID.
func (s *SQLiteStore) DeploymentStarted(ctx context.Context, appName, artifactPath string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO deployments (app_name, artifact_path, state, detail, created_at, updated_at)
		VALUES (?, ?, 'pending', '', ?, ?)`,
		appName, artifactPath, now, now,
	)
	if err != nil {
		return 0, NewStoreError("DeploymentStarted", 0, err.Error(), err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, NewStoreError("DeploymentStarted", 0, err.Error(), err)
	}
	return id, nil
}

// DeploymentState updates the state of a recorded deploy attempt.
func (s *SQLiteStore) DeploymentState(ctx context.Context, id int64, state, detail string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE deployments SET state = ?, detail = ?, updated_at = ? WHERE id = ?`,
		state, detail, now, id,
	)
	if err != nil {
		return NewStoreError("DeploymentState", id, err.Error(), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return NewStoreError("DeploymentState", id, err.Error(), err)
	}
	if affected == 0 {
		return NewStoreError("DeploymentState", id, "no such record", ErrNotFound)
	}
	return nil
}

// ListDeployments returns recorded deploy attempts, most recent first.
func (s *SQLiteStore) ListDeployments(ctx context.Context, appName string) ([]DeploymentRecord, error) {
	query := `SELECT id, app_name, artifact_path, state, detail, created_at, updated_at
		FROM deployments`
	args := []any{}
	if appName != "" {
		query += ` WHERE app_name = ?`
		args = append(args, appName)
	}
	query += ` ORDER BY id DESC`

	var rows []deploymentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError("ListDeployments", 0, err.Error(), err)
	}

	records := make([]DeploymentRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toRecord())
	}
	return records, nil
}
