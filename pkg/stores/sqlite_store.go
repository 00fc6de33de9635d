package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const memoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

var _ Store = (*SQLiteStore)(nil)

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 8
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: opens a separate database.
	if cfg.Path == memoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Open creates, initializes and migrates a store in one step.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	s, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Init opens the database connection. File databases use WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	if s.cfg.Path != memoryPath {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CreateFit creates a new fit record
func (s *SQLiteStore) CreateFit(ctx context.Context, fit *Fit) error {
	query := `
		INSERT INTO fits (id, model_path, seed, walkers, status, best_score, started_at,
			completed_at, error, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if fit.CreatedAt.IsZero() {
		fit.CreatedAt = now
	}
	if fit.UpdatedAt.IsZero() {
		fit.UpdatedAt = now
	}
	if fit.StartedAt.IsZero() {
		fit.StartedAt = now
	}
	if fit.Metadata == "" {
		fit.Metadata = "{}"
	}

	_, err := s.db.ExecContext(ctx, query,
		fit.ID,
		fit.ModelPath,
		int64(fit.Seed),
		fit.Walkers,
		fit.Status,
		fit.BestScore,
		fit.StartedAt,
		fit.CompletedAt,
		fit.Error,
		fit.Metadata,
		fit.CreatedAt,
		fit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create fit: %w", err)
	}

	return nil
}

const fitColumns = `id, model_path, seed, walkers, status, best_score, started_at,
	completed_at, error, metadata, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFit(row rowScanner) (*Fit, error) {
	fit := &Fit{}
	var seed int64
	err := row.Scan(
		&fit.ID,
		&fit.ModelPath,
		&seed,
		&fit.Walkers,
		&fit.Status,
		&fit.BestScore,
		&fit.StartedAt,
		&fit.CompletedAt,
		&fit.Error,
		&fit.Metadata,
		&fit.CreatedAt,
		&fit.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	fit.Seed = uint64(seed)
	return fit, nil
}

// GetFit retrieves a fit by ID
func (s *SQLiteStore) GetFit(ctx context.Context, id string) (*Fit, error) {
	query := `SELECT ` + fitColumns + ` FROM fits WHERE id = ?`

	fit, err := scanFit(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fit %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fit: %w", err)
	}

	return fit, nil
}

// UpdateFitStatus updates the status of a fit. Terminal statuses stamp the
// completion time.
func (s *SQLiteStore) UpdateFitStatus(ctx context.Context, id string, status FitStatus, bestScore *float64, errMsg *string) error {
	query := `
		UPDATE fits
		SET status = ?, best_score = COALESCE(?, best_score), error = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	now := time.Now().UTC()
	var completedAt *time.Time
	if status.Terminal() {
		completedAt = &now
	}

	result, err := s.db.ExecContext(ctx, query, status, bestScore, errMsg, completedAt, now, id)
	if err != nil {
		return fmt.Errorf("failed to update fit status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("fit %s: %w", id, ErrNotFound)
	}

	return nil
}

// ListFits lists fits newest first with pagination
func (s *SQLiteStore) ListFits(ctx context.Context, limit, offset int) ([]*Fit, error) {
	query := `SELECT ` + fitColumns + ` FROM fits ORDER BY started_at DESC, id LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list fits: %w", err)
	}
	defer rows.Close()

	fits := []*Fit{}
	for rows.Next() {
		fit, err := scanFit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fit: %w", err)
		}
		fits = append(fits, fit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fits: %w", err)
	}

	return fits, nil
}

// DeleteFit deletes a fit and its walkers
func (s *SQLiteStore) DeleteFit(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM fits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete fit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("fit %s: %w", id, ErrNotFound)
	}

	return nil
}

// SaveWalker records a walker's final state. Saving the same walker index
// twice replaces the earlier row.
func (s *SQLiteStore) SaveWalker(ctx context.Context, w *Walker) error {
	query := `
		INSERT INTO walkers (fit_id, walker_index, seed, score, method, evaluations, x, parameters, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (fit_id, walker_index) DO UPDATE SET
			seed = excluded.seed,
			score = excluded.score,
			method = excluded.method,
			evaluations = excluded.evaluations,
			x = excluded.x,
			parameters = excluded.parameters,
			created_at = excluded.created_at
		RETURNING id
	`

	x, err := json.Marshal(w.X)
	if err != nil {
		return fmt.Errorf("failed to encode walker position: %w", err)
	}
	params, err := json.Marshal(w.Parameters)
	if err != nil {
		return fmt.Errorf("failed to encode walker parameters: %w", err)
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}

	err = s.db.QueryRowContext(ctx, query,
		w.FitID,
		w.Index,
		int64(w.Seed),
		w.Score,
		w.Method,
		w.Evaluations,
		string(x),
		string(params),
		w.CreatedAt,
	).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("failed to save walker: %w", err)
	}

	return nil
}

const walkerColumns = `id, fit_id, walker_index, seed, score, method, evaluations, x, parameters, created_at`

func scanWalker(row rowScanner) (*Walker, error) {
	w := &Walker{}
	var (
		seed      int64
		x, params string
	)
	err := row.Scan(
		&w.ID,
		&w.FitID,
		&w.Index,
		&seed,
		&w.Score,
		&w.Method,
		&w.Evaluations,
		&x,
		&params,
		&w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	w.Seed = uint64(seed)
	if err := json.Unmarshal([]byte(x), &w.X); err != nil {
		return nil, fmt.Errorf("walker %d position: %w", w.ID, err)
	}
	if err := json.Unmarshal([]byte(params), &w.Parameters); err != nil {
		return nil, fmt.Errorf("walker %d parameters: %w", w.ID, err)
	}
	return w, nil
}

// ListWalkers lists a fit's walkers best score first
func (s *SQLiteStore) ListWalkers(ctx context.Context, fitID string) ([]*Walker, error) {
	query := `SELECT ` + walkerColumns + ` FROM walkers WHERE fit_id = ? ORDER BY score DESC, walker_index`

	rows, err := s.db.QueryContext(ctx, query, fitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list walkers: %w", err)
	}
	defer rows.Close()

	walkers := []*Walker{}
	for rows.Next() {
		w, err := scanWalker(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan walker: %w", err)
		}
		walkers = append(walkers, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating walkers: %w", err)
	}

	return walkers, nil
}

// BestWalker returns the highest scoring walker of a fit
func (s *SQLiteStore) BestWalker(ctx context.Context, fitID string) (*Walker, error) {
	query := `SELECT ` + walkerColumns + ` FROM walkers WHERE fit_id = ? ORDER BY score DESC, walker_index LIMIT 1`

	w, err := scanWalker(s.db.QueryRowContext(ctx, query, fitID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("walkers for fit %s: %w", fitID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get best walker: %w", err)
	}

	return w, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
