package stores

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a fit or walker does not exist.
var ErrNotFound = errors.New("not found")

// FitStatus represents the status of a fit run
type FitStatus string

const (
	FitStatusPending   FitStatus = "pending"
	FitStatusRunning   FitStatus = "running"
	FitStatusCompleted FitStatus = "completed"
	FitStatusFailed    FitStatus = "failed"
	FitStatusCancelled FitStatus = "cancelled"
)

// Terminal reports whether the status ends a fit.
func (s FitStatus) Terminal() bool {
	return s == FitStatusCompleted || s == FitStatusFailed || s == FitStatusCancelled
}

// Fit represents one fit run over a model
type Fit struct {
	ID          string     `json:"id"`
	ModelPath   string     `json:"model_path"`
	Seed        uint64     `json:"seed"`
	Walkers     int        `json:"walkers"`
	Status      FitStatus  `json:"status"`
	BestScore   *float64   `json:"best_score,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	Metadata    string     `json:"metadata"` // JSON blob
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Walker is the final state of one walker in a fit.
type Walker struct {
	ID          int64   `json:"id"`
	FitID       string  `json:"fit_id"`
	Index       int     `json:"index"`
	Seed        uint64  `json:"seed"`
	Score       float64 `json:"score"`
	Method      string  `json:"method,omitempty"`
	Evaluations int     `json:"evaluations"`

	// X holds the unit-cube position in free-parameter order.
	X []float64 `json:"x"`

	// Parameters maps each free parameter to its physical value.
	Parameters map[string]float64 `json:"parameters"`

	CreatedAt time.Time `json:"created_at"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Fit operations
	CreateFit(ctx context.Context, fit *Fit) error
	GetFit(ctx context.Context, id string) (*Fit, error)
	UpdateFitStatus(ctx context.Context, id string, status FitStatus, bestScore *float64, errMsg *string) error
	ListFits(ctx context.Context, limit, offset int) ([]*Fit, error)
	DeleteFit(ctx context.Context, id string) error

	// Walker operations
	SaveWalker(ctx context.Context, w *Walker) error
	ListWalkers(ctx context.Context, fitID string) ([]*Walker, error)
	BestWalker(ctx context.Context, fitID string) (*Walker, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
