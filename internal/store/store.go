// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/capitalize-ai/project-onboarding/internal/model"
)

var (
	// ErrUnavailable means the storage could not be reached or was busy. Retrying may help.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrRejected means the storage refused the request. Retrying will not help.
	ErrRejected = errors.New("storage rejected request")
	// ErrAssociationMismatch means the competitors linked to a new project differ from the request.
	ErrAssociationMismatch = errors.New("project competitor associations do not match request")
)

// Repository defines the interface for persisting onboarding data.
type Repository interface {
	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// FindOwner looks an owner up by email. It returns nil, nil when none exists.
	FindOwner(ctx context.Context, email string) (*model.Owner, error)

	// CreateOwner creates an owner for email.
	CreateOwner(ctx context.Context, email string) (*model.Owner, error)

	// ListCompetitors returns the whole competitor pool.
	ListCompetitors(ctx context.Context) ([]model.Competitor, error)

	// UpsertCompetitors adds or updates pool entries.
	UpsertCompetitors(ctx context.Context, competitors []model.Competitor) error

	// CreateProject creates a project and links its competitors in one
	// transaction. The links are verified against the request before commit.
	CreateProject(ctx context.Context, p model.NewProject) (*model.Project, error)

	// GetProject returns a project or nil, nil.
	GetProject(ctx context.Context, id string) (*model.Project, error)

	// CreateProduct creates the product record for a project.
	CreateProduct(ctx context.Context, p model.NewProduct) (*model.Product, error)

	// SaveReport stores a generated report.
	SaveReport(ctx context.Context, r *model.Report) error

	// ListReports returns the reports of a project, newest first.
	ListReports(ctx context.Context, projectID string) ([]model.Report, error)

	// SaveSchedule creates or replaces the recurring schedule of a project.
	SaveSchedule(ctx context.Context, s *model.ScheduleInfo) error

	// GetSchedule returns the schedule of a project or nil, nil.
	GetSchedule(ctx context.Context, projectID string) (*model.ScheduleInfo, error)

	// GetSession loads a session snapshot. It returns nil, nil when none exists.
	GetSession(ctx context.Context, id string) (*model.Session, error)

	// SaveSession creates or updates a session snapshot.
	SaveSession(ctx context.Context, s *model.Session) error
}
