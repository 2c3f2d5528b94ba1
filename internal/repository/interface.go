package repository

import (
	"context"
	"errors"

	"github.com/ppandrangi/crms/internal/db/models"
)

var (
	// ErrNotFound is wrapped by every lookup, update and delete that matches no row.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is wrapped when an insert violates a unique constraint
	// (users.badge_id, incidents.case_number).
	ErrDuplicate = errors.New("duplicate key")

	// ErrMissingParent is wrapped when an insert references a row that no longer exists
	ErrMissingParent = errors.New("referenced row missing")
)

// UserRepository exposes persistence operations for officer accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByBadgeID(ctx context.Context, badgeID string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

// IncidentRepository exposes persistence operations for incidents.
// Returned incidents carry their ReportedBy relation.
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id string) (*models.Incident, error)
	// List returns one page of incidents matching the filter together with the
	// total number of matches. Both are read from the same snapshot.
	List(ctx context.Context, filter IncidentFilter) ([]models.Incident, int, error)
	Update(ctx context.Context, incident *models.Incident) error
	// Delete removes the incident and all of its evidence atomically.
	Delete(ctx context.Context, id string) error
}

// EvidenceRepository exposes persistence operations for evidence records.
// Returned evidence carries its AddedBy relation.
type EvidenceRepository interface {
	Create(ctx context.Context, evidence *models.Evidence) error
	GetByID(ctx context.Context, id string) (*models.Evidence, error)
	ListByIncident(ctx context.Context, incidentID string) ([]models.Evidence, error)
	Delete(ctx context.Context, id string) error
}

// IncidentFilter selects and orders a page of incidents.
type IncidentFilter struct {
	// Status restricts results to a single status when non-empty.
	Status models.IncidentStatus
	// Search is matched case-insensitively as a substring of the case number,
	// crime type, location or description.
	Search string
	// SortBy is a key of IncidentSortColumns. Unknown keys sort by reportedAt.
	SortBy string
	// Ascending flips the default descending order.
	Ascending bool
	Limit     int
	Offset    int
}

// IncidentSortColumns maps the sortable API field names to incident columns.
var IncidentSortColumns = map[string]string{
	"reportedAt": "reported_at",
	"occurredAt": "occurred_at",
	"status":     "status",
	"crimeType":  "crime_type",
	"location":   "location",
	"caseNumber": "case_number",
}
