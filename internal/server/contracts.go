package server

import (
	"context"

	"github.com/ppandrangi/crms/internal/auth"
	"github.com/ppandrangi/crms/internal/db/models"
	"github.com/ppandrangi/crms/internal/services/evidence"
	"github.com/ppandrangi/crms/internal/services/iam"
	"github.com/ppandrangi/crms/internal/services/incident"
)

// The interfaces below list exactly what the handlers call. The assertions at
// the bottom prove the concrete services satisfy them, and handler tests
// substitute function-field mocks.

type iamService interface {
	CreateUser(ctx context.Context, input iam.CreateUserInput) (*models.User, error)
	Login(ctx context.Context, badgeID, password string) (*iam.LoginResult, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

type incidentService interface {
	Create(ctx context.Context, actor auth.Identity, input incident.CreateInput) (*models.Incident, error)
	Get(ctx context.Context, id string) (*models.Incident, error)
	List(ctx context.Context, params incident.ListParams) (*incident.ListResult, error)
	Update(ctx context.Context, actor auth.Identity, id string, patch incident.Patch) (*models.Incident, error)
	Delete(ctx context.Context, actor auth.Identity, id string) error
}

type evidenceService interface {
	ListForIncident(ctx context.Context, incidentID string) ([]models.Evidence, error)
	Create(ctx context.Context, actor auth.Identity, incidentID string, input evidence.CreateInput) (*models.Evidence, error)
	Delete(ctx context.Context, actor auth.Identity, incidentID, evidenceID string) error
}

var (
	_ iamService      = (*iam.Service)(nil)
	_ incidentService = (*incident.Service)(nil)
	_ evidenceService = (*evidence.Service)(nil)
)
