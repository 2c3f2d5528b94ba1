package evidence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ppandrangi/crms/internal/apperr"
	"github.com/ppandrangi/crms/internal/auth"
	"github.com/ppandrangi/crms/internal/db/models"
	"github.com/ppandrangi/crms/internal/repository"
	"github.com/ppandrangi/crms/internal/telemetry"
)

// Client-facing messages
const (
	MessageAuthRequired     = "Authentication required."
	MessageIncidentNotFound = "Incident not found."
	MessageNotFound         = "Evidence not found."
	MessageWrongIncident    = "Evidence does not belong to this incident."
	MessageForbidden        = "You do not have permission to delete this evidence."
	MessageInvalidFields    = "Validation failed."
)

// Authorizer decides whether an actor may act on a resource owned by ownerID.
type Authorizer interface {
	Allowed(actor auth.Identity, action, ownerID string) (bool, error)
}

// CreateInput carries the fields of a new evidence record.
type CreateInput struct {
	Description      string
	Type             string
	StorageReference string
}

// Service manages evidence attached to incidents
type Service struct {
	evidence  repository.EvidenceRepository
	incidents repository.IncidentRepository
	policy    Authorizer
}

// NewService creates a new evidence service
func NewService(evidence repository.EvidenceRepository, incidents repository.IncidentRepository, policy Authorizer) *Service {
	return &Service{
		evidence:  evidence,
		incidents: incidents,
		policy:    policy,
	}
}

// ListForIncident returns the evidence of an incident, oldest first.
func (s *Service) ListForIncident(ctx context.Context, incidentID string) ([]models.Evidence, error) {
	if err := s.requireIncident(ctx, incidentID); err != nil {
		return nil, err
	}

	items, err := s.evidence.ListByIncident(ctx, incidentID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list evidence: %w", err))
	}
	return items, nil
}

// Create attaches evidence to an incident. The actor becomes the adder.
func (s *Service) Create(ctx context.Context, actor auth.Identity, incidentID string, input CreateInput) (*models.Evidence, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerEvidence, "evidence.Create",
		attribute.String(telemetry.AttrIncidentID, incidentID),
		attribute.String(telemetry.AttrUserID, actor.UserID),
	)
	defer span.End()

	if actor.UserID == "" {
		return nil, apperr.New(apperr.KindAuthRequired, MessageAuthRequired)
	}

	fields := apperr.FieldErrors{}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		fields.Add("description", "Must not be blank.")
	}
	evidenceType := models.EvidenceType(strings.TrimSpace(input.Type))
	if evidenceType == "" {
		fields.Add("type", "Must not be blank.")
	} else if !evidenceType.Valid() {
		fields.Add("type", invalidTypeMessage())
	}
	storageReference := strings.TrimSpace(input.StorageReference)
	if storageReference == "" {
		fields.Add("storageReference", "Must not be blank.")
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(MessageInvalidFields, fields)
	}

	if err := s.requireIncident(ctx, incidentID); err != nil {
		return nil, err
	}

	item := &models.Evidence{
		Description:      description,
		Type:             evidenceType,
		StorageReference: storageReference,
		IncidentID:       incidentID,
		AddedByID:        actor.UserID,
	}
	if err := s.evidence.Create(ctx, item); err != nil {
		// the incident was deleted after requireIncident saw it
		if errors.Is(err, repository.ErrMissingParent) {
			return nil, apperr.NotFound(MessageIncidentNotFound)
		}
		telemetry.RecordError(span, err)
		return nil, apperr.Internal(fmt.Errorf("create evidence: %w", err))
	}
	span.SetAttributes(attribute.String(telemetry.AttrEvidenceID, item.ID))

	created, err := s.evidence.GetByID(ctx, item.ID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("reload evidence: %w", err))
	}
	return created, nil
}

// Delete removes one evidence record. Checks run in order: existence, that
// the record belongs to incidentID, then ownership.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, incidentID, evidenceID string) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerEvidence, "evidence.Delete",
		attribute.String(telemetry.AttrIncidentID, incidentID),
		attribute.String(telemetry.AttrEvidenceID, evidenceID),
		attribute.String(telemetry.AttrUserID, actor.UserID),
	)
	defer span.End()

	if actor.UserID == "" {
		return apperr.New(apperr.KindAuthRequired, MessageAuthRequired)
	}

	item, err := s.evidence.GetByID(ctx, evidenceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(MessageNotFound)
		}
		return apperr.Internal(fmt.Errorf("get evidence: %w", err))
	}

	if item.IncidentID != incidentID {
		return apperr.Validation(MessageWrongIncident, nil)
	}

	allowed, err := s.policy.Allowed(actor, auth.EvidenceDelete, item.AddedByID)
	if err != nil {
		return apperr.Internal(err)
	}
	span.SetAttributes(
		attribute.String(telemetry.AttrPolicyAct, auth.EvidenceDelete),
		attribute.Bool(telemetry.AttrPolicyAllow, allowed),
	)
	if !allowed {
		return apperr.Forbidden(MessageForbidden)
	}

	if err := s.evidence.Delete(ctx, evidenceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(MessageNotFound)
		}
		telemetry.RecordError(span, err)
		return apperr.Internal(fmt.Errorf("delete evidence: %w", err))
	}
	return nil
}

func (s *Service) requireIncident(ctx context.Context, incidentID string) error {
	if _, err := s.incidents.GetByID(ctx, incidentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(MessageIncidentNotFound)
		}
		return apperr.Internal(fmt.Errorf("get incident: %w", err))
	}
	return nil
}

func invalidTypeMessage() string {
	names := make([]string, len(models.EvidenceTypes))
	for i, t := range models.EvidenceTypes {
		names[i] = string(t)
	}
	return "Must be one of: " + strings.Join(names, ", ") + "."
}
