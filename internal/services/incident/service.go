package incident

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ppandrangi/crms/internal/apperr"
	"github.com/ppandrangi/crms/internal/auth"
	"github.com/ppandrangi/crms/internal/db/bunx"
	"github.com/ppandrangi/crms/internal/db/models"
	"github.com/ppandrangi/crms/internal/repository"
	"github.com/ppandrangi/crms/internal/telemetry"
)

// Paging limits for List
const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// caseNumberAttempts bounds regeneration after a case number collision.
const caseNumberAttempts = 3

// Client-facing messages
const (
	MessageAuthRequired      = "Authentication required."
	MessageNotFound          = "Incident not found."
	MessageForbidden         = "You do not have permission to modify this incident."
	MessageFileForOthers     = "Only administrators may file incidents for another officer."
	MessageEmptyPatch        = "No updatable fields provided."
	MessageInvalidFields     = "Validation failed."
	MessageCaseNumberExhaust = "Could not allocate a unique case number. Please retry."
)

// Authorizer decides whether an actor may act on a resource owned by ownerID.
type Authorizer interface {
	Allowed(actor auth.Identity, action, ownerID string) (bool, error)
}

// CreateInput carries the fields of a new incident.
type CreateInput struct {
	OccurredAt    string
	Location      string
	CrimeType     string
	Description   string
	Status        string
	ClosingReason *string
	// ReportedByID files the incident for another officer. Empty means the actor.
	ReportedByID string
}

// ListParams are the raw query parameters of a list request. Values that do
// not parse or are not allowed fall back to defaults.
type ListParams struct {
	Page        string
	Limit       string
	Status      string
	SearchQuery string
	SortBy      string
	SortOrder   string
}

// Pagination describes the page returned by List.
type Pagination struct {
	CurrentPage int
	TotalPages  int
	TotalCount  int
	Limit       int
}

// ListResult is one page of incidents.
type ListResult struct {
	Incidents  []models.Incident
	Pagination Pagination
}

// Service implements the incident lifecycle
type Service struct {
	incidents repository.IncidentRepository
	users     repository.UserRepository
	policy    Authorizer
	now       func() time.Time
}

// NewService creates a new incident service
func NewService(incidents repository.IncidentRepository, users repository.UserRepository, policy Authorizer) *Service {
	return &Service{
		incidents: incidents,
		users:     users,
		policy:    policy,
		now:       time.Now,
	}
}

// WithClock overrides the clock used for report times and case numbers (optional)
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Create files a new incident owned by the actor, or by input.ReportedByID
// when an admin files on another officer's behalf.
func (s *Service) Create(ctx context.Context, actor auth.Identity, input CreateInput) (*models.Incident, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIncidents, "incident.Create",
		attribute.String(telemetry.AttrUserID, actor.UserID),
	)
	defer span.End()

	if actor.UserID == "" {
		return nil, apperr.New(apperr.KindAuthRequired, MessageAuthRequired)
	}

	fields := apperr.FieldErrors{}
	occurredAt, err := ParseOccurredAt(input.OccurredAt)
	if err != nil {
		fields.Add("occurredAt", "Must be a valid date.")
	}
	location := requireText(fields, "location", input.Location)
	crimeType := requireText(fields, "crimeType", input.CrimeType)
	description := requireText(fields, "description", input.Description)

	status := models.IncidentStatusOpen
	if input.Status != "" {
		status = models.IncidentStatus(input.Status)
		if !status.Valid() {
			fields.Add("status", invalidStatusMessage())
		}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(MessageInvalidFields, fields)
	}

	ownerID, err := s.resolveOwner(ctx, actor, strings.TrimSpace(input.ReportedByID))
	if err != nil {
		return nil, err
	}

	incident := &models.Incident{
		OccurredAt:    occurredAt,
		Location:      location,
		CrimeType:     crimeType,
		Description:   description,
		Status:        status,
		ClosingReason: trimmedOrNil(input.ClosingReason),
		ReportedByID:  ownerID,
	}

	for attempt := 1; ; attempt++ {
		now := s.now().UTC()
		incident.ID = ""
		incident.ReportedAt = now
		incident.CaseNumber = bunx.NewCaseNumber(now)

		err := s.incidents.Create(ctx, incident)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			telemetry.RecordError(span, err)
			return nil, apperr.Internal(fmt.Errorf("create incident: %w", err))
		}
		if attempt == caseNumberAttempts {
			telemetry.RecordError(span, err)
			return nil, apperr.Wrap(apperr.KindConflict, MessageCaseNumberExhaust, err)
		}
	}

	span.SetAttributes(
		attribute.String(telemetry.AttrIncidentID, incident.ID),
		attribute.String(telemetry.AttrCaseNumber, incident.CaseNumber),
	)

	return s.reload(ctx, incident.ID)
}

// Get returns an incident with its reporting officer.
func (s *Service) Get(ctx context.Context, id string) (*models.Incident, error) {
	incident, err := s.incidents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(MessageNotFound)
		}
		return nil, apperr.Internal(fmt.Errorf("get incident: %w", err))
	}
	return incident, nil
}

// List returns one page of incidents. The count and the page come from the
// same snapshot, so TotalCount always describes the returned rows.
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	page := parseIntOr(params.Page, 1)
	if page < 1 {
		page = 1
	}
	limit := min(max(parseIntOr(params.Limit, DefaultPageSize), 1), MaxPageSize)
	// keeps (page-1)*limit from overflowing; such a page is empty anyway
	page = min(page, math.MaxInt/limit)

	filter := repository.IncidentFilter{
		Search:    strings.TrimSpace(params.SearchQuery),
		SortBy:    params.SortBy,
		Ascending: strings.EqualFold(params.SortOrder, "asc"),
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}
	if status := models.IncidentStatus(params.Status); status.Valid() {
		filter.Status = status
	}
	if _, ok := repository.IncidentSortColumns[filter.SortBy]; !ok {
		// Unknown sort fields fall back to newest first, whatever the order.
		filter.SortBy = "reportedAt"
		filter.Ascending = false
	}

	incidents, total, err := s.incidents.List(ctx, filter)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list incidents: %w", err))
	}

	return &ListResult{
		Incidents: incidents,
		Pagination: Pagination{
			CurrentPage: page,
			TotalPages:  (total + limit - 1) / limit,
			TotalCount:  total,
			Limit:       limit,
		},
	}, nil
}

// Update applies a patch. Checks run in order: payload validation, existence,
// ownership. The closing reason is cleared whenever the resulting status is
// not Closed.
func (s *Service) Update(ctx context.Context, actor auth.Identity, id string, patch Patch) (*models.Incident, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIncidents, "incident.Update",
		attribute.String(telemetry.AttrIncidentID, id),
		attribute.String(telemetry.AttrUserID, actor.UserID),
	)
	defer span.End()

	if actor.UserID == "" {
		return nil, apperr.New(apperr.KindAuthRequired, MessageAuthRequired)
	}
	if patch.Empty() {
		return nil, apperr.Validation(MessageEmptyPatch, nil)
	}

	fields := apperr.FieldErrors{}
	var occurredAt time.Time
	if patch.OccurredAt != nil {
		var err error
		if occurredAt, err = ParseOccurredAt(*patch.OccurredAt); err != nil {
			fields.Add("occurredAt", "Must be a valid date.")
		}
	}
	var location, crimeType, description string
	if patch.Location != nil {
		location = requireText(fields, "location", *patch.Location)
	}
	if patch.CrimeType != nil {
		crimeType = requireText(fields, "crimeType", *patch.CrimeType)
	}
	if patch.Description != nil {
		description = requireText(fields, "description", *patch.Description)
	}
	if patch.Status != nil && !models.IncidentStatus(*patch.Status).Valid() {
		fields.Add("status", invalidStatusMessage())
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(MessageInvalidFields, fields)
	}

	incident, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(actor, auth.IncidentUpdate, incident.ReportedByID); err != nil {
		telemetry.AddEvent(span, "authorization.denied")
		return nil, err
	}

	if patch.OccurredAt != nil {
		incident.OccurredAt = occurredAt
	}
	if patch.Location != nil {
		incident.Location = location
	}
	if patch.CrimeType != nil {
		incident.CrimeType = crimeType
	}
	if patch.Description != nil {
		incident.Description = description
	}
	if patch.Status != nil {
		incident.Status = models.IncidentStatus(*patch.Status)
	}
	if patch.ClosingReasonSet {
		incident.ClosingReason = trimmedOrNil(patch.ClosingReason)
	}
	incident.NormalizeClosingReason()

	if err := s.incidents.Update(ctx, incident); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(MessageNotFound)
		}
		telemetry.RecordError(span, err)
		return nil, apperr.Internal(fmt.Errorf("update incident: %w", err))
	}

	return s.reload(ctx, incident.ID)
}

// Delete removes an incident and all of its evidence.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id string) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIncidents, "incident.Delete",
		attribute.String(telemetry.AttrIncidentID, id),
		attribute.String(telemetry.AttrUserID, actor.UserID),
	)
	defer span.End()

	if actor.UserID == "" {
		return apperr.New(apperr.KindAuthRequired, MessageAuthRequired)
	}

	incident, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.authorize(actor, auth.IncidentDelete, incident.ReportedByID); err != nil {
		telemetry.AddEvent(span, "authorization.denied")
		return err
	}

	if err := s.incidents.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(MessageNotFound)
		}
		telemetry.RecordError(span, err)
		return apperr.Internal(fmt.Errorf("delete incident: %w", err))
	}
	return nil
}

func (s *Service) authorize(actor auth.Identity, action, ownerID string) error {
	allowed, err := s.policy.Allowed(actor, action, ownerID)
	if err != nil {
		return apperr.Internal(err)
	}
	if !allowed {
		return apperr.Forbidden(MessageForbidden)
	}
	return nil
}

// resolveOwner returns the id the incident is filed under.
func (s *Service) resolveOwner(ctx context.Context, actor auth.Identity, requested string) (string, error) {
	if requested == "" || requested == actor.UserID {
		return actor.UserID, nil
	}
	if !actor.IsAdmin {
		return "", apperr.Forbidden(MessageFileForOthers)
	}

	if !bunx.IsUUID(requested) {
		return "", unknownReporter()
	}
	if _, err := s.users.GetByID(ctx, requested); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", unknownReporter()
		}
		return "", apperr.Internal(fmt.Errorf("lookup reporter: %w", err))
	}
	return requested, nil
}

// reload fetches the stored incident so the response carries its owner.
func (s *Service) reload(ctx context.Context, id string) (*models.Incident, error) {
	incident, err := s.incidents.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("reload incident: %w", err))
	}
	return incident, nil
}

func unknownReporter() error {
	fields := apperr.FieldErrors{}
	fields.Add("reportedById", "Unknown user.")
	return apperr.Validation(MessageInvalidFields, fields)
}

func requireText(fields apperr.FieldErrors, name, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		fields.Add(name, "Must not be blank.")
	}
	return value
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func parseIntOr(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return n
}

func invalidStatusMessage() string {
	names := make([]string, len(models.IncidentStatuses))
	for i, status := range models.IncidentStatuses {
		names[i] = string(status)
	}
	return "Must be one of: " + strings.Join(names, ", ") + "."
}
