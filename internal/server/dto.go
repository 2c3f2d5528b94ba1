package server

import (
	"time"

	"github.com/ppandrangi/crms/internal/db/models"
	"github.com/ppandrangi/crms/internal/services/incident"
)

type userResponse struct {
	ID        string    `json:"id"`
	BadgeID   string    `json:"badgeId"`
	Name      string    `json:"name"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// personSummary identifies the reporter of an incident or the adder of evidence.
type personSummary struct {
	ID      string `json:"id"`
	BadgeID string `json:"badgeId"`
	Name    string `json:"name"`
}

type incidentResponse struct {
	ID            string         `json:"id"`
	CaseNumber    string         `json:"caseNumber"`
	ReportedAt    time.Time      `json:"reportedAt"`
	OccurredAt    time.Time      `json:"occurredAt"`
	Location      string         `json:"location"`
	CrimeType     string         `json:"crimeType"`
	Description   string         `json:"description"`
	Status        string         `json:"status"`
	ClosingReason *string        `json:"closingReason"`
	ReportedByID  string         `json:"reportedById"`
	ReportedBy    *personSummary `json:"reportedBy,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

type paginationResponse struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalCount  int `json:"totalCount"`
	Limit       int `json:"limit"`
}

type listIncidentsResponse struct {
	Incidents  []incidentResponse `json:"incidents"`
	Pagination paginationResponse `json:"pagination"`
}

type evidenceResponse struct {
	ID               string         `json:"id"`
	Description      string         `json:"description"`
	Type             string         `json:"type"`
	StorageReference string         `json:"storageReference"`
	IncidentID       string         `json:"incidentId"`
	AddedByID        string         `json:"addedById"`
	AddedBy          *personSummary `json:"addedBy,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		BadgeID:   u.BadgeID,
		Name:      u.Name,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toPersonSummary(u *models.User) *personSummary {
	if u == nil {
		return nil
	}
	return &personSummary{ID: u.ID, BadgeID: u.BadgeID, Name: u.Name}
}

func toIncidentResponse(i *models.Incident) incidentResponse {
	return incidentResponse{
		ID:            i.ID,
		CaseNumber:    i.CaseNumber,
		ReportedAt:    i.ReportedAt,
		OccurredAt:    i.OccurredAt,
		Location:      i.Location,
		CrimeType:     i.CrimeType,
		Description:   i.Description,
		Status:        string(i.Status),
		ClosingReason: i.ClosingReason,
		ReportedByID:  i.ReportedByID,
		ReportedBy:    toPersonSummary(i.ReportedBy),
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
}

func toListIncidentsResponse(result *incident.ListResult) listIncidentsResponse {
	incidents := make([]incidentResponse, 0, len(result.Incidents))
	for i := range result.Incidents {
		incidents = append(incidents, toIncidentResponse(&result.Incidents[i]))
	}
	return listIncidentsResponse{
		Incidents: incidents,
		Pagination: paginationResponse{
			CurrentPage: result.Pagination.CurrentPage,
			TotalPages:  result.Pagination.TotalPages,
			TotalCount:  result.Pagination.TotalCount,
			Limit:       result.Pagination.Limit,
		},
	}
}

func toEvidenceResponse(e *models.Evidence) evidenceResponse {
	return evidenceResponse{
		ID:               e.ID,
		Description:      e.Description,
		Type:             string(e.Type),
		StorageReference: e.StorageReference,
		IncidentID:       e.IncidentID,
		AddedByID:        e.AddedByID,
		AddedBy:          toPersonSummary(e.AddedBy),
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}
