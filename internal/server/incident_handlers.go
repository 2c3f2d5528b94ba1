package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ppandrangi/crms/internal/apperr"
	"github.com/ppandrangi/crms/internal/db/bunx"
	"github.com/ppandrangi/crms/internal/services/incident"
	"github.com/ppandrangi/crms/internal/services/validation"
)

type createIncidentRequest struct {
	OccurredAt    string  `json:"occurredAt"`
	Location      string  `json:"location"`
	CrimeType     string  `json:"crimeType"`
	Description   string  `json:"description"`
	Status        string  `json:"status"`
	ClosingReason *string `json:"closingReason"`
	ReportedByID  *string `json:"reportedById"`
}

// incidentID reads the {id} path parameter. Ids that are not UUIDs cannot
// exist, so they are answered with 404 before any query runs.
func incidentID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if !bunx.IsUUID(id) {
		return "", apperr.NotFound(incident.MessageNotFound)
	}
	return id, nil
}

// HandleListIncidents returns one filtered, sorted page of incidents.
func HandleListIncidents(svc incidentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		result, err := svc.List(r.Context(), incident.ListParams{
			Page:        q.Get("page"),
			Limit:       q.Get("limit"),
			Status:      q.Get("status"),
			SearchQuery: q.Get("searchQuery"),
			SortBy:      q.Get("sortBy"),
			SortOrder:   q.Get("sortOrder"),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toListIncidentsResponse(result))
	}
}

// HandleCreateIncident files a new incident for the caller.
func HandleCreateIncident(svc incidentService, validator validation.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireIdentity(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		var req createIncidentRequest
		if err := decodeBody(w, r, validator, validation.SchemaIncidentCreate, &req); err != nil {
			writeError(w, r, err)
			return
		}

		input := incident.CreateInput{
			OccurredAt:    req.OccurredAt,
			Location:      req.Location,
			CrimeType:     req.CrimeType,
			Description:   req.Description,
			Status:        req.Status,
			ClosingReason: req.ClosingReason,
		}
		if req.ReportedByID != nil {
			input.ReportedByID = *req.ReportedByID
		}

		created, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toIncidentResponse(created))
	}
}

// HandleGetIncident returns one incident with its reporter.
func HandleGetIncident(svc incidentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := incidentID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		found, err := svc.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toIncidentResponse(found))
	}
}

// HandleUpdateIncident applies a partial update. Unknown keys are ignored.
func HandleUpdateIncident(svc incidentService, validator validation.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireIdentity(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		var raw map[string]any
		if err := decodeBody(w, r, validator, validation.SchemaIncidentPatch, &raw); err != nil {
			writeError(w, r, err)
			return
		}
		patch, err := incident.DecodePatch(raw)
		if err != nil {
			writeError(w, r, apperr.Validation(incident.MessageInvalidFields, nil))
			return
		}

		id, err := incidentID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		updated, err := svc.Update(r.Context(), actor, id, patch)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toIncidentResponse(updated))
	}
}

// HandleDeleteIncident removes an incident and its evidence.
func HandleDeleteIncident(svc incidentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireIdentity(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		id, err := incidentID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if err := svc.Delete(r.Context(), actor, id); err != nil {
			writeError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
