package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ppandrangi/crms/internal/apperr"
	"github.com/ppandrangi/crms/internal/db/bunx"
	"github.com/ppandrangi/crms/internal/services/evidence"
	"github.com/ppandrangi/crms/internal/services/validation"
)

type createEvidenceRequest struct {
	Description      string `json:"description"`
	Type             string `json:"type"`
	StorageReference string `json:"storageReference"`
}

// HandleListEvidence lists the evidence of an incident, oldest first.
func HandleListEvidence(svc evidenceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := incidentID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		items, err := svc.ListForIncident(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		resp := make([]evidenceResponse, 0, len(items))
		for i := range items {
			resp = append(resp, toEvidenceResponse(&items[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleCreateEvidence attaches evidence to an incident.
func HandleCreateEvidence(svc evidenceService, validator validation.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireIdentity(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		var req createEvidenceRequest
		if err := decodeBody(w, r, validator, validation.SchemaEvidenceCreate, &req); err != nil {
			writeError(w, r, err)
			return
		}

		id, err := incidentID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		created, err := svc.Create(r.Context(), actor, id, evidence.CreateInput{
			Description:      req.Description,
			Type:             req.Type,
			StorageReference: req.StorageReference,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toEvidenceResponse(created))
	}
}

// HandleDeleteEvidence removes one evidence record.
func HandleDeleteEvidence(svc evidenceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireIdentity(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		evidenceID := chi.URLParam(r, "evidenceId")
		if !bunx.IsUUID(evidenceID) {
			writeError(w, r, apperr.NotFound(evidence.MessageNotFound))
			return
		}

		if err := svc.Delete(r.Context(), actor, chi.URLParam(r, "id"), evidenceID); err != nil {
			writeError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
