package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/ppandrangi/crms/internal/apperr"
	"github.com/ppandrangi/crms/internal/auth"
	"github.com/ppandrangi/crms/internal/services/validation"
)

// maxBodyBytes caps request bodies. Evidence stores references, not files.
const maxBodyBytes = 1 << 20

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Message string             `json:"message"`
	Errors  apperr.FieldErrors `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("ERROR: failed to encode response: %v", err)
	}
}

// writeError answers with the status of the error's kind. Causes are logged
// for server faults and never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.As(err)
	status := appErr.Kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("ERROR: %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorResponse{Message: appErr.Message, Errors: appErr.Fields})
}

// decodeBody validates the request body against a schema and unmarshals it into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, validator validation.Validator, schema string, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("Request body is too large.", nil)
		}
		return apperr.Validation("Could not read request body.", nil)
	}

	if err := validator.Validate(schema, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Validation("Request body must be valid JSON.", nil)
	}
	return nil
}

// requireIdentity returns the caller set by the Access Gate. Mutating handlers
// call it so a route left out of the protected paths still fails closed.
func requireIdentity(r *http.Request) (auth.Identity, error) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity.UserID == "" {
		return auth.Identity{}, apperr.New(apperr.KindAuthRequired, "Authentication required.")
	}
	return identity, nil
}
