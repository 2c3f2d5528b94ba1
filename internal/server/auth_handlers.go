package server

import (
	"net/http"

	"github.com/ppandrangi/crms/internal/services/iam"
	"github.com/ppandrangi/crms/internal/services/validation"
)

type loginRequest struct {
	BadgeID  string `json:"badgeId"`
	Password string `json:"password"`
}

type createUserRequest struct {
	BadgeID  string `json:"badgeId"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// HandleLogin exchanges a badge id and password for a bearer token.
func HandleLogin(svc iamService, validator validation.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeBody(w, r, validator, validation.SchemaLogin, &req); err != nil {
			writeError(w, r, err)
			return
		}

		result, err := svc.Login(r.Context(), req.BadgeID, req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, loginResponse{Token: result.Token})
	}
}

// HandleCreateUser registers a new officer. Signup never grants admin; admins
// are created with the users CLI.
func HandleCreateUser(svc iamService, validator validation.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if err := decodeBody(w, r, validator, validation.SchemaSignup, &req); err != nil {
			writeError(w, r, err)
			return
		}

		user, err := svc.CreateUser(r.Context(), iam.CreateUserInput{
			BadgeID:  req.BadgeID,
			Name:     req.Name,
			Password: req.Password,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toUserResponse(user))
	}
}

// HandleListUsers lists every officer without password hashes.
func HandleListUsers(svc iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := svc.ListUsers(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}

		resp := make([]userResponse, 0, len(users))
		for i := range users {
			resp = append(resp, toUserResponse(&users[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
