package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppandrangi/crms/internal/apperr"
	"github.com/ppandrangi/crms/internal/auth"
	"github.com/ppandrangi/crms/internal/db/models"
	"github.com/ppandrangi/crms/internal/services/evidence"
	"github.com/ppandrangi/crms/internal/services/iam"
	"github.com/ppandrangi/crms/internal/services/incident"
	"github.com/ppandrangi/crms/internal/services/validation"
)

const (
	testSecret     = "handler-test-secret"
	testIncidentID = "0190f3a4-7c1e-7b44-9c1a-000000000001"
	testEvidenceID = "0190f3a4-7c1e-7b44-9c1a-000000000002"
)

var testOfficer = auth.Identity{UserID: "0190f3a4-7c1e-7b44-9c1a-5d1f2e3a4b5c", BadgeID: "OFFICER123"}

// mockIAMService is a mock implementation of the IAM service for testing
type mockIAMService struct {
	createUserFunc func(ctx context.Context, input iam.CreateUserInput) (*models.User, error)
	loginFunc      func(ctx context.Context, badgeID, password string) (*iam.LoginResult, error)
	listUsersFunc  func(ctx context.Context) ([]models.User, error)
}

func (m *mockIAMService) CreateUser(ctx context.Context, input iam.CreateUserInput) (*models.User, error) {
	if m.createUserFunc != nil {
		return m.createUserFunc(ctx, input)
	}
	return nil, errors.New("not implemented")
}

func (m *mockIAMService) Login(ctx context.Context, badgeID, password string) (*iam.LoginResult, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, badgeID, password)
	}
	return nil, errors.New("not implemented")
}

func (m *mockIAMService) ListUsers(ctx context.Context) ([]models.User, error) {
	if m.listUsersFunc != nil {
		return m.listUsersFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

// mockIncidentService is a mock implementation of the incident service for testing
type mockIncidentService struct {
	createFunc func(ctx context.Context, actor auth.Identity, input incident.CreateInput) (*models.Incident, error)
	getFunc    func(ctx context.Context, id string) (*models.Incident, error)
	listFunc   func(ctx context.Context, params incident.ListParams) (*incident.ListResult, error)
	updateFunc func(ctx context.Context, actor auth.Identity, id string, patch incident.Patch) (*models.Incident, error)
	deleteFunc func(ctx context.Context, actor auth.Identity, id string) error
}

func (m *mockIncidentService) Create(ctx context.Context, actor auth.Identity, input incident.CreateInput) (*models.Incident, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, actor, input)
	}
	return nil, errors.New("not implemented")
}

func (m *mockIncidentService) Get(ctx context.Context, id string) (*models.Incident, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockIncidentService) List(ctx context.Context, params incident.ListParams) (*incident.ListResult, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, params)
	}
	return nil, errors.New("not implemented")
}

func (m *mockIncidentService) Update(ctx context.Context, actor auth.Identity, id string, patch incident.Patch) (*models.Incident, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, actor, id, patch)
	}
	return nil, errors.New("not implemented")
}

func (m *mockIncidentService) Delete(ctx context.Context, actor auth.Identity, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, actor, id)
	}
	return errors.New("not implemented")
}

// mockEvidenceService is a mock implementation of the evidence service for testing
type mockEvidenceService struct {
	listFunc   func(ctx context.Context, incidentID string) ([]models.Evidence, error)
	createFunc func(ctx context.Context, actor auth.Identity, incidentID string, input evidence.CreateInput) (*models.Evidence, error)
	deleteFunc func(ctx context.Context, actor auth.Identity, incidentID, evidenceID string) error
}

func (m *mockEvidenceService) ListForIncident(ctx context.Context, incidentID string) ([]models.Evidence, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, incidentID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockEvidenceService) Create(ctx context.Context, actor auth.Identity, incidentID string, input evidence.CreateInput) (*models.Evidence, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, actor, incidentID, input)
	}
	return nil, errors.New("not implemented")
}

func (m *mockEvidenceService) Delete(ctx context.Context, actor auth.Identity, incidentID, evidenceID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, actor, incidentID, evidenceID)
	}
	return errors.New("not implemented")
}

type testRouter struct {
	handler http.Handler
	token   string
}

func newTestRouter(t *testing.T, opts RouterOptions) *testRouter {
	t.Helper()
	validator, err := validation.NewSchemaValidator(validation.DefaultCacheSize)
	require.NoError(t, err)

	tokens := auth.NewTokenService(testSecret)
	token, err := tokens.Issue(testOfficer)
	require.NoError(t, err)

	opts.Validator = validator
	opts.Tokens = tokens
	opts.ProtectedPaths = []string{"/incidents"}
	return &testRouter{handler: NewRouter(opts), token: token}
}

func (tr *testRouter) do(t *testing.T, method, path, body string, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+tr.token)
	}
	rr := httptest.NewRecorder()
	tr.handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp
}

func sampleIncident() *models.Incident {
	now := time.Date(2025, 1, 11, 9, 0, 0, 0, time.UTC)
	return &models.Incident{
		ID:           testIncidentID,
		CaseNumber:   "CR-2025-7Hq2xYz",
		ReportedAt:   now,
		OccurredAt:   now.Add(-12 * time.Hour),
		Location:     "12 Main St",
		CrimeType:    "Burglary",
		Description:  "Rear window forced",
		Status:       models.IncidentStatusOpen,
		ReportedByID: testOfficer.UserID,
		ReportedBy:   &models.User{ID: testOfficer.UserID, BadgeID: "OFFICER123", Name: "Officer Dibble", PasswordHash: "secret-hash"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestHandleLogin(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		loginFunc      func(ctx context.Context, badgeID, password string) (*iam.LoginResult, error)
		expectedStatus int
		expectedToken  string
		expectedMsg    string
	}{
		{
			name: "success",
			body: `{"badgeId":"OFFICER123","password":"password123"}`,
			loginFunc: func(ctx context.Context, badgeID, password string) (*iam.LoginResult, error) {
				return &iam.LoginResult{Token: "signed"}, nil
			},
			expectedStatus: http.StatusOK,
			expectedToken:  "signed",
		},
		{
			name: "invalid credentials",
			body: `{"badgeId":"OFFICER123","password":"nope"}`,
			loginFunc: func(ctx context.Context, badgeID, password string) (*iam.LoginResult, error) {
				return nil, apperr.New(apperr.KindAuthFailed, iam.MessageInvalidCredentials)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedMsg:    iam.MessageInvalidCredentials,
		},
		{
			name:           "missing password",
			body:           `{"badgeId":"OFFICER123"}`,
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    validation.MessageInvalidPayload,
		},
		{
			name: "signing secret missing",
			body: `{"badgeId":"OFFICER123","password":"password123"}`,
			loginFunc: func(ctx context.Context, badgeID, password string) (*iam.LoginResult, error) {
				return nil, apperr.Wrap(apperr.KindConfig, iam.MessageAuthNotConfigured, auth.ErrSigningSecretMissing)
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    iam.MessageAuthNotConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRouter(t, RouterOptions{IAM: &mockIAMService{loginFunc: tt.loginFunc}})
			rr := tr.do(t, http.MethodPost, "/auth/login", tt.body, false)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedToken != "" {
				var resp loginResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, tt.expectedToken, resp.Token)
			}
			if tt.expectedMsg != "" {
				assert.Equal(t, tt.expectedMsg, decodeError(t, rr).Message)
			}
		})
	}
}

func TestHandleCreateUser(t *testing.T) {
	var received iam.CreateUserInput
	svc := &mockIAMService{
		createUserFunc: func(ctx context.Context, input iam.CreateUserInput) (*models.User, error) {
			received = input
			if input.BadgeID == "TAKEN" {
				return nil, apperr.Conflict(iam.MessageBadgeTaken)
			}
			return &models.User{ID: "u-1", BadgeID: input.BadgeID, Name: input.Name, PasswordHash: "hash"}, nil
		},
	}
	tr := newTestRouter(t, RouterOptions{IAM: svc})

	rr := tr.do(t, http.MethodPost, "/users", `{"badgeId":"B1","name":"Jane","password":"secret1","isAdmin":true}`, false)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.False(t, received.IsAdmin, "signup must never grant admin")
	assert.NotContains(t, rr.Body.String(), "hash")
	assert.NotContains(t, rr.Body.String(), "password")

	var user map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &user))
	assert.Equal(t, "B1", user["badgeId"])
	assert.Equal(t, false, user["isAdmin"])

	rr = tr.do(t, http.MethodPost, "/users", `{"badgeId":"TAKEN","name":"Jane","password":"secret1"}`, false)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = tr.do(t, http.MethodPost, "/users", `{"badgeId":"B2","name":"Jane","password":"123"}`, false)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeError(t, rr).Errors, "password")
}

func TestHandleListUsers(t *testing.T) {
	tr := newTestRouter(t, RouterOptions{IAM: &mockIAMService{
		listUsersFunc: func(ctx context.Context) ([]models.User, error) {
			return nil, nil
		},
	}})

	rr := tr.do(t, http.MethodGet, "/users", "", false)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestHandleListIncidents(t *testing.T) {
	var received incident.ListParams
	tr := newTestRouter(t, RouterOptions{Incidents: &mockIncidentService{
		listFunc: func(ctx context.Context, params incident.ListParams) (*incident.ListResult, error) {
			received = params
			return &incident.ListResult{
				Incidents:  []models.Incident{*sampleIncident()},
				Pagination: incident.Pagination{CurrentPage: 2, TotalPages: 3, TotalCount: 21, Limit: 10},
			}, nil
		},
	}})

	rr := tr.do(t, http.MethodGet, "/incidents?page=2&limit=10&status=Closed&searchQuery=main&sortBy=location&sortOrder=asc", "", true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, incident.ListParams{
		Page: "2", Limit: "10", Status: "Closed", SearchQuery: "main", SortBy: "location", SortOrder: "asc",
	}, received)

	var resp listIncidentsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Incidents, 1)
	assert.Equal(t, paginationResponse{CurrentPage: 2, TotalPages: 3, TotalCount: 21, Limit: 10}, resp.Pagination)
	assert.Equal(t, "OFFICER123", resp.Incidents[0].ReportedBy.BadgeID)
	assert.NotContains(t, rr.Body.String(), "secret-hash")

	// Listing sits under the gated prefix.
	rr = tr.do(t, http.MethodGet, "/incidents", "", false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandleCreateIncident(t *testing.T) {
	var gotActor auth.Identity
	var gotInput incident.CreateInput
	tr := newTestRouter(t, RouterOptions{Incidents: &mockIncidentService{
		createFunc: func(ctx context.Context, actor auth.Identity, input incident.CreateInput) (*models.Incident, error) {
			gotActor, gotInput = actor, input
			if input.OccurredAt == "not-a-date" {
				fields := apperr.FieldErrors{}
				fields.Add("occurredAt", "Must be a valid date.")
				return nil, apperr.Validation(incident.MessageInvalidFields, fields)
			}
			return sampleIncident(), nil
		},
	}})

	body := `{"occurredAt":"2025-01-10T21:00:00Z","location":"12 Main St","crimeType":"Burglary","description":"Rear window forced","reportedById":"someone"}`
	rr := tr.do(t, http.MethodPost, "/incidents", body, true)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, testOfficer, gotActor)
	assert.Equal(t, "someone", gotInput.ReportedByID)

	var resp incidentResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "CR-2025-7Hq2xYz", resp.CaseNumber)
	assert.Nil(t, resp.ClosingReason)
	assert.Contains(t, rr.Body.String(), `"closingReason":null`)

	rr = tr.do(t, http.MethodPost, "/incidents", `{"occurredAt":"not-a-date","location":"x","crimeType":"y","description":"z"}`, true)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeError(t, rr).Errors, "occurredAt")

	rr = tr.do(t, http.MethodPost, "/incidents", body, false)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Authentication required.", decodeError(t, rr).Message)

	rr = tr.do(t, http.MethodPost, "/incidents", `{"location":"x"`, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleGetIncident(t *testing.T) {
	tr := newTestRouter(t, RouterOptions{Incidents: &mockIncidentService{
		getFunc: func(ctx context.Context, id string) (*models.Incident, error) {
			if id == testIncidentID {
				return sampleIncident(), nil
			}
			return nil, apperr.NotFound(incident.MessageNotFound)
		},
	}})

	rr := tr.do(t, http.MethodGet, "/incidents/"+testIncidentID, "", true)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = tr.do(t, http.MethodGet, "/incidents/0190f3a4-7c1e-7b44-9c1a-00000000ffff", "", true)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = tr.do(t, http.MethodGet, "/incidents/not-a-uuid", "", true)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, incident.MessageNotFound, decodeError(t, rr).Message)
}

func TestHandleUpdateIncident(t *testing.T) {
	var gotPatch incident.Patch
	tr := newTestRouter(t, RouterOptions{Incidents: &mockIncidentService{
		updateFunc: func(ctx context.Context, actor auth.Identity, id string, patch incident.Patch) (*models.Incident, error) {
			gotPatch = patch
			if patch.Empty() {
				return nil, apperr.Validation(incident.MessageEmptyPatch, nil)
			}
			if patch.Location != nil && *patch.Location == "forbidden" {
				return nil, apperr.Forbidden(incident.MessageForbidden)
			}
			return sampleIncident(), nil
		},
	}})

	rr := tr.do(t, http.MethodPatch, "/incidents/"+testIncidentID, `{"status":"Open","closingReason":null,"bogus":true}`, true)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, gotPatch.Status)
	assert.Equal(t, "Open", *gotPatch.Status)
	assert.True(t, gotPatch.ClosingReasonSet)

	rr = tr.do(t, http.MethodPatch, "/incidents/"+testIncidentID, `{}`, true)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, incident.MessageEmptyPatch, decodeError(t, rr).Message)

	rr = tr.do(t, http.MethodPatch, "/incidents/"+testIncidentID, `{"location":"forbidden"}`, true)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = tr.do(t, http.MethodPatch, "/incidents/"+testIncidentID, `{"status":"Archived"}`, true)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeError(t, rr).Errors, "status")
}

func TestHandleDeleteIncident(t *testing.T) {
	tr := newTestRouter(t, RouterOptions{Incidents: &mockIncidentService{
		deleteFunc: func(ctx context.Context, actor auth.Identity, id string) error {
			return nil
		},
	}})

	rr := tr.do(t, http.MethodDelete, "/incidents/"+testIncidentID, "", true)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = tr.do(t, http.MethodDelete, "/incidents/"+testIncidentID, "", false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandleEvidence(t *testing.T) {
	var gotIncident, gotEvidence string
	svc := &mockEvidenceService{
		listFunc: func(ctx context.Context, incidentID string) ([]models.Evidence, error) {
			return []models.Evidence{{ID: testEvidenceID, IncidentID: incidentID, Type: models.EvidenceTypePhoto}}, nil
		},
		createFunc: func(ctx context.Context, actor auth.Identity, incidentID string, input evidence.CreateInput) (*models.Evidence, error) {
			return &models.Evidence{
				ID: testEvidenceID, IncidentID: incidentID, AddedByID: actor.UserID,
				Description: input.Description, Type: models.EvidenceType(input.Type), StorageReference: input.StorageReference,
			}, nil
		},
		deleteFunc: func(ctx context.Context, actor auth.Identity, incidentID, evidenceID string) error {
			gotIncident, gotEvidence = incidentID, evidenceID
			return apperr.Validation(evidence.MessageWrongIncident, nil)
		},
	}
	tr := newTestRouter(t, RouterOptions{Incidents: &mockIncidentService{}, Evidence: svc})
	base := "/incidents/" + testIncidentID + "/evidence"

	rr := tr.do(t, http.MethodGet, base, "", true)
	require.Equal(t, http.StatusOK, rr.Code)
	var items []evidenceResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Photo", items[0].Type)

	rr = tr.do(t, http.MethodPost, base, `{"description":"Crowbar","type":"Physical Item","storageReference":"locker-12"}`, true)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created evidenceResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, testOfficer.UserID, created.AddedByID)
	assert.Equal(t, "Physical Item", created.Type)

	rr = tr.do(t, http.MethodPost, base, `{"description":"Crowbar","type":"Fingerprint","storageReference":"locker-12"}`, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = tr.do(t, http.MethodDelete, base+"/"+testEvidenceID, "", true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, testIncidentID, gotIncident)
	assert.Equal(t, testEvidenceID, gotEvidence)

	rr = tr.do(t, http.MethodDelete, base+"/nope", "", true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWriteError_HidesInternalCause(t *testing.T) {
	tr := newTestRouter(t, RouterOptions{Incidents: &mockIncidentService{
		getFunc: func(ctx context.Context, id string) (*models.Incident, error) {
			return nil, errors.New("pq: connection refused")
		},
	}})

	rr := tr.do(t, http.MethodGet, "/incidents/"+testIncidentID, "", true)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "An unexpected error occurred.", decodeError(t, rr).Message)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestHealth(t *testing.T) {
	tr := newTestRouter(t, RouterOptions{})
	rr := tr.do(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	cors := DefaultCORSOptions([]string{"http://localhost:5173"})
	tr := newTestRouter(t, RouterOptions{Incidents: &mockIncidentService{}, CORSOptions: &cors})

	req := httptest.NewRequest(http.MethodOptions, "/incidents/"+testIncidentID, nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rr := httptest.NewRecorder()
	tr.handler.ServeHTTP(rr, req)

	assert.Less(t, rr.Code, 300)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}
