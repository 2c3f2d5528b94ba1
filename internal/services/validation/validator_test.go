package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppandrangi/crms/internal/apperr"
)

func newValidator(t *testing.T) *SchemaValidator {
	t.Helper()
	v, err := NewSchemaValidator(DefaultCacheSize)
	require.NoError(t, err)
	return v
}

func validationFields(t *testing.T, err error) apperr.FieldErrors {
	t.Helper()
	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindValidation), "expected validation error, got %v", err)
	return apperr.As(err).Fields
}

func TestValidate_ValidPayloads(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		schema string
		body   string
	}{
		{SchemaLogin, `{"badgeId":"OFFICER123","password":"secret"}`},
		{SchemaSignup, `{"badgeId":"B1","name":"Jane Doe","password":"secret1"}`},
		{SchemaIncidentCreate, `{"occurredAt":"2025-01-10T22:15:00Z","location":"Main St","crimeType":"Burglary","description":"Broken window"}`},
		{SchemaIncidentCreate, `{"occurredAt":"2025-01-10","location":"x","crimeType":"y","description":"z","status":"Closed","closingReason":null,"extra":1}`},
		{SchemaIncidentPatch, `{"status":"Under Investigation","closingReason":null}`},
		{SchemaIncidentPatch, `{"unknown":"ignored"}`},
		{SchemaEvidenceCreate, `{"description":"Crowbar","type":"Physical Item","storageReference":"locker-12"}`},
	}

	for _, tt := range tests {
		t.Run(tt.schema, func(t *testing.T) {
			assert.NoError(t, v.Validate(tt.schema, []byte(tt.body)))
		})
	}
}

func TestValidate_MissingFields(t *testing.T) {
	v := newValidator(t)

	fields := validationFields(t, v.Validate(SchemaSignup, []byte(`{"badgeId":"B1"}`)))
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "password")
	assert.NotContains(t, fields, "badgeId")
}

func TestValidate_ShortPassword(t *testing.T) {
	v := newValidator(t)

	fields := validationFields(t, v.Validate(SchemaSignup, []byte(`{"badgeId":"B1","name":"Jane","password":"123"}`)))
	assert.Equal(t, []string{"Must be at least 6 characters."}, fields["password"])
}

func TestValidate_BlankStrings(t *testing.T) {
	v := newValidator(t)

	fields := validationFields(t, v.Validate(SchemaIncidentCreate,
		[]byte(`{"occurredAt":"2025-01-10","location":"   ","crimeType":"y","description":""}`)))
	assert.Equal(t, []string{"Must not be blank."}, fields["location"])
	assert.Equal(t, []string{"Must not be blank."}, fields["description"])
	assert.NotContains(t, fields, "crimeType")
}

func TestValidate_EnumAndType(t *testing.T) {
	v := newValidator(t)

	fields := validationFields(t, v.Validate(SchemaEvidenceCreate,
		[]byte(`{"description":"d","type":"Fingerprint","storageReference":42}`)))
	require.Contains(t, fields, "type")
	assert.Contains(t, fields["type"][0], "Physical Item")
	assert.Equal(t, []string{"Must be of type string."}, fields["storageReference"])
}

func TestValidate_MalformedBodies(t *testing.T) {
	v := newValidator(t)

	err := v.Validate(SchemaLogin, []byte(`{"badgeId":`))
	require.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Equal(t, "Request body must be valid JSON.", apperr.As(err).Message)

	err = v.Validate(SchemaLogin, nil)
	require.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Equal(t, "Request body is required.", apperr.As(err).Message)

	fields := validationFields(t, v.Validate(SchemaLogin, []byte(`[1,2]`)))
	assert.Contains(t, fields, rootField)
}

func TestValidate_UnknownSchema(t *testing.T) {
	v := newValidator(t)

	err := v.Validate("nope", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInternal))
	assert.ErrorIs(t, err, ErrUnknownSchema)
}

func TestValidate_CachesCompiledSchemas(t *testing.T) {
	v := newValidator(t)

	require.NoError(t, v.Validate(SchemaLogin, []byte(`{"badgeId":"a","password":"b"}`)))
	require.NoError(t, v.Validate(SchemaLogin, []byte(`{"badgeId":"c","password":"d"}`)))
	assert.Equal(t, 1, v.schemaCache.Len())
}
