package validation

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ppandrangi/crms/internal/apperr"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Request body schemas
const (
	SchemaLogin          = "login"
	SchemaSignup         = "signup"
	SchemaIncidentCreate = "incident_create"
	SchemaIncidentPatch  = "incident_patch"
	SchemaEvidenceCreate = "evidence_create"
)

// DefaultCacheSize holds every embedded schema with room to spare.
const DefaultCacheSize = 16

// MessageInvalidPayload is the top-level message of every validation failure.
const MessageInvalidPayload = "Validation failed."

// ErrUnknownSchema is returned when a schema name has no embedded document.
var ErrUnknownSchema = errors.New("unknown schema")

// Validator checks request bodies against the embedded JSON schemas.
type Validator interface {
	// Validate parses body as JSON and validates it against the named schema.
	// Failures are *apperr.Error values of KindValidation with per-field detail.
	Validate(schemaName string, body []byte) error
}

// SchemaValidator implements Validator using santhosh-tekuri/jsonschema/v6
type SchemaValidator struct {
	schemaCache *lru.Cache[string, *jsonschema.Schema]
	printer     *message.Printer

	// compileMu serialises cache misses so a schema is compiled once.
	compileMu sync.Mutex
}

// NewSchemaValidator creates a new validator with LRU caching for compiled schemas.
// Field messages are rendered in English.
func NewSchemaValidator(cacheSize int) (*SchemaValidator, error) {
	return NewSchemaValidatorWithLanguage(cacheSize, language.English)
}

// NewSchemaValidatorWithLanguage is NewSchemaValidator with a message language.
func NewSchemaValidatorWithLanguage(cacheSize int, tag language.Tag) (*SchemaValidator, error) {
	cache, err := lru.New[string, *jsonschema.Schema](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create schema cache: %w", err)
	}

	return &SchemaValidator{
		schemaCache: cache,
		printer:     message.NewPrinter(tag),
	}, nil
}

// Validate implements Validator.
func (v *SchemaValidator) Validate(schemaName string, body []byte) error {
	schema, err := v.schema(schemaName)
	if err != nil {
		return apperr.Internal(err)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return apperr.Validation("Request body is required.", nil)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return apperr.Validation("Request body must be valid JSON.", nil)
	}

	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return apperr.Internal(fmt.Errorf("validate %s: %w", schemaName, err))
		}
		fields := apperr.FieldErrors{}
		v.collect(ve, fields)
		return apperr.Validation(MessageInvalidPayload, fields)
	}

	return nil
}

// schema returns the compiled schema, compiling and caching it on first use.
func (v *SchemaValidator) schema(name string) (*jsonschema.Schema, error) {
	if cached, ok := v.schemaCache.Get(name); ok {
		return cached, nil
	}

	v.compileMu.Lock()
	defer v.compileMu.Unlock()

	if cached, ok := v.schemaCache.Get(name); ok {
		return cached, nil
	}

	schema, err := compileSchema(name)
	if err != nil {
		return nil, err
	}
	v.schemaCache.Add(name, schema)
	return schema, nil
}

// compileSchema compiles an embedded schema document.
func compileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}

	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)

	schemaURL := name + ".json"
	if err := compiler.AddResource(schemaURL, parsed); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", name, err)
	}

	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

// collect walks the error tree and records one message per failing leaf.
func (v *SchemaValidator) collect(ve *jsonschema.ValidationError, fields apperr.FieldErrors) {
	if len(ve.Causes) > 0 {
		for _, cause := range ve.Causes {
			v.collect(cause, fields)
		}
		return
	}

	field := fieldName(ve.InstanceLocation)

	if k, ok := ve.ErrorKind.(*kind.Required); ok {
		missing := append([]string(nil), k.Missing...)
		sort.Strings(missing)
		for _, name := range missing {
			fields.Add(joinField(field, name), v.printer.Sprintf("%s is required.", name))
		}
		return
	}

	if field == "" {
		field = rootField
	}

	switch k := ve.ErrorKind.(type) {
	case *kind.Type:
		fields.Add(field, v.printer.Sprintf("Must be of type %s.", strings.Join(k.Want, " or ")))
	case *kind.MinLength:
		fields.Add(field, v.printer.Sprintf("Must be at least %d characters.", k.Want))
	case *kind.MaxLength:
		fields.Add(field, v.printer.Sprintf("Must be at most %d characters.", k.Want))
	case *kind.Pattern:
		fields.Add(field, v.printer.Sprintf("Must not be blank."))
	case *kind.Enum:
		fields.Add(field, v.printer.Sprintf("Must be one of: %s.", formatEnum(k.Want)))
	default:
		fields.Add(field, ve.ErrorKind.LocalizedString(v.printer))
	}
}

// rootField names errors about the document itself, such as a JSON array body.
const rootField = "body"

// fieldName turns an instance location into a dotted field path.
func fieldName(location []string) string {
	var parts []string
	for _, part := range location {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ".")
}

func joinField(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func formatEnum(values []any) string {
	parts := make([]string, 0, len(values))
	for _, value := range values {
		parts = append(parts, fmt.Sprint(value))
	}
	return strings.Join(parts, ", ")
}
