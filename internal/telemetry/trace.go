package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a span on the named tracer.
//
//	ctx, span := telemetry.StartSpan(ctx, TracerIncidents, "incident.Update",
//	    attribute.String(AttrIncidentID, id),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records err on the span and marks the span failed.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a named business event to the span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Tracer names
const (
	TracerIAM       = "crmsapi/services/iam"
	TracerIncidents = "crmsapi/services/incident"
	TracerEvidence  = "crmsapi/services/evidence"
)

// Span attribute keys
const (
	AttrUserID      = "user.id"
	AttrBadgeID     = "user.badge_id"
	AttrIsAdmin     = "user.is_admin"
	AttrIncidentID  = "incident.id"
	AttrCaseNumber  = "incident.case_number"
	AttrEvidenceID  = "evidence.id"
	AttrPolicyAct   = "policy.action"
	AttrPolicyAllow = "policy.allowed"
)
