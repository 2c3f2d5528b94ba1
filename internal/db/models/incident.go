package models

import (
	"time"

	"github.com/uptrace/bun"
)

// IncidentStatus is the lifecycle state of an incident.
// Any status may move to any other; only the closing reason depends on it.
type IncidentStatus string

const (
	IncidentStatusOpen               IncidentStatus = "Open"
	IncidentStatusUnderInvestigation IncidentStatus = "Under Investigation"
	IncidentStatusClosed             IncidentStatus = "Closed"
)

// IncidentStatuses lists every valid status in lifecycle order.
var IncidentStatuses = []IncidentStatus{
	IncidentStatusOpen,
	IncidentStatusUnderInvestigation,
	IncidentStatusClosed,
}

// Valid reports whether s is one of the known statuses.
func (s IncidentStatus) Valid() bool {
	for _, known := range IncidentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Incident is a logged crime report owned by the officer who filed it.
type Incident struct {
	bun.BaseModel `bun:"table:incidents,alias:i"`

	ID            string         `bun:"id,pk,type:uuid"`
	CaseNumber    string         `bun:"case_number,notnull,unique"`
	ReportedAt    time.Time      `bun:"reported_at,notnull"`
	OccurredAt    time.Time      `bun:"occurred_at,notnull"`
	Location      string         `bun:"location,notnull"`
	CrimeType     string         `bun:"crime_type,notnull"`
	Description   string         `bun:"description,notnull"`
	Status        IncidentStatus `bun:"status,notnull,default:'Open'"`
	ClosingReason *string        `bun:"closing_reason"`
	ReportedByID  string         `bun:"reported_by_id,notnull,type:uuid"`
	CreatedAt     time.Time      `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time      `bun:"updated_at,notnull,default:current_timestamp"`

	ReportedBy *User `bun:"rel:belongs-to,join:reported_by_id=id"`
}

// NormalizeClosingReason clears the closing reason unless the incident is Closed.
// It must run before every insert and update.
func (i *Incident) NormalizeClosingReason() {
	if i.Status != IncidentStatusClosed {
		i.ClosingReason = nil
	}
}
