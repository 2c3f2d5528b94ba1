package models

import (
	"time"

	"github.com/uptrace/bun"
)

// EvidenceType classifies an evidence record.
type EvidenceType string

const (
	EvidenceTypePhoto        EvidenceType = "Photo"
	EvidenceTypeDocument     EvidenceType = "Document"
	EvidenceTypePhysicalItem EvidenceType = "Physical Item"
	EvidenceTypeStatement    EvidenceType = "Statement"
	EvidenceTypeVideo        EvidenceType = "Video"
	EvidenceTypeAudio        EvidenceType = "Audio"
	EvidenceTypeOther        EvidenceType = "Other"
)

var EvidenceTypes = []EvidenceType{
	EvidenceTypePhoto,
	EvidenceTypeDocument,
	EvidenceTypePhysicalItem,
	EvidenceTypeStatement,
	EvidenceTypeVideo,
	EvidenceTypeAudio,
	EvidenceTypeOther,
}

// Valid reports whether t is one of the known evidence types.
func (t EvidenceType) Valid() bool {
	for _, known := range EvidenceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Evidence is an item attached to an incident. StorageReference is opaque
// (a path, URL or locker id); no file content is stored.
type Evidence struct {
	bun.BaseModel `bun:"table:evidence,alias:e"`

	ID               string       `bun:"id,pk,type:uuid"`
	Description      string       `bun:"description,notnull"`
	Type             EvidenceType `bun:"type,notnull"`
	StorageReference string       `bun:"storage_reference,notnull"`
	IncidentID       string       `bun:"incident_id,notnull,type:uuid"`
	AddedByID        string       `bun:"added_by_id,notnull,type:uuid"`
	CreatedAt        time.Time    `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt        time.Time    `bun:"updated_at,notnull,default:current_timestamp"`

	AddedBy *User `bun:"rel:belongs-to,join:added_by_id=id"`
}
