package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ppandrangi/crms/internal/db/bunx"
	"github.com/ppandrangi/crms/internal/db/models"
	"github.com/uptrace/bun"
)

// BunEvidenceRepository implements EvidenceRepository using Bun ORM
type BunEvidenceRepository struct {
	db *bun.DB
}

// NewBunEvidenceRepository creates a new Bun-based evidence repository
func NewBunEvidenceRepository(db *bun.DB) *BunEvidenceRepository {
	return &BunEvidenceRepository{db: db}
}

// Create inserts a new evidence record. A missing incident wraps ErrMissingParent.
func (r *BunEvidenceRepository) Create(ctx context.Context, evidence *models.Evidence) error {
	if evidence.ID == "" {
		evidence.ID = bunx.NewUUIDv7()
	}
	now := time.Now().UTC()
	evidence.CreatedAt = now
	evidence.UpdatedAt = now

	if _, err := r.db.NewInsert().Model(evidence).Exec(ctx); err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("insert evidence for incident %s: %w", evidence.IncidentID, ErrMissingParent)
		}
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

// GetByID fetches an evidence record with the officer who added it
func (r *BunEvidenceRepository) GetByID(ctx context.Context, id string) (*models.Evidence, error) {
	evidence := new(models.Evidence)
	err := r.db.NewSelect().
		Model(evidence).
		Relation("AddedBy").
		Where("e.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("evidence %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("query evidence by id: %w", err)
	}
	return evidence, nil
}

// ListByIncident returns the evidence of one incident, oldest first
func (r *BunEvidenceRepository) ListByIncident(ctx context.Context, incidentID string) ([]models.Evidence, error) {
	evidence := []models.Evidence{}
	err := r.db.NewSelect().
		Model(&evidence).
		Relation("AddedBy").
		Where("e.incident_id = ?", incidentID).
		OrderExpr("e.created_at ASC").
		OrderExpr("e.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list evidence for incident %s: %w", incidentID, err)
	}
	return evidence, nil
}

// Delete removes a single evidence record
func (r *BunEvidenceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().
		Model((*models.Evidence)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("evidence %s: %w", id, ErrNotFound)
	}
	return nil
}
