package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppandrangi/crms/internal/db/bunx"
	"github.com/ppandrangi/crms/internal/db/models"
	"github.com/uptrace/bun"
)

// likeEscape is the LIKE escape character. A backslash would need extra
// quoting on PostgreSQL, so a plain '!' is used instead.
const likeEscape = "!"

var likeEscaper = strings.NewReplacer(
	likeEscape, likeEscape+likeEscape,
	"%", likeEscape+"%",
	"_", likeEscape+"_",
)

// incidentSearchColumns are matched with OR by IncidentFilter.Search.
var incidentSearchColumns = []string{"i.case_number", "i.crime_type", "i.location", "i.description"}

// BunIncidentRepository implements IncidentRepository using Bun ORM
type BunIncidentRepository struct {
	db *bun.DB
}

// NewBunIncidentRepository creates a new Bun-based incident repository
func NewBunIncidentRepository(db *bun.DB) *BunIncidentRepository {
	return &BunIncidentRepository{db: db}
}

// Create inserts a new incident. A colliding case number wraps ErrDuplicate.
func (r *BunIncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	if incident.ID == "" {
		incident.ID = bunx.NewUUIDv7()
	}
	now := time.Now().UTC()
	if incident.ReportedAt.IsZero() {
		incident.ReportedAt = now
	}
	incident.CreatedAt = now
	incident.UpdatedAt = now
	incident.NormalizeClosingReason()

	_, err := r.db.NewInsert().
		Model(incident).
		Exec(ctx)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("incident with case number %q: %w", incident.CaseNumber, ErrDuplicate)
		}
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// GetByID fetches an incident with its reporting officer.
func (r *BunIncidentRepository) GetByID(ctx context.Context, id string) (*models.Incident, error) {
	incident := new(models.Incident)
	err := r.db.NewSelect().
		Model(incident).
		Relation("ReportedBy").
		Where("i.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("incident %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("query incident by id: %w", err)
	}
	return incident, nil
}

// List runs the count and the page query inside one transaction so the
// pagination total matches the rows returned.
func (r *BunIncidentRepository) List(ctx context.Context, filter IncidentFilter) ([]models.Incident, int, error) {
	var (
		incidents []models.Incident
		total     int
	)

	err := r.db.RunInTx(ctx, r.snapshotTxOptions(), func(ctx context.Context, tx bun.Tx) error {
		var err error
		total, err = tx.NewSelect().
			Model((*models.Incident)(nil)).
			Apply(filter.where(tx)).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("count incidents: %w", err)
		}

		if total == 0 || filter.Offset >= total {
			return nil
		}

		q := tx.NewSelect().
			Model(&incidents).
			Relation("ReportedBy").
			Apply(filter.where(tx)).
			Apply(filter.order)
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
		if err := q.Scan(ctx); err != nil {
			return fmt.Errorf("list incidents: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	if incidents == nil {
		incidents = []models.Incident{}
	}
	return incidents, total, nil
}

// Update persists the mutable fields of an incident. The owner, case number
// and report time are never written.
func (r *BunIncidentRepository) Update(ctx context.Context, incident *models.Incident) error {
	incident.UpdatedAt = time.Now().UTC()
	incident.NormalizeClosingReason()

	res, err := r.db.NewUpdate().
		Model(incident).
		Column("occurred_at", "location", "crime_type", "description", "status", "closing_reason", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("incident %s: %w", incident.ID, ErrNotFound)
	}
	return nil
}

// Delete removes the incident and its evidence in one transaction. Evidence
// is deleted explicitly so the result does not depend on the store enforcing
// the ON DELETE CASCADE foreign key.
func (r *BunIncidentRepository) Delete(ctx context.Context, id string) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.Evidence)(nil)).
			Where("incident_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete incident evidence: %w", err)
		}

		res, err := tx.NewDelete().
			Model((*models.Incident)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete incident: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("incident %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// snapshotTxOptions pins PostgreSQL list reads to one snapshot. SQLite
// transactions are already serializable with a single connection.
func (r *BunIncidentRepository) snapshotTxOptions() *sql.TxOptions {
	if bunx.IsPostgreSQL(r.db) {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}

// where folds both the pattern and the columns with Unicode rules, so a
// search for "café" matches "CAFÉ" on either dialect.
func (f IncidentFilter) where(db bun.IDB) func(*bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if f.Status != "" {
			q = q.Where("i.status = ?", f.Status)
		}

		if search := strings.TrimSpace(f.Search); search != "" {
			pattern := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
			q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				for _, col := range incidentSearchColumns {
					q = q.WhereOr(bunx.LowerExpr(db, col)+" LIKE ? ESCAPE '"+likeEscape+"'", pattern)
				}
				return q
			})
		}
		return q
	}
}

func (f IncidentFilter) order(q *bun.SelectQuery) *bun.SelectQuery {
	col, ok := IncidentSortColumns[f.SortBy]
	if !ok {
		col = IncidentSortColumns["reportedAt"]
	}
	dir := "DESC"
	if f.Ascending {
		dir = "ASC"
	}
	return q.OrderExpr("i." + col + " " + dir).OrderExpr("i.id " + dir)
}
