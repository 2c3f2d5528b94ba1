package migrations

import (
	"context"
	"fmt"

	"github.com/ppandrangi/crms/internal/db/bunx"
	"github.com/ppandrangi/crms/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20250114090000, down_20250114090000)
}

// up_20250114090000 creates the users, incidents and evidence tables
func up_20250114090000(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating users table...")
	_, err := db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating incidents table...")
	_, err = db.NewCreateTable().
		Model((*models.Incident)(nil)).
		IfNotExists().
		ForeignKey(`(reported_by_id) REFERENCES users(id)`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create incidents table: %w", err)
	}

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_incidents_reported_by_id ON incidents(reported_by_id)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_reported_at ON incidents(reported_at)`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create incidents index: %w", err)
		}
	}

	// SQLite cannot add constraints after CREATE TABLE; the service layer
	// enforces the same rules there.
	if bunx.IsPostgreSQL(db) {
		_, err = db.ExecContext(ctx, `
			ALTER TABLE incidents
			ADD CONSTRAINT chk_incidents_status
			CHECK (status IN ('Open', 'Under Investigation', 'Closed'))
		`)
		if err != nil {
			return fmt.Errorf("failed to add status constraint: %w", err)
		}

		_, err = db.ExecContext(ctx, `
			ALTER TABLE incidents
			ADD CONSTRAINT chk_incidents_closing_reason
			CHECK (status = 'Closed' OR closing_reason IS NULL)
		`)
		if err != nil {
			return fmt.Errorf("failed to add closing_reason constraint: %w", err)
		}
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating evidence table...")
	_, err = db.NewCreateTable().
		Model((*models.Evidence)(nil)).
		IfNotExists().
		ForeignKey(`(incident_id) REFERENCES incidents(id) ON DELETE CASCADE`).
		ForeignKey(`(added_by_id) REFERENCES users(id)`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create evidence table: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_evidence_incident_id ON evidence(incident_id)`)
	if err != nil {
		return fmt.Errorf("failed to create index on evidence.incident_id: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20250114090000 drops the tables in reverse dependency order
func down_20250114090000(ctx context.Context, db *bun.DB) error {
	for _, model := range []interface{}{
		(*models.Evidence)(nil),
		(*models.Incident)(nil),
		(*models.User)(nil),
	} {
		fmt.Print(" [down] dropping table...")
		_, err := db.NewDropTable().
			Model(model).
			IfExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
		fmt.Println(" OK")
	}
	return nil
}
