package cmdutil

import (
	"fmt"

	"github.com/uptrace/bun"

	"github.com/ppandrangi/crms/internal/auth"
	"github.com/ppandrangi/crms/internal/config"
	"github.com/ppandrangi/crms/internal/db/bunx"
	"github.com/ppandrangi/crms/internal/repository"
	"github.com/ppandrangi/crms/internal/services/iam"
)

// IAMServiceBundle bundles the service with its underlying DB connection so callers can
// reuse the connection for other repositories when necessary.
type IAMServiceBundle struct {
	Service *iam.Service
	DB      *bun.DB
}

// Close releases the underlying database connection.
func (b *IAMServiceBundle) Close() {
	if b == nil || b.DB == nil {
		return
	}
	_ = bunx.Close(b.DB)
}

// NewIAMServiceBundle centralizes IAM service construction for CLI commands.
// Token issuing only works when JWT_SECRET is set; account management does not need it.
func NewIAMServiceBundle(cfg *config.Config) (*IAMServiceBundle, error) {
	db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	svc := iam.NewService(
		repository.NewBunUserRepository(db),
		auth.NewTokenService(cfg.Auth.JWTSecret),
	).WithBcryptCost(cfg.Auth.BcryptCost)

	return &IAMServiceBundle{
		Service: svc,
		DB:      db,
	}, nil
}
