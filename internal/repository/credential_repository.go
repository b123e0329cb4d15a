package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/agrisetu/agrisetu-api/internal/models"
)

// CredentialRepository provides database access for provider credentials.
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository creates a new instance of CredentialRepository.
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Get returns the credential stored under key.
func (r *CredentialRepository) Get(ctx context.Context, key string) (*models.ProviderCredential, error) {
	const query = `SELECT key, value, updated_at FROM provider_credentials WHERE key = $1 LIMIT 1`
	var cred models.ProviderCredential
	if err := r.db.GetContext(ctx, &cred, query, key); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get provider credential: %w", err)
	}
	return &cred, nil
}

// Set upserts the credential stored under key.
func (r *CredentialRepository) Set(ctx context.Context, key, value string) error {
	const query = `INSERT INTO provider_credentials (key, value, updated_at) VALUES ($1, $2, $3) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set provider credential: %w", err)
	}
	return nil
}

// Exists reports whether a credential is stored under key.
func (r *CredentialRepository) Exists(ctx context.Context, key string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM provider_credentials WHERE key = $1)`
	var found bool
	if err := r.db.GetContext(ctx, &found, query, key); err != nil {
		return false, fmt.Errorf("check provider credential: %w", err)
	}
	return found, nil
}
