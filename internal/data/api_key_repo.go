package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/surfaceops/surface-api/internal/core"
)

// APIKeyRepo reads provider join credentials. Keys are stored as bcrypt
// hashes; the join flow compares the presented key against every active hash.
// Active key counts stay small (tens), so the linear scan is fine.
type APIKeyRepo struct {
	DB *sql.DB
}

// NewAPIKeyRepo creates an APIKeyRepo.
func NewAPIKeyRepo(db *sql.DB) *APIKeyRepo {
	return &APIKeyRepo{DB: db}
}

// ListActive returns all credentials a worker may currently join with.
func (r *APIKeyRepo) ListActive(ctx context.Context) ([]*core.APIKeyRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, key_hash, kind, scope, workspace_id
		FROM api_keys
		WHERE active
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*core.APIKeyRecord
	for rows.Next() {
		k := &core.APIKeyRecord{}
		var workspaceID sql.NullString
		if scanErr := rows.Scan(&k.ID, &k.KeyHash, &k.Kind, &k.Scope, &workspaceID); scanErr != nil {
			return nil, fmt.Errorf("scan api key: %w", scanErr)
		}
		k.WorkspaceID = nullableString(workspaceID)
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}
