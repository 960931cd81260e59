package repository

import (
	"context"
	"fmt"
)

const visitorColumns = `id, workspace_id, COALESCE(email, ''), COALESCE(name, ''),
	COALESCE(external_user_id, ''), custom_attributes, first_seen_at, last_seen_at`

// UpsertVisitor inserts or refreshes a visitor record. Visitor IDs are
// client-supplied, so the natural key is (workspace_id, id). System fields
// and the custom attribute map are replaced wholesale; last_seen_at is
// bumped on every write.
func (r *PostgresRepository) UpsertVisitor(ctx context.Context, visitor Visitor) (Visitor, error) {
	var v Visitor
	err := r.pool.QueryRow(ctx, `
		INSERT INTO visitors (workspace_id, id, email, name, external_user_id, custom_attributes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (workspace_id, id) DO UPDATE
		SET email = EXCLUDED.email,
		    name = EXCLUDED.name,
		    external_user_id = EXCLUDED.external_user_id,
		    custom_attributes = EXCLUDED.custom_attributes,
		    last_seen_at = NOW()
		RETURNING `+visitorColumns+`
	`,
		visitor.WorkspaceID,
		visitor.ID,
		nullableString(visitor.Email),
		nullableString(visitor.Name),
		nullableString(visitor.ExternalUserID),
		ensureJSON(visitor.CustomAttributes, "{}"),
	).Scan(
		&v.ID,
		&v.WorkspaceID,
		&v.Email,
		&v.Name,
		&v.ExternalUserID,
		&v.CustomAttributes,
		&v.FirstSeenAt,
		&v.LastSeenAt,
	)
	if err != nil {
		return Visitor{}, fmt.Errorf("upsert visitor: %w", err)
	}

	return v, nil
}

// GetVisitor retrieves a visitor by workspace and ID. Returns pgx.ErrNoRows
// (wrapped) if the visitor has never been seen.
func (r *PostgresRepository) GetVisitor(ctx context.Context, workspaceID, id string) (Visitor, error) {
	var v Visitor
	err := r.pool.QueryRow(ctx, `
		SELECT `+visitorColumns+`
		FROM visitors
		WHERE workspace_id = $1 AND id = $2
	`, workspaceID, id).Scan(
		&v.ID,
		&v.WorkspaceID,
		&v.Email,
		&v.Name,
		&v.ExternalUserID,
		&v.CustomAttributes,
		&v.FirstSeenAt,
		&v.LastSeenAt,
	)
	if err != nil {
		return Visitor{}, fmt.Errorf("get visitor: %w", err)
	}

	return v, nil
}

// SampleVisitors returns up to limit of the most recently seen visitors in a
// workspace, used by segment preview to estimate audience match counts.
func (r *PostgresRepository) SampleVisitors(ctx context.Context, workspaceID string, limit int) ([]Visitor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+visitorColumns+`
		FROM visitors
		WHERE workspace_id = $1
		ORDER BY last_seen_at DESC
		LIMIT $2
	`, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("sample visitors: %w", err)
	}
	defer rows.Close()

	visitors := make([]Visitor, 0)
	for rows.Next() {
		var v Visitor
		if err := rows.Scan(
			&v.ID,
			&v.WorkspaceID,
			&v.Email,
			&v.Name,
			&v.ExternalUserID,
			&v.CustomAttributes,
			&v.FirstSeenAt,
			&v.LastSeenAt,
		); err != nil {
			return nil, fmt.Errorf("scan visitor: %w", err)
		}
		visitors = append(visitors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sample visitors rows: %w", err)
	}

	return visitors, nil
}
