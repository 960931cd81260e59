package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const surfaceColumns = `id, workspace_id, surface_type, name, description, status,
	audience_rules, trigger, frequency, starts_at, ends_at, priority, created_at, updated_at`

func scanSurface(row pgx.Row) (Surface, error) {
	var s Surface
	err := row.Scan(
		&s.ID,
		&s.WorkspaceID,
		&s.Type,
		&s.Name,
		&s.Description,
		&s.Status,
		&s.AudienceRules,
		&s.Trigger,
		&s.Frequency,
		&s.StartsAt,
		&s.EndsAt,
		&s.Priority,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	return s, err
}

// CreateSurface inserts a new surface row and returns the created record with
// the server-generated ID and timestamps.
func (r *PostgresRepository) CreateSurface(ctx context.Context, surface Surface) (Surface, error) {
	created, err := scanSurface(r.pool.QueryRow(ctx, `
		INSERT INTO surfaces (workspace_id, surface_type, name, description, status,
			audience_rules, trigger, frequency, starts_at, ends_at, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+surfaceColumns+`
	`,
		surface.WorkspaceID,
		surface.Type,
		surface.Name,
		surface.Description,
		surface.Status,
		ensureJSON(surface.AudienceRules, "null"),
		ensureJSON(surface.Trigger, "null"),
		surface.Frequency,
		surface.StartsAt,
		surface.EndsAt,
		surface.Priority,
	))
	if err != nil {
		return Surface{}, fmt.Errorf("create surface: %w", err)
	}

	return created, nil
}

// UpdateSurface updates the mutable fields of a surface identified by
// workspace and ID. Status is not touched here; lifecycle transitions go
// through [PostgresRepository.UpdateSurfaceStatus]. Returns pgx.ErrNoRows
// (wrapped) if the surface does not exist.
func (r *PostgresRepository) UpdateSurface(ctx context.Context, surface Surface) (Surface, error) {
	updated, err := scanSurface(r.pool.QueryRow(ctx, `
		UPDATE surfaces
		SET name = $3,
		    description = $4,
		    audience_rules = $5,
		    trigger = $6,
		    frequency = $7,
		    starts_at = $8,
		    ends_at = $9,
		    priority = $10,
		    updated_at = NOW()
		WHERE workspace_id = $1 AND id = $2
		RETURNING `+surfaceColumns+`
	`,
		surface.WorkspaceID,
		surface.ID,
		surface.Name,
		surface.Description,
		ensureJSON(surface.AudienceRules, "null"),
		ensureJSON(surface.Trigger, "null"),
		surface.Frequency,
		surface.StartsAt,
		surface.EndsAt,
		surface.Priority,
	))
	if err != nil {
		return Surface{}, fmt.Errorf("update surface: %w", err)
	}

	return updated, nil
}

// UpdateSurfaceStatus sets a surface's status and returns the updated record.
// The transition itself is validated by the service layer; this is the final
// write. Returns pgx.ErrNoRows (wrapped) if the surface does not exist.
func (r *PostgresRepository) UpdateSurfaceStatus(ctx context.Context, workspaceID, id, status string) (Surface, error) {
	updated, err := scanSurface(r.pool.QueryRow(ctx, `
		UPDATE surfaces
		SET status = $3, updated_at = NOW()
		WHERE workspace_id = $1 AND id = $2
		RETURNING `+surfaceColumns+`
	`, workspaceID, id, status))
	if err != nil {
		return Surface{}, fmt.Errorf("update surface status: %w", err)
	}

	return updated, nil
}

// GetSurface retrieves a single surface by workspace and ID. Returns
// pgx.ErrNoRows (wrapped) if not found.
func (r *PostgresRepository) GetSurface(ctx context.Context, workspaceID, id string) (Surface, error) {
	surface, err := scanSurface(r.pool.QueryRow(ctx, `
		SELECT `+surfaceColumns+`
		FROM surfaces
		WHERE workspace_id = $1 AND id = $2
	`, workspaceID, id))
	if err != nil {
		return Surface{}, fmt.Errorf("get surface: %w", err)
	}

	return surface, nil
}

// ListSurfaces returns all surfaces in a workspace in catalog order.
func (r *PostgresRepository) ListSurfaces(ctx context.Context, workspaceID string) ([]Surface, error) {
	return r.listSurfaces(ctx, `
		SELECT `+surfaceColumns+`
		FROM surfaces
		WHERE workspace_id = $1
		ORDER BY created_at, id
	`, workspaceID)
}

// ListActiveSurfaces returns the active surfaces of a workspace, the
// candidate set for one eligibility call. Ordering is priority first (higher
// wins), then catalog order, so the pipeline preserves it with a stable pass.
func (r *PostgresRepository) ListActiveSurfaces(ctx context.Context, workspaceID string) ([]Surface, error) {
	return r.listSurfaces(ctx, `
		SELECT `+surfaceColumns+`
		FROM surfaces
		WHERE workspace_id = $1 AND status = 'active'
		ORDER BY priority DESC, created_at, id
	`, workspaceID)
}

func (r *PostgresRepository) listSurfaces(ctx context.Context, query string, args ...any) ([]Surface, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list surfaces: %w", err)
	}
	defer rows.Close()

	surfaces := make([]Surface, 0)
	for rows.Next() {
		surface, err := scanSurface(rows)
		if err != nil {
			return nil, fmt.Errorf("scan surface: %w", err)
		}
		surfaces = append(surfaces, surface)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list surfaces rows: %w", err)
	}

	return surfaces, nil
}

// DeleteSurface removes a surface by workspace and ID. Impressions are
// removed by cascade. Returns pgx.ErrNoRows (wrapped) if the surface does
// not exist.
func (r *PostgresRepository) DeleteSurface(ctx context.Context, workspaceID, id string) error {
	commandTag, err := r.pool.Exec(ctx, `DELETE FROM surfaces WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	if err != nil {
		return fmt.Errorf("delete surface: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return fmt.Errorf("delete surface: %w", pgx.ErrNoRows)
	}

	return nil
}

// HasImpressions reports whether any impression has ever been recorded
// against the surface.
func (r *PostgresRepository) HasImpressions(ctx context.Context, surfaceID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM impressions WHERE surface_id = $1)`, surfaceID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check surface impressions: %w", err)
	}
	return exists, nil
}
