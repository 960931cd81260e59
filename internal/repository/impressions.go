package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// InsertImpression appends a non-terminal impression and returns its
// generated ID. A foreign-key violation means the surface was deleted
// between the caller's status check and this write; that race is reported as
// [ErrSurfaceDeleted].
func (r *PostgresRepository) InsertImpression(ctx context.Context, impression Impression) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO impressions (surface_id, visitor_id, session_id, action, screen_index, button_index)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		impression.SurfaceID,
		impression.VisitorID,
		nullableString(impression.SessionID),
		impression.Action,
		impression.ScreenIndex,
		impression.ButtonIndex,
	).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return "", fmt.Errorf("insert impression: %w", ErrSurfaceDeleted)
		}
		return "", fmt.Errorf("insert impression: %w", err)
	}

	return id, nil
}

// InsertTerminalImpression records a completed/dismissed event with
// at-most-once semantics per (surface, visitor). The insert and the
// existing-record check are a single atomic statement: a partial unique
// index over terminal actions makes concurrent retries collapse onto one
// row, whose ID is returned to every caller. deduped reports whether an
// earlier terminal record won.
func (r *PostgresRepository) InsertTerminalImpression(ctx context.Context, impression Impression) (id string, deduped bool, err error) {
	err = r.pool.QueryRow(ctx, `
		INSERT INTO impressions (surface_id, visitor_id, session_id, action, screen_index, button_index)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (surface_id, visitor_id) WHERE action IN ('completed', 'dismissed') DO NOTHING
		RETURNING id
	`,
		impression.SurfaceID,
		impression.VisitorID,
		nullableString(impression.SessionID),
		impression.Action,
		impression.ScreenIndex,
		impression.ButtonIndex,
	).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if isForeignKeyViolation(err) {
		return "", false, fmt.Errorf("insert terminal impression: %w", ErrSurfaceDeleted)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("insert terminal impression: %w", err)
	}

	// Conflict: a terminal record already exists. It can only vanish before
	// this read if the surface was deleted and its impressions cascaded.
	err = r.pool.QueryRow(ctx, `
		SELECT id
		FROM impressions
		WHERE surface_id = $1 AND visitor_id = $2 AND action IN ('completed', 'dismissed')
	`, impression.SurfaceID, impression.VisitorID).Scan(&id)
	if err != nil {
		return "", false, terminalLookupErr(err)
	}

	return id, true, nil
}

// terminalLookupErr wraps a terminal read-back failure. A missing row means
// the surface delete cascaded between the insert and the read.
func terminalLookupErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		err = ErrSurfaceDeleted
	}
	return fmt.Errorf("lookup terminal impression: %w", err)
}

// SuppressionFactsFor folds the visitor's impression log into per-surface
// exposure facts for the given candidate set, in a single grouped query.
// Surfaces with no impressions are absent from the result map.
func (r *PostgresRepository) SuppressionFactsFor(ctx context.Context, visitorID, sessionID string, surfaceIDs []string) (map[string]SuppressionFacts, error) {
	facts := make(map[string]SuppressionFacts, len(surfaceIDs))
	if len(surfaceIDs) == 0 {
		return facts, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT surface_id,
		       bool_or(action IN ('completed', 'dismissed')),
		       bool_or(action = 'shown'),
		       bool_or(COALESCE(action = 'shown' AND session_id = $3, false))
		FROM impressions
		WHERE visitor_id = $1 AND surface_id = ANY($2::uuid[])
		GROUP BY surface_id
	`, visitorID, surfaceIDs, nullableString(sessionID))
	if err != nil {
		return nil, fmt.Errorf("suppression facts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var surfaceID string
		var f SuppressionFacts
		if err := rows.Scan(&surfaceID, &f.Terminal, &f.EverShown, &f.ShownThisSession); err != nil {
			return nil, fmt.Errorf("scan suppression facts: %w", err)
		}
		facts[surfaceID] = f
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("suppression facts rows: %w", err)
	}

	return facts, nil
}

// CountImpressionsByAction folds the surface's impression log into
// per-action counts.
func (r *PostgresRepository) CountImpressionsByAction(ctx context.Context, surfaceID string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT action, COUNT(*)
		FROM impressions
		WHERE surface_id = $1
		GROUP BY action
	`, surfaceID)
	if err != nil {
		return nil, fmt.Errorf("count impressions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("scan impression count: %w", err)
		}
		counts[action] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count impressions rows: %w", err)
	}

	return counts, nil
}

// ListImpressions returns the full impression log for a surface, oldest
// first.
func (r *PostgresRepository) ListImpressions(ctx context.Context, surfaceID string) ([]Impression, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, surface_id, visitor_id, COALESCE(session_id, ''), action, screen_index, button_index, created_at
		FROM impressions
		WHERE surface_id = $1
		ORDER BY created_at, id
	`, surfaceID)
	if err != nil {
		return nil, fmt.Errorf("list impressions: %w", err)
	}
	defer rows.Close()

	impressions := make([]Impression, 0)
	for rows.Next() {
		var imp Impression
		if err := rows.Scan(
			&imp.ID,
			&imp.SurfaceID,
			&imp.VisitorID,
			&imp.SessionID,
			&imp.Action,
			&imp.ScreenIndex,
			&imp.ButtonIndex,
			&imp.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan impression: %w", err)
		}
		impressions = append(impressions, imp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list impressions rows: %w", err)
	}

	return impressions, nil
}
