// Package repository provides PostgreSQL-backed persistence for surfaces,
// visitors, impressions, workspaces, and API keys. The impression log is the
// system of record for suppression state and delivery stats; both are derived
// here with single queries rather than maintained incrementally.
package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// ErrSurfaceDeleted marks an impression write that lost a race with a surface
// deletion. Callers treat it as a benign no-op.
var ErrSurfaceDeleted = errors.New("surface deleted")

// Workspace is the tenancy unit. Every surface, visitor, and API key belongs
// to exactly one workspace for its lifetime.
type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Surface is the repository-level representation of a deliverable surface
// row. AudienceRules and Trigger are stored verbatim as the JSON documents
// produced by the authoring UI; the service layer parses them per evaluation.
type Surface struct {
	ID            string          `json:"id"`
	WorkspaceID   string          `json:"-"`
	Type          string          `json:"type"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Status        string          `json:"status"`
	AudienceRules json.RawMessage `json:"audience_rules"`
	Trigger       json.RawMessage `json:"trigger"`
	Frequency     string          `json:"frequency"`
	StartsAt      *time.Time      `json:"starts_at,omitempty"`
	EndsAt        *time.Time      `json:"ends_at,omitempty"`
	Priority      int             `json:"priority"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Visitor is a stored visitor record: fixed system properties plus an open
// JSON map of custom attributes.
type Visitor struct {
	ID               string          `json:"id"`
	WorkspaceID      string          `json:"-"`
	Email            string          `json:"email,omitempty"`
	Name             string          `json:"name,omitempty"`
	ExternalUserID   string          `json:"external_user_id,omitempty"`
	CustomAttributes json.RawMessage `json:"custom_attributes"`
	FirstSeenAt      time.Time       `json:"first_seen_at"`
	LastSeenAt       time.Time       `json:"last_seen_at"`
}

// Impression is one recorded delivery event.
type Impression struct {
	ID          string    `json:"id"`
	SurfaceID   string    `json:"surface_id"`
	VisitorID   string    `json:"visitor_id"`
	SessionID   string    `json:"session_id,omitempty"`
	Action      string    `json:"action"`
	ScreenIndex *int      `json:"screen_index,omitempty"`
	ButtonIndex *int      `json:"button_index,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SuppressionFacts are the per-surface exposure aggregates for one visitor,
// folded from the impression log.
type SuppressionFacts struct {
	Terminal         bool
	EverShown        bool
	ShownThisSession bool
}

// APIKey metadata without the secret, suitable for listing.
type APIKeyMeta struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}

// PostgresRepository implements persistence backed by a pgxpool connection
// pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a [PostgresRepository].
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// CreateWorkspace inserts a new workspace.
func (r *PostgresRepository) CreateWorkspace(ctx context.Context, name, description string) (Workspace, error) {
	var w Workspace
	err := r.pool.QueryRow(ctx, `
		INSERT INTO workspaces (name, description)
		VALUES ($1, $2)
		RETURNING id, name, description, created_at, updated_at
	`, name, description).Scan(&w.ID, &w.Name, &w.Description, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return Workspace{}, fmt.Errorf("create workspace: %w", err)
	}
	return w, nil
}

// GetWorkspace retrieves a workspace by ID. Returns pgx.ErrNoRows (wrapped)
// if not found.
func (r *PostgresRepository) GetWorkspace(ctx context.Context, id string) (Workspace, error) {
	var w Workspace
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM workspaces
		WHERE id = $1
	`, id).Scan(&w.ID, &w.Name, &w.Description, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return Workspace{}, fmt.Errorf("get workspace: %w", err)
	}
	return w, nil
}

// ListWorkspaces returns all workspaces ordered by name.
func (r *PostgresRepository) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM workspaces ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	workspaces := make([]Workspace, 0)
	for rows.Next() {
		var w Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.Description, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		workspaces = append(workspaces, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list workspaces rows: %w", err)
	}
	return workspaces, nil
}

// CreateAPIKey generates a new API key for the given workspace, storing a
// bcrypt hash of the secret. The raw secret is returned exactly once; it
// cannot be retrieved later.
func (r *PostgresRepository) CreateAPIKey(ctx context.Context, workspaceID string) (string, string, error) {
	keyID, err := generateRandomHex(16)
	if err != nil {
		return "", "", fmt.Errorf("generate key id: %w", err)
	}

	secret, err := generateRandomHex(32)
	if err != nil {
		return "", "", fmt.Errorf("generate secret: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash api key: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO api_keys (id, workspace_id, name, key_hash)
		VALUES ($1, $2, $3, $4)
	`, keyID, workspaceID, "api-key-"+keyID[:8], string(hash))
	if err != nil {
		return "", "", fmt.Errorf("create api key: %w", err)
	}

	return keyID, secret, nil
}

// ValidateAPIKey returns the stored hash and workspace ID for a non-revoked
// key ID. Callers should do constant-time comparison outside this package.
func (r *PostgresRepository) ValidateAPIKey(ctx context.Context, id string) (string, string, error) {
	var keyHash string
	var workspaceID string
	if err := r.pool.QueryRow(ctx, `
		SELECT key_hash, workspace_id
		FROM api_keys
		WHERE id = $1
		  AND revoked_at IS NULL
	`, id).Scan(&keyHash, &workspaceID); err != nil {
		return "", "", fmt.Errorf("validate api key: %w", err)
	}

	return keyHash, workspaceID, nil
}

// ListAPIKeys returns metadata for all non-revoked API keys belonging to the
// given workspace. Secrets are never included.
func (r *PostgresRepository) ListAPIKeys(ctx context.Context, workspaceID string) ([]APIKeyMeta, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, workspace_id, name, created_at
		FROM api_keys
		WHERE workspace_id = $1 AND revoked_at IS NULL
		ORDER BY created_at
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	keys := make([]APIKeyMeta, 0)
	for rows.Next() {
		var k APIKeyMeta
		if err := rows.Scan(&k.ID, &k.WorkspaceID, &k.Name, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list api keys rows: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey soft-deletes an API key by setting its revoked_at timestamp.
// Returns pgx.ErrNoRows (wrapped) if the key does not exist or is already
// revoked.
func (r *PostgresRepository) RevokeAPIKey(ctx context.Context, workspaceID, keyID string) error {
	commandTag, err := r.pool.Exec(ctx, `
		UPDATE api_keys SET revoked_at = NOW()
		WHERE id = $1 AND workspace_id = $2 AND revoked_at IS NULL
	`, keyID, workspaceID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return fmt.Errorf("revoke api key: %w", pgx.ErrNoRows)
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func ensureJSON(input json.RawMessage, fallback string) json.RawMessage {
	if len(input) == 0 {
		return json.RawMessage(fallback)
	}

	return input
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func generateRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
