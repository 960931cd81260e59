package main

import (
	"context"
	"fmt"
	"io"

	"github.com/ben-hawker/nudgz/internal/repository"
)

type workspaceBootstrapper interface {
	CreateWorkspace(ctx context.Context, name, description string) (repository.Workspace, error)
	CreateAPIKey(ctx context.Context, workspaceID string) (string, string, error)
}

// bootstrapWorkspace creates a workspace plus an API key for it and writes
// the workspace ID and bearer token to w. The token is printed exactly once;
// only its bcrypt hash is stored.
func bootstrapWorkspace(ctx context.Context, repo workspaceBootstrapper, name string, w io.Writer) error {
	ws, err := repo.CreateWorkspace(ctx, name, "")
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	keyID, secret, err := repo.CreateAPIKey(ctx, ws.ID)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	fmt.Fprintf(w, "workspace_id=%s\napi_key=%s.%s\n", ws.ID, keyID, secret)
	return nil
}
