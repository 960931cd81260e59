package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ben-hawker/nudgz/internal/repository"
)

type fakeBootstrapper struct {
	workspaceErr error
	keyErr       error

	createdName  string
	keyWorkspace string
}

func (f *fakeBootstrapper) CreateWorkspace(_ context.Context, name, _ string) (repository.Workspace, error) {
	if f.workspaceErr != nil {
		return repository.Workspace{}, f.workspaceErr
	}
	f.createdName = name
	return repository.Workspace{ID: "ws-42", Name: name}, nil
}

func (f *fakeBootstrapper) CreateAPIKey(_ context.Context, workspaceID string) (string, string, error) {
	if f.keyErr != nil {
		return "", "", f.keyErr
	}
	f.keyWorkspace = workspaceID
	return "kid123", "s3cret", nil
}

func TestBootstrapWorkspacePrintsCredentials(t *testing.T) {
	fake := &fakeBootstrapper{}
	var out bytes.Buffer

	if err := bootstrapWorkspace(context.Background(), fake, "acme", &out); err != nil {
		t.Fatalf("bootstrapWorkspace: %v", err)
	}

	if fake.createdName != "acme" {
		t.Errorf("created workspace name = %q, want %q", fake.createdName, "acme")
	}
	if fake.keyWorkspace != "ws-42" {
		t.Errorf("key created for workspace %q, want %q", fake.keyWorkspace, "ws-42")
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("output lines = %d, want 2:\n%s", len(lines), out.String())
	}
	if lines[0] != "workspace_id=ws-42" {
		t.Errorf("line 1 = %q, want %q", lines[0], "workspace_id=ws-42")
	}
	if lines[1] != "api_key=kid123.s3cret" {
		t.Errorf("line 2 = %q, want %q", lines[1], "api_key=kid123.s3cret")
	}
}

func TestBootstrapWorkspaceErrors(t *testing.T) {
	wsErr := errors.New("duplicate name")
	var out bytes.Buffer
	err := bootstrapWorkspace(context.Background(), &fakeBootstrapper{workspaceErr: wsErr}, "acme", &out)
	if !errors.Is(err, wsErr) {
		t.Fatalf("error = %v, want %v", err, wsErr)
	}

	keyErr := errors.New("insert failed")
	err = bootstrapWorkspace(context.Background(), &fakeBootstrapper{keyErr: keyErr}, "acme", &out)
	if !errors.Is(err, keyErr) {
		t.Fatalf("error = %v, want %v", err, keyErr)
	}
	if out.Len() != 0 {
		t.Errorf("output written on failure: %q", out.String())
	}
}
