package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestEnsureJSON(t *testing.T) {
	if got := string(ensureJSON(nil, "null")); got != "null" {
		t.Fatalf("ensureJSON(nil) = %q, want %q", got, "null")
	}

	if got := string(ensureJSON(json.RawMessage(`{"a":1}`), "null")); got != `{"a":1}` {
		t.Fatalf("ensureJSON(non-empty) = %q, want %q", got, `{"a":1}`)
	}
}

func TestNullableString(t *testing.T) {
	if got := nullableString(""); got != nil {
		t.Fatalf("nullableString(\"\") = %v, want nil", got)
	}
	if got := nullableString("sess-1"); got != "sess-1" {
		t.Fatalf("nullableString(non-empty) = %v, want %q", got, "sess-1")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	fkErr := &pgconn.PgError{Code: "23503"}
	if !isForeignKeyViolation(fkErr) {
		t.Fatal("isForeignKeyViolation(23503) = false, want true")
	}
	if !isForeignKeyViolation(errors.Join(errors.New("wrapped"), fkErr)) {
		t.Fatal("isForeignKeyViolation(wrapped 23503) = false, want true")
	}
	if isForeignKeyViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("isForeignKeyViolation(23505) = true, want false")
	}
	if isForeignKeyViolation(errors.New("plain")) {
		t.Fatal("isForeignKeyViolation(plain error) = true, want false")
	}
}

func TestTerminalLookupErr(t *testing.T) {
	if err := terminalLookupErr(pgx.ErrNoRows); !errors.Is(err, ErrSurfaceDeleted) {
		t.Fatalf("terminalLookupErr(ErrNoRows) = %v, want ErrSurfaceDeleted", err)
	}
	if err := terminalLookupErr(fmt.Errorf("scan: %w", pgx.ErrNoRows)); !errors.Is(err, ErrSurfaceDeleted) {
		t.Fatalf("terminalLookupErr(wrapped ErrNoRows) = %v, want ErrSurfaceDeleted", err)
	}

	cause := errors.New("connection closed")
	err := terminalLookupErr(cause)
	if errors.Is(err, ErrSurfaceDeleted) {
		t.Fatalf("terminalLookupErr(%v) maps to ErrSurfaceDeleted", cause)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("terminalLookupErr(%v) = %v, cause lost", cause, err)
	}
}

func TestGenerateRandomHex(t *testing.T) {
	first, err := generateRandomHex(16)
	if err != nil {
		t.Fatalf("generateRandomHex() error = %v", err)
	}
	if len(first) != 32 {
		t.Fatalf("generateRandomHex(16) length = %d, want 32", len(first))
	}

	second, err := generateRandomHex(16)
	if err != nil {
		t.Fatalf("generateRandomHex() error = %v", err)
	}
	if first == second {
		t.Fatal("generateRandomHex() returned the same value twice")
	}
}
