package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseRule(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantNil bool
		wantErr bool
	}{
		{
			name:    "empty payload means no rule",
			payload: "",
			wantNil: true,
		},
		{
			name:    "json null means no rule",
			payload: "null",
			wantNil: true,
		},
		{
			name:    "valid condition",
			payload: `{"property":{"source":"system","key":"email"},"operator":"is_set"}`,
		},
		{
			name:    "valid equals condition with value",
			payload: `{"property":{"source":"custom","key":"plan"},"operator":"equals","value":"pro"}`,
		},
		{
			name:    "valid nested group",
			payload: `{"operator":"and","conditions":[{"property":{"source":"system","key":"email"},"operator":"is_set"},{"operator":"or","conditions":[{"property":{"source":"custom","key":"plan"},"operator":"equals","value":"pro"},{"property":{"source":"custom","key":"plan"},"operator":"equals","value":"enterprise"}]}]}`,
		},
		{
			name:    "group with empty conditions",
			payload: `{"operator":"or","conditions":[]}`,
		},
		{
			name:    "unknown group operator",
			payload: `{"operator":"xor","conditions":[]}`,
			wantErr: true,
		},
		{
			name:    "unknown condition operator",
			payload: `{"property":{"source":"system","key":"email"},"operator":"matches"}`,
			wantErr: true,
		},
		{
			name:    "equals without value",
			payload: `{"property":{"source":"custom","key":"plan"},"operator":"equals"}`,
			wantErr: true,
		},
		{
			name:    "contains without value",
			payload: `{"property":{"source":"custom","key":"plan"},"operator":"contains"}`,
			wantErr: true,
		},
		{
			name:    "is_set with value",
			payload: `{"property":{"source":"custom","key":"plan"},"operator":"is_set","value":"pro"}`,
			wantErr: true,
		},
		{
			name:    "equals with object value",
			payload: `{"property":{"source":"custom","key":"plan"},"operator":"equals","value":{"tier":"pro"}}`,
			wantErr: true,
		},
		{
			name:    "missing property key",
			payload: `{"property":{"source":"custom","key":""},"operator":"is_set"}`,
			wantErr: true,
		},
		{
			name:    "unknown property source",
			payload: `{"property":{"source":"derived","key":"plan"},"operator":"is_set"}`,
			wantErr: true,
		},
		{
			name:    "node that is neither shape",
			payload: `{"operator":"and"}`,
			wantErr: true,
		},
		{
			name:    "group node carrying a property",
			payload: `{"operator":"and","conditions":[],"property":{"source":"system","key":"email"}}`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			payload: `{"operator":`,
			wantErr: true,
		},
		{
			name:    "bad node nested deep in a group",
			payload: `{"operator":"and","conditions":[{"property":{"source":"system","key":"email"},"operator":"glows"}]}`,
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rule, err := ParseRule(json.RawMessage(test.payload))
			if test.wantErr {
				if err == nil {
					t.Fatalf("ParseRule() error = nil, want error")
				}
				if !errors.Is(err, ErrInvalidRule) {
					t.Fatalf("ParseRule() error = %v, want ErrInvalidRule", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRule() error = %v", err)
			}
			if test.wantNil != (rule == nil) {
				t.Fatalf("ParseRule() rule = %v, wantNil = %t", rule, test.wantNil)
			}
		})
	}
}

func TestRuleRoundTrip(t *testing.T) {
	payload := `{"operator":"and","conditions":[{"property":{"source":"system","key":"email"},"operator":"is_set"},{"property":{"source":"custom","key":"plan"},"operator":"equals","value":"pro"}]}`

	rule, err := ParseRule(json.RawMessage(payload))
	if err != nil {
		t.Fatalf("ParseRule() error = %v", err)
	}

	encoded, err := json.Marshal(rule)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	reparsed, err := ParseRule(encoded)
	if err != nil {
		t.Fatalf("ParseRule(round trip) error = %v", err)
	}

	visitor := Visitor{Email: "ada@example.com", CustomAttributes: map[string]any{"plan": "pro"}}
	if !Evaluate(rule, visitor) || !Evaluate(reparsed, visitor) {
		t.Fatalf("round-tripped rule changed evaluation result")
	}
}
