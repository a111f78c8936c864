package store

import (
	"encoding/json"
	"testing"
)

func TestJSONOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		raw      json.RawMessage
		fallback string
		want     string
	}{
		{"nil failures", nil, "[]", "[]"},
		{"empty raw", json.RawMessage(""), "[]", "[]"},
		{"nil summary", nil, "{}", "{}"},
		{"populated", json.RawMessage(`[{"code":"X"}]`), "[]", `[{"code":"X"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := jsonOrDefault(tt.raw, tt.fallback)
			if got != tt.want {
				t.Errorf("jsonOrDefault(%q, %q) = %q, want %q", tt.raw, tt.fallback, got, tt.want)
			}
			if !json.Valid([]byte(got)) {
				t.Errorf("jsonOrDefault(%q, %q) = %q is not valid JSON", tt.raw, tt.fallback, got)
			}
		})
	}
}
