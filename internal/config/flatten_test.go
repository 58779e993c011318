package config

import (
	"testing"
)

func TestFlatten_Nested(t *testing.T) {
	m := map[string]any{
		"backend": map[string]any{
			"base_url":        "http://localhost:8000",
			"timeout_seconds": 30.0,
		},
		"upload": map[string]any{
			"limits": map[string]any{"max_size_mb": 10.0},
		},
		"log_level": "info",
		"empty":     map[string]any{},
	}
	got := Flatten(m)
	if got["backend.base_url"] != "http://localhost:8000" {
		t.Errorf("expected backend.base_url, got %v", got["backend.base_url"])
	}
	if got["backend.timeout_seconds"] != 30.0 {
		t.Errorf("expected backend.timeout_seconds=30, got %v", got["backend.timeout_seconds"])
	}
	if got["upload.limits.max_size_mb"] != 10.0 {
		t.Errorf("expected upload.limits.max_size_mb=10, got %v", got["upload.limits.max_size_mb"])
	}
	if len(got) != 4 {
		t.Errorf("expected 4 keys (empty nested map produces nothing), got %d", len(got))
	}
}

func TestUnflatten_Nested(t *testing.T) {
	got := Unflatten(map[string]any{
		"chat.language":   "Hindi",
		"kb.refresh.schedule": "@hourly",
		"max_tokens":      512.0,
		"telegram.token":  "bot-token",
	})
	chat, ok := got["chat"].(map[string]any)
	if !ok {
		t.Fatalf("expected chat to be map, got %T", got["chat"])
	}
	if chat["language"] != "Hindi" {
		t.Errorf("expected chat.language=Hindi, got %v", chat["language"])
	}
	kb := got["kb"].(map[string]any)
	refresh, ok := kb["refresh"].(map[string]any)
	if !ok || refresh["schedule"] != "@hourly" {
		t.Errorf("expected kb.refresh.schedule=@hourly, got %v", kb["refresh"])
	}
	if got["max_tokens"] != 512.0 {
		t.Errorf("expected max_tokens=512, got %v", got["max_tokens"])
	}
}

func TestUnflatten_OverwritesScalarParent(t *testing.T) {
	got := Unflatten(map[string]any{"a": "scalar", "a.b": "child"})
	// Map iteration order decides which wins; either result must be well formed.
	switch v := got["a"].(type) {
	case string:
		if v != "scalar" {
			t.Errorf("unexpected scalar %q", v)
		}
	case map[string]any:
		if v["b"] != "child" {
			t.Errorf("expected a.b=child, got %v", v["b"])
		}
	default:
		t.Errorf("unexpected type %T", v)
	}
}

func TestRoundTrip_FlattenUnflatten(t *testing.T) {
	original := map[string]any{
		"data_dir": "/home/test/.docpilot",
		"backend":  map[string]any{"base_url": "http://b:8000"},
		"telegram": map[string]any{"token": "bot-token-abc"},
	}
	restored := Unflatten(Flatten(original))

	if restored["data_dir"] != original["data_dir"] {
		t.Errorf("data_dir mismatch: %v", restored["data_dir"])
	}
	if restored["backend"].(map[string]any)["base_url"] != "http://b:8000" {
		t.Errorf("backend.base_url mismatch: %v", restored["backend"])
	}
	if restored["telegram"].(map[string]any)["token"] != "bot-token-abc" {
		t.Errorf("telegram.token mismatch: %v", restored["telegram"])
	}
}

func TestMaskSecrets(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"long token", "123456:ABCdefGHIjkl", "***Ijkl"},
		{"short token", "ab", "***ab"},
		{"four chars", "abcd", "***abcd"},
		{"empty", "", ""},
		{"non-string", 42.0, 42.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskSecrets(map[string]any{
				"telegram.token":   tt.value,
				"backend.base_url": "http://localhost:8000",
			})
			if got["telegram.token"] != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got["telegram.token"])
			}
			if got["backend.base_url"] != "http://localhost:8000" {
				t.Errorf("non-secret changed: %v", got["backend.base_url"])
			}
		})
	}
}

func TestIsSecretKey(t *testing.T) {
	if !IsSecretKey("telegram.token") {
		t.Error("telegram.token should be secret")
	}
	if IsSecretKey("backend.base_url") {
		t.Error("backend.base_url should not be secret")
	}
}

func TestKeys_Sorted(t *testing.T) {
	got := Keys(map[string]any{"upload.max_size_mb": 50, "backend.base_url": "x", "data_dir": "d"})
	want := []string{"backend.base_url", "data_dir", "upload.max_size_mb"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
