// Copyright 2026 ApexBridge Technologies

package secrets

import (
	"context"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Get(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing secret")
	}

	if err := s.Set(ctx, "api-key", "sk-123"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := s.Get(ctx, "api-key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "sk-123" {
		t.Errorf("expected sk-123, got %s", got)
	}

	if err := s.Delete(ctx, "api-key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "api-key"); err == nil {
		t.Fatal("expected error after delete")
	}
}

func TestEnvStore(t *testing.T) {
	ctx := context.Background()
	s := NewEnvStore()

	t.Setenv("BUGSPOTTER_TEST_SECRET", "from-env")
	got, err := s.Get(ctx, "BUGSPOTTER_TEST_SECRET")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "from-env" {
		t.Errorf("expected from-env, got %s", got)
	}

	if _, err := s.Get(ctx, "BUGSPOTTER_TEST_SECRET_MISSING"); err == nil {
		t.Fatal("expected error for unset variable")
	}
}

func TestNewStore_ProviderSelection(t *testing.T) {
	ctx := context.Background()

	mem, err := NewStore(Config{Provider: "memory"})
	if err != nil {
		t.Fatalf("memory provider: %v", err)
	}
	if err := mem.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("memory Set: %v", err)
	}

	// 未知 provider 回落到 env
	t.Setenv("BUGSPOTTER_FALLBACK_SECRET", "x")
	fallback, err := NewStore(Config{Provider: "unknown"})
	if err != nil {
		t.Fatalf("fallback provider: %v", err)
	}
	if got, err := fallback.Get(ctx, "BUGSPOTTER_FALLBACK_SECRET"); err != nil || got != "x" {
		t.Errorf("expected env fallback to resolve, got %q err %v", got, err)
	}
}
