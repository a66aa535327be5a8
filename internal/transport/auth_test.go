package transport

import (
	"testing"
)

func TestAuthHeaders(t *testing.T) {
	headers, err := AuthHeaders(Credentials{APIKey: "key-123", ProjectID: "proj-1"})
	if err != nil {
		t.Fatalf("AuthHeaders: %v", err)
	}
	if headers["X-API-Key"] != "key-123" {
		t.Errorf("X-API-Key: got %q", headers["X-API-Key"])
	}
	if headers["X-Project-ID"] != "proj-1" {
		t.Errorf("X-Project-ID: got %q", headers["X-Project-ID"])
	}
}

func TestAuthHeaders_NoProjectID(t *testing.T) {
	headers, err := AuthHeaders(Credentials{APIKey: "key-123"})
	if err != nil {
		t.Fatalf("AuthHeaders: %v", err)
	}
	if _, ok := headers["X-Project-ID"]; ok {
		t.Error("X-Project-ID should be absent when ProjectID is empty")
	}
}

func TestAuthHeaders_MissingKey(t *testing.T) {
	for _, apiKey := range []string{"", "   "} {
		_, err := AuthHeaders(Credentials{APIKey: apiKey})
		if err == nil {
			t.Fatalf("AuthHeaders(%q) should fail", apiKey)
		}
		if !IsAuthError(err) {
			t.Errorf("expected AuthenticationError, got %T", err)
		}
	}
}
