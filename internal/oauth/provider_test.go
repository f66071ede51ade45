package oauth

import (
	"encoding/base64"
	"testing"
)

func TestGenerateStateIsRandomAndDecodable(t *testing.T) {
	first, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState returned error: %v", err)
	}
	second, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState returned error: %v", err)
	}

	if first == second {
		t.Fatal("consecutive states must differ")
	}

	decoded, err := base64.URLEncoding.DecodeString(first)
	if err != nil {
		t.Fatalf("state must be url-safe base64: %v", err)
	}
	if len(decoded) != 32 {
		t.Fatalf("expected 32 bytes of entropy, got %d", len(decoded))
	}
}

func TestOptional(t *testing.T) {
	if optional("") != nil {
		t.Fatal("empty string must map to nil")
	}
	got := optional("value")
	if got == nil || *got != "value" {
		t.Fatalf("expected pointer to value, got %v", got)
	}
}
