package password

import (
	"strings"
	"testing"
)

func TestHashAndVerifyRoundTrip(t *testing.T) {
	hash, err := Hash("correct horse battery", MinCost)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if !Verify("correct horse battery", hash) {
		t.Fatal("expected the original password to verify")
	}
	if Verify("wrong password", hash) {
		t.Fatal("expected a different password to fail verification")
	}
}

func TestHashNeverStoresPlaintext(t *testing.T) {
	hash, err := Hash("sup3rsecret", MinCost)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if strings.Contains(hash, "sup3rsecret") {
		t.Fatal("hash must not contain the plaintext")
	}
}

func TestHashRaisesSubMinimumCost(t *testing.T) {
	hash, err := Hash("correct horse battery", 4)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	cost, err := Cost(hash)
	if err != nil {
		t.Fatalf("Cost returned error: %v", err)
	}
	if cost < MinCost {
		t.Fatalf("expected cost >= %d, got %d", MinCost, cost)
	}
}

func TestHashSaltsAreUnique(t *testing.T) {
	first, err := Hash("same password", MinCost)
	if err != nil {
		t.Fatalf("first Hash returned error: %v", err)
	}
	second, err := Hash("same password", MinCost)
	if err != nil {
		t.Fatalf("second Hash returned error: %v", err)
	}
	if first == second {
		t.Fatal("equal passwords must hash to distinct values")
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	if Verify("anything", "not-a-bcrypt-hash") {
		t.Fatal("malformed hash must never verify")
	}
}
