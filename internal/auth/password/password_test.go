package password

import "testing"

func TestHashAndCompare(t *testing.T) {
	hash, err := Hash("Mutuelle-2025!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "Mutuelle-2025!" {
		t.Fatal("hash must not be the plain password")
	}
	if err := Compare(hash, "Mutuelle-2025!"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := Compare(hash, "mutuelle-2025!"); err == nil {
		t.Fatal("expected mismatch")
	}
}
