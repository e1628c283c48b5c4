package crypto

import "testing"

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	if !VerifyPassword(hash, "secret") {
		t.Fatal("expected password verification to succeed")
	}

	if VerifyPassword(hash, "incorrect") {
		t.Fatal("expected password verification to fail")
	}
}

func TestGenerateTokenLengthAndUniqueness(t *testing.T) {
	first, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	second, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	if first == second {
		t.Fatal("expected tokens to differ")
	}
	if len(first) == 0 {
		t.Fatal("expected non-empty token")
	}
}
