package device

import "testing"

func TestPassword_HashVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	passwords := []string{"hunter2", "", "日本語パスワード", "🔒🔑emoji-pass"}
	for _, pw := range passwords {
		hash, err := HashPassword(pw)
		if err != nil {
			t.Fatalf("HashPassword(%q) error: %v", pw, err)
		}
		if !VerifyPassword(hash, pw) {
			t.Errorf("VerifyPassword failed round trip for %q", pw)
		}
		if VerifyPassword(hash, pw+"x") {
			t.Errorf("VerifyPassword accepted a wrong password for %q", pw)
		}
	}
}

func TestSecret_EncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	const key = "test-secret-key"
	plaintexts := []string{"sk-abc123", "日本語のひみつ", "🔐-emoji-secret"}

	for _, pt := range plaintexts {
		ciphertext, err := EncryptSecret(key, pt)
		if err != nil {
			t.Fatalf("EncryptSecret(%q) error: %v", pt, err)
		}
		if ciphertext == pt {
			t.Errorf("ciphertext for %q was not transformed", pt)
		}
		decrypted, err := DecryptSecret(key, ciphertext)
		if err != nil {
			t.Fatalf("DecryptSecret error: %v", err)
		}
		if decrypted != pt {
			t.Errorf("round trip mismatch: got %q, want %q", decrypted, pt)
		}
	}
}

func TestSecret_EmptyMapsToEmpty(t *testing.T) {
	t.Parallel()

	ciphertext, err := EncryptSecret("key", "")
	if err != nil {
		t.Fatalf("EncryptSecret(\"\") error: %v", err)
	}
	if ciphertext != "" {
		t.Fatalf("EncryptSecret(\"\") = %q, want empty", ciphertext)
	}

	plaintext, err := DecryptSecret("key", "")
	if err != nil {
		t.Fatalf("DecryptSecret(\"\") error: %v", err)
	}
	if plaintext != "" {
		t.Fatalf("DecryptSecret(\"\") = %q, want empty", plaintext)
	}
}
