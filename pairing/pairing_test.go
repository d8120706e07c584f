package pairing

import "testing"

func TestGenerateIsStable(t *testing.T) {
	a := New([]byte("shared-secret"))
	first, err := a.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := a.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if first != second {
		t.Fatalf("code changed within the same window: %q vs %q", first, second)
	}
	if len(first) != totpDigits {
		t.Fatalf("expected %d digits, got %q", totpDigits, first)
	}
}

func TestDifferentSecretsDiverge(t *testing.T) {
	a := New([]byte("secret-a"))
	b := New([]byte("secret-b"))
	ca, _ := a.Generate()
	cb, _ := b.Generate()
	if ca == cb {
		t.Fatalf("distinct secrets produced the same code: %q", ca)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	key := []byte("123456")
	msg := []byte("hello peer")
	tag := Sign(key, msg)
	if err := Verify(key, msg, tag); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	key := []byte("123456")
	tag := Sign(key, []byte("hello peer"))
	if err := Verify(key, []byte("hello peeR"), tag); err != ErrAuth {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	msg := []byte("hello peer")
	tag := Sign([]byte("123456"), msg)
	if err := Verify([]byte("000000"), msg, tag); err != ErrAuth {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestHotpKnownVector(t *testing.T) {
	// RFC 4226 Appendix D, first vector: secret "12345678901234567890" (ASCII),
	// counter 0 -> HOTP 755224 (truncated to 6 digits).
	code, err := hotp([]byte("12345678901234567890"), 0)
	if err != nil {
		t.Fatalf("hotp: %v", err)
	}
	if code != "755224" {
		t.Fatalf("expected 755224, got %s", code)
	}
}
