package vault

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestNew_RejectsShortKey(t *testing.T) {
	if _, err := New([]byte("too short")); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	v, err := New(testKey(0x42))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	inputs := []string{
		"",
		"p",
		`{"username":"me@example.com","password":"hunter2","host":"imap.example.com","port":993,"tls":true}`,
		strings.Repeat("long credential blob ", 100),
	}

	for _, input := range inputs {
		stored, err := v.Encrypt(input)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", input, err)
		}
		if !strings.Contains(stored, ":") {
			t.Fatalf("expected iv_hex:cipher_hex form, got %q", stored)
		}

		got, err := v.Decrypt(stored)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != input {
			t.Errorf("round trip mismatch: got %q, want %q", got, input)
		}
	}
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	v, _ := New(testKey(0x42))

	a, _ := v.Encrypt("same plaintext")
	b, _ := v.Encrypt("same plaintext")
	if a == b {
		t.Error("expected distinct ciphertexts for repeated encryption of the same value")
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	v1, _ := New(testKey(0x01))
	v2, _ := New(testKey(0x02))

	stored, err := v1.Encrypt("secret credentials")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got, err := v2.Decrypt(stored)
	if err == nil {
		// Padding can coincidentally verify under the wrong key; the
		// property that matters is the original value never comes back.
		if got == "secret credentials" {
			t.Fatal("wrong key produced the original plaintext")
		}
		return
	}
	if !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt with wrong key, got %v", err)
	}
}

func TestDecrypt_TamperedIVFails(t *testing.T) {
	v, _ := New(testKey(0x42))

	stored, err := v.Encrypt("secret credentials")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Flip a nibble in the IV segment.
	tampered := []byte(stored)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}

	got, err := v.Decrypt(string(tampered))
	if err == nil && got == "secret credentials" {
		t.Fatal("tampered IV produced the original plaintext")
	}
	if err == nil {
		// CBC only garbles the first block on IV tampering; padding may
		// still verify. What matters is we never return the original value.
		return
	}
	if !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt, got %v", err)
	}
}

func TestDecrypt_MalformedInput(t *testing.T) {
	v, _ := New(testKey(0x42))

	cases := []string{
		"",
		"no separator",
		"deadbeef:",            // empty ciphertext
		"zzzz:deadbeef",        // bad iv hex
		"deadbeef:deadbeef",    // short iv
		"00000000000000000000000000000000:abc", // ciphertext not block-aligned
	}

	for _, c := range cases {
		if _, err := v.Decrypt(c); !errors.Is(err, ErrDecrypt) {
			t.Errorf("Decrypt(%q): expected ErrDecrypt, got %v", c, err)
		}
	}
}
