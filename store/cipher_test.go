package store

import (
	"context"
	"strings"
	"testing"
)

func testKey(b byte) [32]byte {
	var k [32]byte
	for i := range k {
		k[i] = b
	}
	return k
}

func TestSessionCipherRoundTrip(t *testing.T) {
	c := NewSessionCipher(testKey(0x01))

	sealed, err := c.seal("super-secret-cookie")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if sealed == "super-secret-cookie" {
		t.Fatal("seal: ciphertext equals plaintext")
	}

	opened, err := c.open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened != "super-secret-cookie" {
		t.Errorf("open = %q, want %q", opened, "super-secret-cookie")
	}
}

func TestSessionCipherEmptyString(t *testing.T) {
	c := NewSessionCipher(testKey(0x02))

	sealed, err := c.seal("")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if sealed != "" {
		t.Errorf("seal(\"\") = %q, want empty", sealed)
	}

	opened, err := c.open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened != "" {
		t.Errorf("open(\"\") = %q, want empty", opened)
	}
}

func TestSessionCipherTampered(t *testing.T) {
	c := NewSessionCipher(testKey(0x03))

	sealed, err := c.seal("cookie-value")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	tampered := strings.Replace(sealed, sealed[len(sealed)-4:], "xxxx", 1)
	if _, err := c.open(tampered); err != ErrSessionCookieTampered {
		t.Errorf("open(tampered) err = %v, want %v", err, ErrSessionCookieTampered)
	}

	if _, err := c.open("not-base64!!"); err == nil {
		t.Error("open(garbage) = nil error, want decode error")
	}
}

func TestSessionCipherWrongKey(t *testing.T) {
	sealed, err := NewSessionCipher(testKey(0x04)).seal("cookie-value")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := NewSessionCipher(testKey(0x05)).open(sealed); err != ErrSessionCookieTampered {
		t.Errorf("open with wrong key err = %v, want %v", err, ErrSessionCookieTampered)
	}
}

func TestStoreTargetSessionCookieEncryptedAtRest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.cipher = NewSessionCipher(testKey(0x06))

	target := &Target{ID: "t1", URL: "https://example.com", SessionCookie: "session=abc123"}
	if err := s.CreateTarget(ctx, target); err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}

	var raw string
	if err := s.DB.QueryRowContext(ctx, `SELECT session_cookie FROM targets WHERE id = ?`, "t1").Scan(&raw); err != nil {
		t.Fatalf("scan raw session_cookie: %v", err)
	}
	if raw == "session=abc123" {
		t.Fatal("session_cookie stored in plaintext")
	}

	got, err := s.GetTarget(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTarget: %v", err)
	}
	if got.SessionCookie != "session=abc123" {
		t.Errorf("SessionCookie = %q, want %q", got.SessionCookie, "session=abc123")
	}

	newCookie := "session=def456"
	if err := s.UpdateTargetFields(ctx, "t1", TargetPatch{SessionCookie: &newCookie}); err != nil {
		t.Fatalf("UpdateTargetFields: %v", err)
	}
	got, err = s.GetTarget(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTarget after update: %v", err)
	}
	if got.SessionCookie != newCookie {
		t.Errorf("SessionCookie after update = %q, want %q", got.SessionCookie, newCookie)
	}
}

func TestStoreSessionCookieNoCipherIsPlaintext(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	target := &Target{ID: "t1", URL: "https://example.com", SessionCookie: "session=plain"}
	if err := s.CreateTarget(ctx, target); err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}

	got, err := s.GetTarget(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTarget: %v", err)
	}
	if got.SessionCookie != "session=plain" {
		t.Errorf("SessionCookie = %q, want %q", got.SessionCookie, "session=plain")
	}
}
