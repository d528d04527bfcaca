package main

import "testing"

func TestSessionCipherFromHex(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		key := "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"
		c, err := sessionCipherFromHex(key)
		if err != nil {
			t.Fatalf("sessionCipherFromHex: %v", err)
		}
		if c == nil {
			t.Fatal("sessionCipherFromHex: got nil cipher")
		}
	})

	t.Run("not hex", func(t *testing.T) {
		if _, err := sessionCipherFromHex("not-hex-at-all"); err == nil {
			t.Error("sessionCipherFromHex(garbage) = nil error, want decode error")
		}
	})

	t.Run("wrong length", func(t *testing.T) {
		if _, err := sessionCipherFromHex("deadbeef"); err == nil {
			t.Error("sessionCipherFromHex(short) = nil error, want length error")
		}
	})
}
