// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mac

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"hash"
	"testing"
)

// Test vectors from RFC 4231 Section 4.3 (test case 2).
func TestHMAC(t *testing.T) {
	tests := []struct {
		hash func() hash.Hash
		size int
		want string
	}{
		{sha256.New, 0, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843"},
		{sha256.New, 8, "5bdcc146bf60754e"},
		{sha512.New, 0, "164b7a7bfcf819e2e395fbe73b56e0a387bd64222e831fd610270cd7ea2505549758bf75c05a994a6d034f65f8f0e6fdcaeab1a34d4a6b4b636e070a38bce737"},
	}
	for _, tt := range tests {
		have, err := HMAC(tt.hash, []byte("Jefe"), []byte("what do ya want for nothing?"), tt.size)
		if err != nil {
			t.Fatalf("HMAC failed: %v", err)
		}
		if hex.EncodeToString(have) != tt.want {
			t.Errorf("HMAC = %x, want %s", have, tt.want)
		}
	}
	if _, err := HMAC(sha256.New, []byte("Jefe"), nil, 33); !errors.Is(err, ErrInvalidTagSize) {
		t.Errorf("oversized tag: expected ErrInvalidTagSize, got %v", err)
	}
}

func TestCBCMAC(t *testing.T) {
	key, _ := hex.DecodeString("849b57219dae48de646d07dbb533566e")

	tests := []struct {
		data []byte
		size int
		want string
	}{
		// A single zero block is the encryption of zero under the key
		{make([]byte, 16), 16, "fe34110f406d7a73b79f5fc7c1d310de"},
		// Empty input is padded to one zero block
		{nil, 16, "fe34110f406d7a73b79f5fc7c1d310de"},
		// Short input is zero padded
		{[]byte("abc"), 16, "145cada13ae54c585f8739746c918afa"},
		{[]byte("abc"), 8, "145cada13ae54c58"},
	}
	for i, tt := range tests {
		have, err := CBCMAC(key, tt.data, tt.size)
		if err != nil {
			t.Fatalf("test %d: CBCMAC failed: %v", i, err)
		}
		if hex.EncodeToString(have) != tt.want {
			t.Errorf("test %d: CBCMAC = %x, want %s", i, have, tt.want)
		}
	}
}

func TestCBCMACPadding(t *testing.T) {
	key := make([]byte, 32)

	// Explicit zero padding must not change the result
	a, _ := CBCMAC(key, []byte("0123456789"), 16)
	b, _ := CBCMAC(key, append([]byte("0123456789"), make([]byte, 6)...), 16)
	if !bytes.Equal(a, b) {
		t.Fatalf("padding mismatch: %x != %x", a, b)
	}
}

func TestCBCMACRejects(t *testing.T) {
	if _, err := CBCMAC(make([]byte, 15), []byte("x"), 8); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("short key: expected ErrInvalidKeySize, got %v", err)
	}
	if _, err := CBCMAC(make([]byte, 16), []byte("x"), 17); !errors.Is(err, ErrInvalidTagSize) {
		t.Errorf("long tag: expected ErrInvalidTagSize, got %v", err)
	}
	if _, err := CBCMAC(make([]byte, 16), []byte("x"), 0); !errors.Is(err, ErrInvalidTagSize) {
		t.Errorf("empty tag: expected ErrInvalidTagSize, got %v", err)
	}
}
