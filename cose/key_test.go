// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

func TestKeyTranslate(t *testing.T) {
	secret := bytes.Repeat([]byte{0x42}, 32)
	ed25519X, _ := hex.DecodeString("5866666666666666666666666666666666666666666666666666666666666666")

	tests := []struct {
		key  Key
		want map[int64]any
	}{
		// Symmetric keys put k at -1
		{
			Key{Kty: "Symmetric", K: secret, Kid: "our-secret"},
			map[int64]any{1: int64(4), 2: []byte("our-secret"), -1: secret},
		},
		// JWK spelling of the symmetric key type
		{
			Key{Kty: "oct", K: secret},
			map[int64]any{1: int64(4), -1: secret},
		},
		// Curved keys put crv at -1
		{
			Key{Kty: "OKP", Crv: "Ed25519", X: ed25519X, Alg: "EdDSA"},
			map[int64]any{1: int64(1), 3: int64(-8), -1: int64(6), -2: ed25519X},
		},
		{
			Key{Kty: "EC2", Crv: "P-384", X: make([]byte, 48), Y: make([]byte, 48), D: make([]byte, 48)},
			map[int64]any{1: int64(2), -1: int64(2), -2: make([]byte, 48), -3: make([]byte, 48), -4: make([]byte, 48)},
		},
		// Extension parameters
		{
			Key{Kty: "Symmetric", K: secret, Extra: map[string]any{"key_ops": []any{int64(9)}}},
			map[int64]any{1: int64(4), 4: []any{int64(9)}, -1: secret},
		},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("test %d", i), func(t *testing.T) {
			have, err := tt.key.Translate()
			if err != nil {
				t.Fatalf("failed to translate: %v", err)
			}
			if !reflect.DeepEqual(have, tt.want) {
				t.Fatalf("translation mismatch:\nhave %s\nwant %s", spew.Sdump(have), spew.Sdump(tt.want))
			}
		})
	}
}

func TestKeyTranslateErrors(t *testing.T) {
	// y = 2 has no matching x on edwards25519
	invalidPoint := make([]byte, 32)
	invalidPoint[0] = 2

	tests := []struct {
		key Key
		err error
	}{
		{Key{Kty: "DSA"}, ErrUnknownKeyType},
		{Key{}, ErrUnknownKeyType},
		{Key{Kty: "EC2", Crv: "P-192"}, ErrUnknownCurve},
		{Key{Kty: "RSA", Crv: "bogus"}, ErrUnknownCurve},
		{Key{Kty: "RSA", Crv: "Ed449"}, ErrUnknownCurve},
		{Key{Kty: "EC2", Crv: "X25519"}, ErrInvalidKey},
		{Key{Kty: "OKP", Crv: "P-256"}, ErrInvalidKey},
		{Key{Kty: "EC2", Crv: "P-256", X: make([]byte, 31)}, ErrInvalidKey},
		{Key{Kty: "OKP", Crv: "X448", X: make([]byte, 32)}, ErrInvalidKey},
		{Key{Kty: "OKP", Crv: "Ed25519", X: invalidPoint}, ErrInvalidKey},
		{Key{Kty: "Symmetric"}, ErrInvalidKey},
		{Key{Kty: "Symmetric", K: []byte{1}, Crv: "P-256"}, ErrDuplicateParameter},
		{Key{Kty: "EC2", Crv: "P-256", K: []byte{1}}, ErrDuplicateParameter},
		{Key{Kty: "Symmetric", K: []byte{1}, Alg: "HS000"}, ErrUnknownAlgorithm},
		{Key{Kty: "Symmetric", K: []byte{1}, Extra: map[string]any{"use": "sig"}}, ErrUnknownParameter},
		{Key{Kty: "Symmetric", K: []byte{1}, Extra: map[string]any{"k": []byte{2}}}, ErrDuplicateParameter},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("test %d", i), func(t *testing.T) {
			m, err := tt.key.Translate()
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
			if m != nil {
				t.Fatalf("partial map returned: %v", m)
			}
		})
	}
}

// Tests that keys survive a translate/decode cycle.
func TestKeyDecode(t *testing.T) {
	for _, crv := range []string{"P-256", "P-384", "P-521", "X25519", "X448"} {
		t.Run(crv, func(t *testing.T) {
			key, err := GenerateKey(crv, rand.Reader)
			if err != nil {
				t.Fatalf("failed to generate key: %v", err)
			}
			key.Kid = "peer"

			m, err := key.Translate()
			if err != nil {
				t.Fatalf("failed to translate: %v", err)
			}
			decoded, err := DecodeKey(m)
			if err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if !reflect.DeepEqual(decoded, key) {
				t.Fatalf("key mismatch:\nhave %s\nwant %s", spew.Sdump(decoded), spew.Sdump(key))
			}
			pub := key.Public()
			if pub.D != nil || key.D == nil {
				t.Fatal("Public should only strip the private part")
			}
		})
	}
	secret := SymmetricKey([]byte("0123456789abcdef"))
	m, err := secret.Translate()
	if err != nil {
		t.Fatalf("failed to translate: %v", err)
	}
	decoded, err := DecodeKey(m)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if decoded.Kty != "Symmetric" || !bytes.Equal(decoded.K, secret.K) || decoded.Crv != "" {
		t.Fatalf("symmetric key mismatch: %s", spew.Sdump(decoded))
	}
}

func TestKeyDecodeErrors(t *testing.T) {
	tests := []struct {
		m   map[int64]any
		err error
	}{
		{map[int64]any{}, ErrUnknownKeyType},
		{map[int64]any{1: int64(9)}, ErrUnknownKeyType},
		{map[int64]any{1: int64(2), -1: int64(42)}, ErrUnknownCurve},
		{map[int64]any{1: int64(4), -1: []byte{1}, 99: int64(0)}, ErrUnknownParameter},
		{map[int64]any{1: int64(4), -1: int64(1)}, ErrInvalidKey},
		{map[int64]any{1: int64(2), -1: int64(1), -2: "x"}, ErrInvalidKey},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("test %d", i), func(t *testing.T) {
			if _, err := DecodeKey(tt.m); !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
		})
	}
}

func TestGenerateKeyUnknownCurve(t *testing.T) {
	if _, err := GenerateKey("Ed25519", rand.Reader); !errors.Is(err, ErrUnknownCurve) {
		t.Fatalf("expected ErrUnknownCurve, got %v", err)
	}
}
