// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"testing"

	"github.com/dark-bio/cose-go/cbor"
	"github.com/davecgh/go-spew/spew"
	gocose "github.com/veraison/go-cose"
)

func TestHeaderTranslate(t *testing.T) {
	tests := []struct {
		header Header
		want   HeaderMap
	}{
		// Empty header
		{Header{}, HeaderMap{}},
		// Algorithm names become tags, key ids become bytes
		{
			Header{Alg: "HS256", Kid: "our-secret"},
			HeaderMap{1: int64(5), 4: []byte("our-secret")},
		},
		// Aliases resolve to the same tag
		{
			Header{Alg: "SHA-256_64"},
			HeaderMap{1: int64(4)},
		},
		// Values without a transform pass through
		{
			Header{Crit: []int64{1}, ContentType: "text/plain", IV: []byte{1, 2}, PartialIV: []byte{3}},
			HeaderMap{2: []int64{1}, 3: "text/plain", 5: []byte{1, 2}, 6: []byte{3}},
		},
		// Extension slot by registered name
		{
			Header{Extra: map[string]any{"ctyp": int64(0), "kid": []byte{0xff}}},
			HeaderMap{3: int64(0), 4: []byte{0xff}},
		},
		// Key agreement parameters
		{
			Header{StaticKeyID: []byte("peer"), PartyUNonce: []byte{9}},
			HeaderMap{-3: []byte("peer"), -22: []byte{9}},
		},
		// Nil extension values are omitted, empty but non-nil bytes are kept
		{
			Header{IV: []byte{}, Extra: map[string]any{"Partial_IV": nil}},
			HeaderMap{5: []byte{}},
		},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("test %d", i), func(t *testing.T) {
			have, err := tt.header.Translate()
			if err != nil {
				t.Fatalf("failed to translate: %v", err)
			}
			if !reflect.DeepEqual(have, tt.want) {
				t.Fatalf("translation mismatch:\nhave %s\nwant %s", spew.Sdump(have), spew.Sdump(tt.want))
			}
		})
	}
}

func TestHeaderTranslateErrors(t *testing.T) {
	tests := []struct {
		header Header
		err    error
	}{
		{Header{Alg: "HS000"}, ErrUnknownAlgorithm},
		{Header{Extra: map[string]any{"bogus": 1}}, ErrUnknownParameter},
		{Header{ContentType: "a", Extra: map[string]any{"ctyp": "b"}}, ErrDuplicateParameter},
		{Header{Extra: map[string]any{"content_type": "a", "ctyp": "b"}}, ErrDuplicateParameter},
		{Header{Kid: "a", Extra: map[string]any{"kid": "b"}}, ErrDuplicateParameter},
		{Header{Extra: map[string]any{"kid": 1}}, ErrUnknownParameter},
		{Header{EphemeralKey: &Key{Kty: "bogus"}}, ErrUnknownKeyType},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("test %d", i), func(t *testing.T) {
			m, err := tt.header.Translate()
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
			if m != nil {
				t.Fatalf("partial map returned: %v", m)
			}
		})
	}
}

// Tests that translated headers survive an encode/decode cycle.
func TestHeaderEncodeDecode(t *testing.T) {
	eph := &Key{Kty: "OKP", Crv: "X25519", X: bytes.Repeat([]byte{9}, 32)}

	h := Header{
		Alg:          "ECDH-ES",
		Kid:          "11",
		Crit:         []int64{-1},
		EphemeralKey: eph,
		PartyUNonce:  []byte{1, 2, 3},
		Extra:        map[string]any{"counter_signature": []byte{7}},
	}
	m, err := h.Translate()
	if err != nil {
		t.Fatalf("failed to translate: %v", err)
	}
	data, err := EncodeProtected(m)
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	if err := cbor.Canonical(data); err != nil {
		t.Fatalf("encoding is not canonical: %v", err)
	}
	decoded, err := decodeProtected(data)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !slices.Equal(decoded.Keys(), m.Keys()) {
		t.Fatalf("label mismatch: have %v, want %v", decoded.Keys(), m.Keys())
	}
	alg, ok, err := decoded.Algorithm()
	if err != nil || !ok || alg.String() != "ECDH-ES" {
		t.Fatalf("algorithm mismatch: %v %v %v", alg, ok, err)
	}
	if kid, _ := decoded.Bytes(HeaderKeyID); string(kid) != "11" {
		t.Fatalf("kid mismatch: %q", kid)
	}
	key, err := decodeKeyValue(decoded[HeaderEphemeralKey])
	if err != nil {
		t.Fatalf("failed to decode ephemeral key: %v", err)
	}
	if key.Crv != "X25519" || !bytes.Equal(key.X, eph.X) {
		t.Fatalf("ephemeral key mismatch: %s", spew.Sdump(key))
	}
}

func TestHeaderMapKeys(t *testing.T) {
	m := HeaderMap{-22: nil, 4: nil, -1: nil, 1: nil, 24: nil, -3: nil, 7: nil}
	want := []int64{1, 4, 7, 24, -1, -3, -22}
	if have := m.Keys(); !slices.Equal(have, want) {
		t.Fatalf("key order mismatch: have %v, want %v", have, want)
	}
}

func TestEncodeProtectedEmpty(t *testing.T) {
	data, err := EncodeProtected(HeaderMap{})
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	if data == nil || len(data) != 0 {
		t.Fatalf("empty bucket should encode as zero bytes, have %x", data)
	}
}

// Tests that the protected header bytes match an independent implementation.
func TestProtectedInterop(t *testing.T) {
	ours, err := (&Header{Alg: "ES256", Kid: "11"}).Translate()
	if err != nil {
		t.Fatalf("failed to translate: %v", err)
	}
	data, err := EncodeProtected(ours)
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	theirs := gocose.ProtectedHeader{
		gocose.HeaderLabelAlgorithm: gocose.AlgorithmES256,
		gocose.HeaderLabelKeyID:     []byte("11"),
	}
	wrapped, err := theirs.MarshalCBOR()
	if err != nil {
		t.Fatalf("failed to encode with go-cose: %v", err)
	}
	var want []byte
	if err := cbor.Unmarshal(wrapped, &want); err != nil {
		t.Fatalf("failed to unwrap go-cose header: %v", err)
	}
	if !bytes.Equal(data, want) {
		t.Fatalf("protected header mismatch: have %x, want %x", data, want)
	}
	if hex.EncodeToString(data) != "a2012604423131" {
		t.Fatalf("protected header mismatch: have %x", data)
	}
}

func TestTranslateHeader(t *testing.T) {
	m, err := TranslateHeader(map[string]any{"alg": "HS512", "kid": "k"})
	if err != nil {
		t.Fatalf("failed to translate: %v", err)
	}
	if m[HeaderAlgorithm] != int64(7) || !bytes.Equal(m[HeaderKeyID].([]byte), []byte("k")) {
		t.Fatalf("translation mismatch: %v", m)
	}
}
