// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vectors loads COSE test vectors in the format of the cose-wg
// Examples repository.
//
// https://github.com/cose-wg/Examples
//
// Files are JSON, optionally with comments and trailing commas. Header
// buckets are returned as named parameter maps with integral numbers
// converted to int64; key material is decoded from base64url and message
// bytes from hex.
package vectors

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dark-bio/cose-go/internal/base64ext"
	"github.com/tidwall/jsonc"
)

// Example is a single test vector.
type Example struct {
	Title  string `json:"title"`
	Input  Input  `json:"input"`
	Output Output `json:"output"`

	// Fail marks vectors whose output must not verify.
	Fail bool `json:"fail"`
}

// Input is the input section of a vector. Exactly one of Mac and Mac0 is set
// for MAC vectors.
type Input struct {
	Plaintext string `json:"plaintext"`
	Detached  bool   `json:"detached"`
	Mac       *Layer `json:"mac"`
	Mac0      *Layer `json:"mac0"`
}

// Layer describes the message level headers and its recipients.
type Layer struct {
	Protected   map[string]any `json:"protected"`
	Unprotected map[string]any `json:"unprotected"`
	External    string         `json:"external"`
	Recipients  []Recipient    `json:"recipients"`
}

// Recipient describes one recipient of a vector.
type Recipient struct {
	Key         JWK            `json:"key"`
	Sender      *JWK           `json:"sender_key"`
	Protected   map[string]any `json:"protected"`
	Unprotected map[string]any `json:"unprotected"`
}

// JWK is a key in JSON Web Key form with base64url encoded material.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Crv string `json:"crv"`
	K   string `json:"k"`
	X   string `json:"x"`
	Y   string `json:"y"`
	D   string `json:"d"`
}

// Material is a JWK with its key material decoded.
type Material struct {
	Kty string
	Kid string
	Crv string
	K   []byte
	X   []byte
	Y   []byte
	D   []byte
}

// Output is the expected encoding of the message, in hex.
type Output struct {
	CBOR string `json:"cbor"`
}

// Parse decodes a vector, tolerating comments and trailing commas.
func Parse(data []byte) (*Example, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.UseNumber()

	var ex Example
	if err := dec.Decode(&ex); err != nil {
		return nil, fmt.Errorf("parsing vector: %w", err)
	}
	for _, layer := range []*Layer{ex.Input.Mac, ex.Input.Mac0} {
		if layer == nil {
			continue
		}
		if err := layer.normalize(); err != nil {
			return nil, err
		}
	}
	return &ex, nil
}

// ReadFile reads and parses a vector file.
func ReadFile(path string) (*Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	ex, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ex, nil
}

// Layer returns the MAC layer of the vector and whether it is a COSE_Mac0.
func (ex *Example) Layer() (*Layer, bool, error) {
	switch {
	case ex.Input.Mac != nil:
		return ex.Input.Mac, false, nil
	case ex.Input.Mac0 != nil:
		return ex.Input.Mac0, true, nil
	default:
		return nil, false, fmt.Errorf("vector %q has no MAC layer", ex.Title)
	}
}

// ExternalAAD returns the decoded external data of the layer.
func (l *Layer) ExternalAAD() ([]byte, error) {
	return hex.DecodeString(l.External)
}

// Bytes returns the decoded expected output.
func (o Output) Bytes() ([]byte, error) {
	return hex.DecodeString(o.CBOR)
}

// Material decodes the key material of the JWK.
func (k JWK) Material() (*Material, error) {
	m := &Material{Kty: k.Kty, Kid: k.Kid, Crv: k.Crv}
	for _, field := range []struct {
		name string
		in   string
		out  *[]byte
	}{
		{"k", k.K, &m.K},
		{"x", k.X, &m.X},
		{"y", k.Y, &m.Y},
		{"d", k.D, &m.D},
	} {
		if field.in == "" {
			continue
		}
		b, err := base64ext.DecodeURLString(field.in)
		if err != nil {
			return nil, fmt.Errorf("key %q field %s: %w", k.Kid, field.name, err)
		}
		*field.out = b
	}
	return m, nil
}

func (l *Layer) normalize() error {
	buckets := []map[string]any{l.Protected, l.Unprotected}
	for _, r := range l.Recipients {
		buckets = append(buckets, r.Protected, r.Unprotected)
	}
	for _, bucket := range buckets {
		for name, value := range bucket {
			v, err := normalize(value)
			if err != nil {
				return fmt.Errorf("header %q: %w", name, err)
			}
			bucket[name] = v
		}
	}
	return nil
}

// normalize converts JSON numbers to int64 throughout a decoded value.
func normalize(v any) (any, error) {
	switch v := v.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integral number %s", v)
		}
		return n, nil
	case []any:
		for i := range v {
			n, err := normalize(v[i])
			if err != nil {
				return nil, err
			}
			v[i] = n
		}
		return v, nil
	case map[string]any:
		for k := range v {
			n, err := normalize(v[k])
			if err != nil {
				return nil, err
			}
			v[k] = n
		}
		return v, nil
	default:
		return v, nil
	}
}
