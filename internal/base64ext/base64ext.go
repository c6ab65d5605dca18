// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package base64ext provides strict base64url decoding for JWK-style key
// material that rejects whitespace and padding.
package base64ext

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidCharacter is returned when the input contains whitespace or padding.
var ErrInvalidCharacter = errors.New("base64ext: invalid character")

// DecodeURLString decodes an unpadded base64url string (RFC 7515 Section 2)
// using strict decoding.
func DecodeURLString(s string) ([]byte, error) {
	if strings.ContainsAny(s, "\r\n\t =") {
		return nil, ErrInvalidCharacter
	}
	return base64.RawURLEncoding.Strict().DecodeString(s)
}

// EncodeURLString encodes b as an unpadded base64url string.
func EncodeURLString(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
