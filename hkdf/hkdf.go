// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hkdf provides the HKDF key derivation used by the COSE direct key
// agreement algorithms (HKDF-SHA-256 and HKDF-SHA-512).
//
// https://datatracker.ietf.org/doc/html/rfc5869
// https://datatracker.ietf.org/doc/html/rfc8152#section-11.1
package hkdf

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Key derives a key of length n from the secret, salt, and info using HKDF
// over the given hash. The salt and info may be nil or empty.
//
// Panics if n exceeds the maximum output length of the hash, which is 255
// times its digest size.
func Key(h func() hash.Hash, secret, salt, info []byte, n int) []byte {
	r := hkdf.New(h, secret, salt, info)
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		panic("hkdf: " + err.Error())
	}
	return out
}

// SHA256 derives a key of length n using HKDF-SHA-256.
func SHA256(secret, salt, info []byte, n int) []byte {
	return Key(sha256.New, secret, salt, info, n)
}

// SHA512 derives a key of length n using HKDF-SHA-512.
func SHA512(secret, salt, info []byte, n int) []byte {
	return Key(sha512.New, secret, salt, info, n)
}
