// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mac provides the keyed MAC primitives used by COSE_Mac and
// COSE_Mac0: truncatable HMAC and AES-CBC-MAC.
//
// https://datatracker.ietf.org/doc/html/rfc9053#section-3
package mac

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"errors"
	"fmt"
	"hash"
)

// Error types for MAC computations
var (
	ErrInvalidKeySize = errors.New("mac: invalid key size")
	ErrInvalidTagSize = errors.New("mac: invalid tag size")
)

// HMAC computes the HMAC of data over the given hash, truncated to size bytes.
// A size of zero returns the full digest.
func HMAC(h func() hash.Hash, key, data []byte, size int) ([]byte, error) {
	m := hmac.New(h, key)
	if size < 0 || size > m.Size() {
		return nil, fmt.Errorf("%w: %d, max %d", ErrInvalidTagSize, size, m.Size())
	}
	m.Write(data)

	tag := m.Sum(nil)
	if size == 0 {
		return tag, nil
	}
	return tag[:size], nil
}

// CBCMAC computes the AES-CBC-MAC of data with an all-zero IV, truncated to
// size bytes. Data that is not a multiple of the block size is padded with
// zeroes; no length block is appended.
//
// The key must be 16, 24 or 32 bytes, selecting AES-128, AES-192 or AES-256.
func CBCMAC(key, data []byte, size int) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKeySize, len(key))
	}
	if size <= 0 || size > aes.BlockSize {
		return nil, fmt.Errorf("%w: %d, max %d", ErrInvalidTagSize, size, aes.BlockSize)
	}
	padded := len(data)
	if rem := padded % aes.BlockSize; rem != 0 || padded == 0 {
		padded += aes.BlockSize - rem
	}
	buf := make([]byte, padded)
	copy(buf, data)

	cipher.NewCBCEncrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(buf, buf)
	return buf[padded-aes.BlockSize : padded-aes.BlockSize+size], nil
}
