// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package keywrap implements the AES Key Wrap algorithm used by the COSE
// A128KW, A192KW and A256KW recipient algorithms.
//
// https://datatracker.ietf.org/doc/html/rfc3394
package keywrap

import (
	"crypto/aes"
	"errors"
	"fmt"

	josecipher "gopkg.in/square/go-jose.v2/cipher"
)

// Error types for key wrapping failures
var (
	ErrInvalidKeySize  = errors.New("keywrap: invalid key encryption key size")
	ErrInvalidDataSize = errors.New("keywrap: invalid key data size")
	ErrUnwrapFailed    = errors.New("keywrap: integrity check failed")
)

// Wrap encrypts the key data with the key encryption key. The data must be a
// multiple of 8 bytes and at least 16 bytes long; the result is 8 bytes longer.
func Wrap(kek, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKeySize, len(kek))
	}
	if len(data) < 16 || len(data)%8 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidDataSize, len(data))
	}
	wrapped, err := josecipher.KeyWrap(block, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataSize, err)
	}
	return wrapped, nil
}

// Unwrap decrypts wrapped key data with the key encryption key and checks
// its integrity.
func Unwrap(kek, wrapped []byte) ([]byte, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKeySize, len(kek))
	}
	if len(wrapped) < 24 || len(wrapped)%8 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidDataSize, len(wrapped))
	}
	data, err := josecipher.KeyUnwrap(block, wrapped)
	if err != nil {
		return nil, ErrUnwrapFailed
	}
	return data, nil
}
