// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"

	"github.com/dark-bio/cose-go/mac"
)

// Provider computes keyed MACs on behalf of the engine.
type Provider interface {
	ComputeMac(alg Algorithm, key, data []byte) ([]byte, error)
}

// DefaultProvider implements the HMAC and AES-CBC-MAC algorithms of the
// catalog.
type DefaultProvider struct{}

// ComputeMac implements Provider.
func (DefaultProvider) ComputeMac(alg Algorithm, key, data []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrMissingKey
	}
	var (
		tag []byte
		err error
	)
	switch alg.tag {
	case AlgorithmHS256Trunc64:
		tag, err = mac.HMAC(sha256.New, key, data, 8)
	case AlgorithmHS256:
		tag, err = mac.HMAC(sha256.New, key, data, 0)
	case AlgorithmHS384:
		tag, err = mac.HMAC(sha512.New384, key, data, 0)
	case AlgorithmHS512:
		tag, err = mac.HMAC(sha512.New, key, data, 0)
	case AlgorithmAESMAC128Trunc64, AlgorithmAESMAC256Trunc64, AlgorithmAESMAC128, AlgorithmAESMAC256:
		if len(key) != alg.keySize {
			return nil, fmt.Errorf("%w: %s needs %d bytes, have %d", ErrInvalidKey, alg, alg.keySize, len(key))
		}
		size := 8
		if alg.tag == AlgorithmAESMAC128 || alg.tag == AlgorithmAESMAC256 {
			size = 16
		}
		tag, err = mac.CBCMAC(key, data, size)
	default:
		return nil, fmt.Errorf("%w: %s is not a MAC algorithm", ErrUnsupportedAlgorithm, alg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return tag, nil
}
