// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import "errors"

// Error types for COSE operations
var (
	ErrUnknownAlgorithm       = errors.New("cose: unknown algorithm")
	ErrUnknownParameter       = errors.New("cose: unknown parameter")
	ErrDuplicateParameter     = errors.New("cose: duplicate parameter")
	ErrUnknownKeyType         = errors.New("cose: unknown key type")
	ErrUnknownCurve           = errors.New("cose: unknown curve")
	ErrInvalidKey             = errors.New("cose: invalid key")
	ErrInvalidIV              = errors.New("cose: invalid IV")
	ErrInvalidContext         = errors.New("cose: invalid MAC structure context")
	ErrMissingKey             = errors.New("cose: missing key")
	ErrUnsupportedAlgorithm   = errors.New("cose: unsupported algorithm")
	ErrIncompatibleRecipients = errors.New("cose: incompatible recipients")
	ErrMalformedMessage       = errors.New("cose: malformed message")
	ErrVerificationFailed     = errors.New("cose: verification failed")
)
