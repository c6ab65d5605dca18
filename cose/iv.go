// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import "fmt"

// XOR combines two byte strings right-aligned. The result is as long as the
// longer input and the shorter one is zero-extended on its most significant
// side.
func XOR(a, b []byte) []byte {
	out := make([]byte, max(len(a), len(b)))
	for i := 1; i <= len(out); i++ {
		var av, bv byte
		if i <= len(a) {
			av = a[len(a)-i]
		}
		if i <= len(b) {
			bv = b[len(b)-i]
		}
		out[len(out)-i] = av ^ bv
	}
	return out
}

// FullIV expands a Partial IV against a context's base IV per RFC 9052
// Section 3.1: the partial IV is left-padded to the base IV length and the two
// are XORed.
func FullIV(baseIV, partialIV []byte) ([]byte, error) {
	if len(partialIV) > len(baseIV) {
		return nil, fmt.Errorf("%w: partial IV of %d bytes exceeds base IV of %d", ErrInvalidIV, len(partialIV), len(baseIV))
	}
	return XOR(baseIV, partialIV), nil
}
