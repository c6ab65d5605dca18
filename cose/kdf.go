// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"github.com/dark-bio/cose-go/cbor"
	"github.com/dark-bio/cose-go/hkdf"
)

// partyInfo is the PartyUInfo or PartyVInfo of a COSE_KDF_Context.
//
//	PartyInfo = (
//	    identity: bstr / nil,
//	    nonce:    bstr / int / nil,
//	    other:    bstr / nil
//	)
type partyInfo struct {
	_        struct{} `cbor:",toarray"`
	Identity any
	Nonce    any
	Other    any
}

// suppPubInfo is the SuppPubInfo of a COSE_KDF_Context.
//
//	SuppPubInfo = [
//	    keyDataLength: uint,
//	    protected:     empty_or_serialized_map
//	]
type suppPubInfo struct {
	_             struct{} `cbor:",toarray"`
	KeyDataLength uint64
	Protected     []byte
}

// kdfContext is the COSE_KDF_Context per RFC 9053 Section 5.2. It binds the
// derived key to the content algorithm and the recipient's protected header.
//
//	COSE_KDF_Context = [
//	    AlgorithmID: int / tstr,
//	    PartyUInfo:  [ PartyInfo ],
//	    PartyVInfo:  [ PartyInfo ],
//	    SuppPubInfo: SuppPubInfo
//	]
type kdfContext struct {
	_           struct{} `cbor:",toarray"`
	AlgorithmID int64
	PartyUInfo  partyInfo
	PartyVInfo  partyInfo
	SuppPubInfo suppPubInfo
}

// deriveKey runs HKDF over an ECDH shared secret to produce the content key
// for alg. The hash is chosen by the key agreement algorithm.
func deriveKey(agreement, alg Algorithm, secret, nonce, protected []byte) []byte {
	info, err := marshalKDFContext(alg, nonce, protected)
	if err != nil {
		panic(err) // cannot fail, be loud if it does
	}
	switch agreement.tag {
	case AlgorithmECDHES512, AlgorithmECDHSS512:
		return hkdf.SHA512(secret, nil, info, alg.keySize)
	default:
		return hkdf.SHA256(secret, nil, info, alg.keySize)
	}
}

// marshalKDFContext encodes the context for a key of alg, bound to the party U
// nonce (nil if none) and the recipient's protected header bytes.
func marshalKDFContext(alg Algorithm, nonce, protected []byte) ([]byte, error) {
	return cbor.Marshal(&kdfContext{
		AlgorithmID: alg.tag,
		PartyUInfo:  partyInfo{Nonce: nullable(nonce)},
		SuppPubInfo: suppPubInfo{
			KeyDataLength: uint64(alg.keySize) * 8,
			Protected:     protected,
		},
	})
}

// nullable turns a nil byte slice into an untyped nil so that it encodes as
// CBOR null instead of an empty byte string.
func nullable(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}
