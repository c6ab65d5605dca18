// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import "fmt"

// Kind is the family an algorithm belongs to.
type Kind int

// Algorithm families known to the catalog.
const (
	KindMAC Kind = iota + 1
	KindAEAD
	KindSignature
	KindKeyAgreement
	KindKeyWrap
	KindDirect
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindMAC:
		return "MAC"
	case KindAEAD:
		return "AEAD"
	case KindSignature:
		return "signature"
	case KindKeyAgreement:
		return "key agreement"
	case KindKeyWrap:
		return "key wrap"
	case KindDirect:
		return "direct"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Algorithm identifiers used by the MAC layer.
const (
	AlgorithmECDHSS512 = -28
	AlgorithmECDHSS    = -27
	AlgorithmECDHES512 = -26
	AlgorithmECDHES    = -25
	AlgorithmDirect    = -6
	AlgorithmA256KW    = -5
	AlgorithmA192KW    = -4
	AlgorithmA128KW    = -3

	AlgorithmHS256Trunc64     = 4
	AlgorithmHS256            = 5
	AlgorithmHS384            = 6
	AlgorithmHS512            = 7
	AlgorithmAESMAC128Trunc64 = 14
	AlgorithmAESMAC256Trunc64 = 15
	AlgorithmAESMAC128        = 25
	AlgorithmAESMAC256        = 26
)

// Algorithm is an entry of the algorithm catalog. The zero value is not a
// valid algorithm.
type Algorithm struct {
	name    string // canonical name, first registered for the tag
	tag     int64
	kind    Kind
	keySize int
}

// Tag returns the COSE integer identifier of the algorithm.
func (a Algorithm) Tag() int64 { return a.tag }

// Kind returns the family of the algorithm.
func (a Algorithm) Kind() Kind { return a.kind }

// KeySize returns the key length in bytes the algorithm operates on, or zero
// if it has no fixed symmetric key.
func (a Algorithm) KeySize() int { return a.keySize }

// String returns the canonical name of the algorithm.
func (a Algorithm) String() string { return a.name }

// algorithmTable is the ordered catalog. Several names may share a tag; the
// first one listed is the canonical name returned by reverse lookups.
var algorithmTable = []struct {
	name    string
	tag     int64
	kind    Kind
	keySize int
}{
	{"RS512", -259, KindSignature, 0},
	{"RS384", -258, KindSignature, 0},
	{"RS256", -257, KindSignature, 0},
	{"ES512", -36, KindSignature, 0},
	{"ES384", -35, KindSignature, 0},
	{"ECDH-SS-512", AlgorithmECDHSS512, KindKeyAgreement, 0},
	{"ECDH-SS + HKDF-512", AlgorithmECDHSS512, KindKeyAgreement, 0},
	{"ECDH-SS", AlgorithmECDHSS, KindKeyAgreement, 0},
	{"ECDH-SS + HKDF-256", AlgorithmECDHSS, KindKeyAgreement, 0},
	{"ECDH-ES-512", AlgorithmECDHES512, KindKeyAgreement, 0},
	{"ECDH-ES + HKDF-512", AlgorithmECDHES512, KindKeyAgreement, 0},
	{"ECDH-ES", AlgorithmECDHES, KindKeyAgreement, 0},
	{"ECDH-ES + HKDF-256", AlgorithmECDHES, KindKeyAgreement, 0},
	{"EdDSA", -8, KindSignature, 0},
	{"ES256", -7, KindSignature, 0},
	{"direct", AlgorithmDirect, KindDirect, 0},
	{"A256KW", AlgorithmA256KW, KindKeyWrap, 32},
	{"A192KW", AlgorithmA192KW, KindKeyWrap, 24},
	{"A128KW", AlgorithmA128KW, KindKeyWrap, 16},
	{"A128GCM", 1, KindAEAD, 16},
	{"A192GCM", 2, KindAEAD, 24},
	{"A256GCM", 3, KindAEAD, 32},
	{"HS256/64", AlgorithmHS256Trunc64, KindMAC, 32},
	{"SHA-256_64", AlgorithmHS256Trunc64, KindMAC, 32},
	{"SHA-256-64", AlgorithmHS256Trunc64, KindMAC, 32},
	{"HS256", AlgorithmHS256, KindMAC, 32},
	{"SHA-256", AlgorithmHS256, KindMAC, 32},
	{"HS384", AlgorithmHS384, KindMAC, 48},
	{"SHA-384", AlgorithmHS384, KindMAC, 48},
	{"HS512", AlgorithmHS512, KindMAC, 64},
	{"SHA-512", AlgorithmHS512, KindMAC, 64},
	{"AES-CCM-16-64-128", 10, KindAEAD, 16},
	{"AES-CCM-16-128/64", 10, KindAEAD, 16},
	{"AES-CCM-16-64-256", 11, KindAEAD, 32},
	{"AES-CCM-16-256/64", 11, KindAEAD, 32},
	{"AES-CCM-64-64-128", 12, KindAEAD, 16},
	{"AES-CCM-64-128/64", 12, KindAEAD, 16},
	{"AES-CCM-64-64-256", 13, KindAEAD, 32},
	{"AES-CCM-64-256/64", 13, KindAEAD, 32},
	{"AES-MAC-128/64", AlgorithmAESMAC128Trunc64, KindMAC, 16},
	{"AES-MAC-256/64", AlgorithmAESMAC256Trunc64, KindMAC, 32},
	{"AES-MAC-128/128", AlgorithmAESMAC128, KindMAC, 16},
	{"AES-MAC-256/128", AlgorithmAESMAC256, KindMAC, 32},
	{"AES-CCM-16-128-128", 30, KindAEAD, 16},
	{"AES-CCM-16-128/128", 30, KindAEAD, 16},
	{"AES-CCM-16-128-256", 31, KindAEAD, 32},
	{"AES-CCM-16-256/128", 31, KindAEAD, 32},
	{"AES-CCM-64-128-128", 32, KindAEAD, 16},
	{"AES-CCM-64-128/128", 32, KindAEAD, 16},
	{"AES-CCM-64-128-256", 33, KindAEAD, 32},
	{"AES-CCM-64-256/128", 33, KindAEAD, 32},
}

var (
	algorithmsByName = make(map[string]Algorithm)
	algorithmsByTag  = make(map[int64]Algorithm)
)

func init() {
	for _, entry := range algorithmTable {
		if _, ok := algorithmsByName[entry.name]; ok {
			panic("cose: duplicate algorithm name " + entry.name)
		}
		canonical, ok := algorithmsByTag[entry.tag]
		if !ok {
			canonical = Algorithm{name: entry.name, tag: entry.tag, kind: entry.kind, keySize: entry.keySize}
			algorithmsByTag[entry.tag] = canonical
		}
		algorithmsByName[entry.name] = canonical
	}
}

// ParseAlgorithm resolves an algorithm name or alias to its catalog entry.
func ParseAlgorithm(name string) (Algorithm, error) {
	alg, ok := algorithmsByName[name]
	if !ok {
		return Algorithm{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return alg, nil
}

// LookupAlgorithm resolves a COSE integer identifier to its catalog entry.
func LookupAlgorithm(tag int64) (Algorithm, error) {
	alg, ok := algorithmsByTag[tag]
	if !ok {
		return Algorithm{}, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, tag)
	}
	return alg, nil
}

// AlgorithmName returns the canonical name registered for a tag.
func AlgorithmName(tag int64) (string, error) {
	alg, err := LookupAlgorithm(tag)
	if err != nil {
		return "", err
	}
	return alg.name, nil
}

// AlgorithmTag returns the tag registered for an algorithm name or alias.
func AlgorithmTag(name string) (int64, error) {
	alg, err := ParseAlgorithm(name)
	if err != nil {
		return 0, err
	}
	return alg.tag, nil
}

// Algorithms returns every registered name in registration order, aliases
// included.
func Algorithms() []string {
	names := make([]string, len(algorithmTable))
	for i, entry := range algorithmTable {
		names[i] = entry.name
	}
	return names
}
