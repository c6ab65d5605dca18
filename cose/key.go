// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"filippo.io/edwards25519"
	"github.com/dark-bio/cose-go/agree"
)

// Key is a COSE_Key in its named form. Kty and Crv hold registered names;
// the byte fields hold raw key material.
//
//	COSE_Key = {
//	    1 => tstr / int,     ; kty
//	    ? 2 => bstr,         ; kid
//	    ? 3 => tstr / int,   ; alg
//	    -1 => int / bstr,    ; crv (EC2, OKP) or k (Symmetric)
//	    ? -2 => bstr,        ; x
//	    ? -3 => bstr,        ; y
//	    ? -4 => bstr,        ; d
//	}
type Key struct {
	Kty string
	Crv string
	K   []byte
	X   []byte
	Y   []byte
	D   []byte
	Kid string
	Alg string

	// Extra holds registered key parameters without a typed field.
	Extra map[string]any
}

// Key type identifiers. The JWK spellings are accepted as input aliases.
var keyTypes = map[string]int64{
	"OKP":       1,
	"EC2":       2,
	"EC":        2,
	"RSA":       3,
	"Symmetric": 4,
	"oct":       4,
}

var keyTypeNames = map[int64]string{
	1: "OKP",
	2: "EC2",
	3: "RSA",
	4: "Symmetric",
}

// Elliptic curve identifiers.
var keyCurves = map[string]int64{
	"P-256":   1,
	"P-384":   2,
	"P-521":   3,
	"X25519":  4,
	"X448":    5,
	"Ed25519": 6,
	"Ed448":   7,
}

var keyCurveNames = map[int64]string{
	1: "P-256",
	2: "P-384",
	3: "P-521",
	4: "X25519",
	5: "X448",
	6: "Ed25519",
	7: "Ed448",
}

// Key parameter identifiers. Crv and k share -1 and are told apart by kty.
var keyParameters = map[string]int64{
	"kty":     1,
	"kid":     2,
	"alg":     3,
	"key_ops": 4,
	"Base IV": 5,
	"crv":     -1,
	"k":       -1,
	"x":       -2,
	"y":       -3,
	"d":       -4,
}

// keyCurveSizes is the coordinate (and private scalar) size for each curve.
var keyCurveSizes = map[string]int{
	"P-256":   32,
	"P-384":   48,
	"P-521":   66,
	"X25519":  32,
	"X448":    56,
	"Ed25519": 32,
	"Ed448":   57,
}

// agreementCurves maps the curves usable for ECDH onto their implementation.
var agreementCurves = map[string]agree.Curve{
	"P-256":  agree.P256,
	"P-384":  agree.P384,
	"P-521":  agree.P521,
	"X25519": agree.X25519,
	"X448":   agree.X448,
}

// SymmetricKey wraps raw secret bytes into a symmetric COSE key.
func SymmetricKey(k []byte) *Key {
	return &Key{Kty: "Symmetric", K: k}
}

// GenerateKey creates a random key agreement key on the named curve.
func GenerateKey(crv string, rand io.Reader) (*Key, error) {
	curve, ok := agreementCurves[crv]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCurve, crv)
	}
	priv, err := agree.GenerateKey(curve, rand)
	if err != nil {
		return nil, err
	}
	key := newAgreementKey(priv.PublicKey())
	key.D = priv.Bytes()
	return key, nil
}

// Public returns a copy of the key without its private part.
func (k *Key) Public() *Key {
	pub := *k
	pub.D = nil
	pub.Extra = maps.Clone(k.Extra)
	return &pub
}

// keyType returns the canonical key type name.
func (k *Key) keyType() (string, error) {
	id, ok := keyTypes[k.Kty]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKeyType, k.Kty)
	}
	return keyTypeNames[id], nil
}

// Validate checks that the key type and curve are registered and that the
// key material has the right shape for them.
func (k *Key) Validate() error {
	kty, err := k.keyType()
	if err != nil {
		return err
	}
	switch kty {
	case "Symmetric":
		if k.Crv != "" {
			return fmt.Errorf("%w: crv and k both map to -1", ErrDuplicateParameter)
		}
		if len(k.K) == 0 {
			return fmt.Errorf("%w: symmetric key without k", ErrInvalidKey)
		}
		return nil

	case "EC2", "OKP":
		if len(k.K) != 0 {
			return fmt.Errorf("%w: crv and k both map to -1", ErrDuplicateParameter)
		}
		if _, ok := keyCurves[k.Crv]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownCurve, k.Crv)
		}
		okp := k.Crv == "X25519" || k.Crv == "X448" || k.Crv == "Ed25519" || k.Crv == "Ed448"
		if okp != (kty == "OKP") {
			return fmt.Errorf("%w: curve %s is not usable with key type %s", ErrInvalidKey, k.Crv, kty)
		}
		size := keyCurveSizes[k.Crv]
		if k.X != nil && len(k.X) != size {
			return fmt.Errorf("%w: %s x of %d bytes, want %d", ErrInvalidKey, k.Crv, len(k.X), size)
		}
		if kty == "EC2" && k.Y != nil && len(k.Y) != size {
			return fmt.Errorf("%w: %s y of %d bytes, want %d", ErrInvalidKey, k.Crv, len(k.Y), size)
		}
		if kty == "OKP" && k.Y != nil {
			return fmt.Errorf("%w: %s key has a y coordinate", ErrInvalidKey, k.Crv)
		}
		if k.D != nil && len(k.D) != size {
			return fmt.Errorf("%w: %s d of %d bytes, want %d", ErrInvalidKey, k.Crv, len(k.D), size)
		}
		if k.Crv == "Ed25519" && k.X != nil {
			if _, err := new(edwards25519.Point).SetBytes(k.X); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidKey, err)
			}
		}
		return nil

	default:
		if k.Crv != "" {
			if _, ok := keyCurves[k.Crv]; !ok {
				return fmt.Errorf("%w: %q", ErrUnknownCurve, k.Crv)
			}
		}
		return nil
	}
}

// Translate converts the key into its integer-keyed wire map. Unknown
// parameters, key types and curves are rejected and no partial map is
// returned on failure.
func (k *Key) Translate() (map[int64]any, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	kty, _ := k.keyType()

	out := map[int64]any{1: keyTypes[kty]}
	if k.Kid != "" {
		out[2] = []byte(k.Kid)
	}
	if k.Alg != "" {
		alg, err := ParseAlgorithm(k.Alg)
		if err != nil {
			return nil, err
		}
		out[3] = alg.tag
	}
	if kty == "Symmetric" {
		out[-1] = k.K
	} else if k.Crv != "" {
		crv, ok := keyCurves[k.Crv]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCurve, k.Crv)
		}
		out[-1] = crv
	}
	for id, value := range map[int64][]byte{-2: k.X, -3: k.Y, -4: k.D} {
		if value != nil {
			out[id] = value
		}
	}
	for _, name := range slices.Sorted(maps.Keys(k.Extra)) {
		id, ok := keyParameters[name]
		if !ok {
			return nil, fmt.Errorf("%w: key parameter %q", ErrUnknownParameter, name)
		}
		if k.Extra[name] == nil {
			continue
		}
		if _, ok := out[id]; ok {
			return nil, fmt.Errorf("%w: key parameter %q", ErrDuplicateParameter, name)
		}
		out[id] = k.Extra[name]
	}
	return out, nil
}

// DecodeKey converts an integer-keyed wire map back into a named key.
func DecodeKey(m map[int64]any) (*Key, error) {
	key := new(Key)

	switch kty := m[1].(type) {
	case int64:
		name, ok := keyTypeNames[kty]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownKeyType, kty)
		}
		key.Kty = name
	case string:
		key.Kty = kty
	default:
		return nil, fmt.Errorf("%w: missing kty", ErrUnknownKeyType)
	}
	kty, err := key.keyType()
	if err != nil {
		return nil, err
	}
	for id, value := range m {
		var ok bool
		switch id {
		case 1:
			ok = true
		case 2:
			var kid []byte
			kid, ok = value.([]byte)
			key.Kid = string(kid)
		case 3:
			var tag int64
			if tag, ok = value.(int64); ok {
				key.Alg, err = AlgorithmName(tag)
				if err != nil {
					return nil, err
				}
			}
		case 4:
			ok = true
			key.setExtra("key_ops", value)
		case 5:
			ok = true
			key.setExtra("Base IV", value)
		case -1:
			if kty == "Symmetric" {
				key.K, ok = value.([]byte)
				break
			}
			var crv int64
			if crv, ok = value.(int64); ok {
				if key.Crv, ok = keyCurveNames[crv]; !ok {
					return nil, fmt.Errorf("%w: %d", ErrUnknownCurve, crv)
				}
			}
		case -2:
			key.X, ok = value.([]byte)
		case -3:
			key.Y, ok = value.([]byte)
		case -4:
			key.D, ok = value.([]byte)
		default:
			return nil, fmt.Errorf("%w: key label %d", ErrUnknownParameter, id)
		}
		if !ok {
			return nil, fmt.Errorf("%w: key label %d has type %T", ErrInvalidKey, id, value)
		}
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return key, nil
}

func (k *Key) setExtra(name string, value any) {
	if k.Extra == nil {
		k.Extra = make(map[string]any)
	}
	k.Extra[name] = value
}

// agreementCurve returns the ECDH curve of the key.
func (k *Key) agreementCurve() (agree.Curve, error) {
	if err := k.Validate(); err != nil {
		return 0, err
	}
	curve, ok := agreementCurves[k.Crv]
	if !ok {
		return 0, fmt.Errorf("%w: curve %q is not usable for key agreement", ErrInvalidKey, k.Crv)
	}
	return curve, nil
}

// publicKey returns the ECDH public key held in the x and y coordinates.
func (k *Key) publicKey() (*agree.PublicKey, error) {
	curve, err := k.agreementCurve()
	if err != nil {
		return nil, err
	}
	pub, err := agree.NewPublicKey(curve, k.X, k.Y)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return pub, nil
}

// privateKey returns the ECDH private key held in d.
func (k *Key) privateKey() (*agree.PrivateKey, error) {
	curve, err := k.agreementCurve()
	if err != nil {
		return nil, err
	}
	if len(k.D) == 0 {
		return nil, fmt.Errorf("%w: no private key", ErrMissingKey)
	}
	priv, err := agree.NewPrivateKey(curve, k.D)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return priv, nil
}

// newAgreementKey converts an ECDH public key into a COSE key.
func newAgreementKey(pub *agree.PublicKey) *Key {
	kty := "EC2"
	if pub.Curve().Montgomery() {
		kty = "OKP"
	}
	x, y := pub.Coordinates()
	return &Key{Kty: kty, Crv: pub.Curve().String(), X: x, Y: y}
}

// decodeKeyValue converts a decoded header value holding a COSE_Key.
func decodeKeyValue(v any) (*Key, error) {
	m, ok := labelMap(v)
	if !ok {
		return nil, fmt.Errorf("%w: key is %T, not a map", ErrInvalidKey, v)
	}
	return DecodeKey(m)
}
