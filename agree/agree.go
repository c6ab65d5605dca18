// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package agree implements the elliptic curve Diffie-Hellman key agreement
// used by the COSE ECDH-ES and ECDH-SS recipient algorithms.
//
// https://datatracker.ietf.org/doc/html/rfc9053#section-6.3
//
// The NIST curves and X25519 are backed by crypto/ecdh, X448 by circl. Keys
// carry their curve and agreement between keys on different curves fails.
package agree

import (
	"bytes"
	"crypto/ecdh"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/dh/x448"
)

// Error types for key agreement failures
var (
	ErrUnknownCurve  = errors.New("agree: unknown curve")
	ErrInvalidKey    = errors.New("agree: invalid key")
	ErrCurveMismatch = errors.New("agree: curve mismatch")
	ErrLowOrderPoint = errors.New("agree: low order point")
)

// Curve identifies a key agreement curve.
type Curve int

// Supported key agreement curves.
const (
	P256 Curve = iota + 1
	P384
	P521
	X25519
	X448
)

// String returns the COSE name of the curve.
func (c Curve) String() string {
	switch c {
	case P256:
		return "P-256"
	case P384:
		return "P-384"
	case P521:
		return "P-521"
	case X25519:
		return "X25519"
	case X448:
		return "X448"
	default:
		return fmt.Sprintf("Curve(%d)", int(c))
	}
}

// Montgomery reports whether the curve is an x-only Montgomery curve whose
// public keys have no y coordinate.
func (c Curve) Montgomery() bool {
	return c == X25519 || c == X448
}

// CoordinateSize returns the byte length of a public key coordinate and of a
// private scalar on the curve.
func (c Curve) CoordinateSize() int {
	switch c {
	case P256, X25519:
		return 32
	case P384:
		return 48
	case P521:
		return 66
	case X448:
		return x448.Size
	default:
		return 0
	}
}

// ecdhCurve maps a curve onto its crypto/ecdh implementation, or nil for the
// curves handled by circl.
func (c Curve) ecdhCurve() ecdh.Curve {
	switch c {
	case P256:
		return ecdh.P256()
	case P384:
		return ecdh.P384()
	case P521:
		return ecdh.P521()
	case X25519:
		return ecdh.X25519()
	default:
		return nil
	}
}

// PrivateKey is a key agreement private key on a specific curve.
type PrivateKey struct {
	curve Curve
	inner *ecdh.PrivateKey // P-256, P-384, P-521, X25519
	x448  x448.Key         // X448
}

// PublicKey is a key agreement public key on a specific curve.
type PublicKey struct {
	curve Curve
	inner *ecdh.PublicKey // P-256, P-384, P-521, X25519
	x448  x448.Key        // X448
}

// GenerateKey creates a new random private key on the given curve.
func GenerateKey(curve Curve, rand io.Reader) (*PrivateKey, error) {
	if curve == X448 {
		key := &PrivateKey{curve: curve}
		if _, err := io.ReadFull(rand, key.x448[:]); err != nil {
			return nil, err
		}
		return key, nil
	}
	c := curve.ecdhCurve()
	if c == nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownCurve, curve)
	}
	inner, err := c.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{curve: curve, inner: inner}, nil
}

// NewPrivateKey creates a private key from its raw scalar encoding.
func NewPrivateKey(curve Curve, d []byte) (*PrivateKey, error) {
	if curve == X448 {
		if len(d) != x448.Size {
			return nil, fmt.Errorf("%w: X448 scalar of %d bytes", ErrInvalidKey, len(d))
		}
		key := &PrivateKey{curve: curve}
		copy(key.x448[:], d)
		return key, nil
	}
	c := curve.ecdhCurve()
	if c == nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownCurve, curve)
	}
	inner, err := c.NewPrivateKey(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &PrivateKey{curve: curve, inner: inner}, nil
}

// NewPublicKey creates a public key from its affine coordinates. The y
// coordinate must be empty for X25519 and X448.
func NewPublicKey(curve Curve, x, y []byte) (*PublicKey, error) {
	size := curve.CoordinateSize()
	if size == 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnknownCurve, curve)
	}
	if len(x) != size {
		return nil, fmt.Errorf("%w: %v x coordinate of %d bytes", ErrInvalidKey, curve, len(x))
	}
	if curve.Montgomery() {
		if len(y) != 0 {
			return nil, fmt.Errorf("%w: %v has no y coordinate", ErrInvalidKey, curve)
		}
		if curve == X448 {
			key := &PublicKey{curve: curve}
			copy(key.x448[:], x)
			return key, nil
		}
		inner, err := curve.ecdhCurve().NewPublicKey(x)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return &PublicKey{curve: curve, inner: inner}, nil
	}
	if len(y) != size {
		return nil, fmt.Errorf("%w: %v y coordinate of %d bytes", ErrInvalidKey, curve, len(y))
	}
	point := make([]byte, 0, 1+2*size)
	point = append(point, 0x04)
	point = append(point, x...)
	point = append(point, y...)

	inner, err := curve.ecdhCurve().NewPublicKey(point)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &PublicKey{curve: curve, inner: inner}, nil
}

// Curve returns the curve the key lives on.
func (k *PrivateKey) Curve() Curve {
	return k.curve
}

// Bytes returns the raw private scalar.
func (k *PrivateKey) Bytes() []byte {
	if k.curve == X448 {
		return bytes.Clone(k.x448[:])
	}
	return k.inner.Bytes()
}

// PublicKey returns the public counterpart of the private key.
func (k *PrivateKey) PublicKey() *PublicKey {
	if k.curve == X448 {
		pub := &PublicKey{curve: k.curve}
		x448.KeyGen(&pub.x448, &k.x448)
		return pub
	}
	return &PublicKey{curve: k.curve, inner: k.inner.PublicKey()}
}

// Shared computes the shared secret between the private key and a peer's
// public key. The secret is the x coordinate of the shared point.
func (k *PrivateKey) Shared(peer *PublicKey) ([]byte, error) {
	if k.curve != peer.curve {
		return nil, fmt.Errorf("%w: %v and %v", ErrCurveMismatch, k.curve, peer.curve)
	}
	if k.curve == X448 {
		var shared x448.Key
		if !x448.Shared(&shared, &k.x448, &peer.x448) {
			return nil, ErrLowOrderPoint
		}
		return shared[:], nil
	}
	secret, err := k.inner.ECDH(peer.inner)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLowOrderPoint, err)
	}
	return secret, nil
}

// Curve returns the curve the key lives on.
func (k *PublicKey) Curve() Curve {
	return k.curve
}

// Coordinates returns the affine coordinates of the public key. The y
// coordinate is nil on Montgomery curves.
func (k *PublicKey) Coordinates() (x, y []byte) {
	if k.curve == X448 {
		return bytes.Clone(k.x448[:]), nil
	}
	raw := k.inner.Bytes()
	if k.curve.Montgomery() {
		return raw, nil
	}
	size := k.curve.CoordinateSize()
	return raw[1 : 1+size], raw[1+size:]
}

// Equal reports whether two public keys are the same point on the same curve.
func (k *PublicKey) Equal(other *PublicKey) bool {
	if k.curve != other.curve {
		return false
	}
	if k.curve == X448 {
		return k.x448 == other.x448
	}
	return k.inner.Equal(other.inner)
}
