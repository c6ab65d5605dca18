// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cbor implements the CBOR encoding configuration shared by the COSE
// layer.
//
// https://datatracker.ietf.org/doc/html/rfc8949
//
// Encoding always follows Core Deterministic Encoding (RFC 8949 Section 4.2.1):
// map keys are sorted bytewise on their encoded form, integers and lengths use
// their shortest form and indefinite-length items are never produced. The same
// logical value therefore always encodes to identical bytes, which is what the
// MAC computations rely on.
//
// Decoding is strict about structure: indefinite-length items and duplicate map
// keys are rejected, and integers decoded into interface values are normalised
// to int64 so that integer-labelled maps compare predictably.
//
// Nil slices and maps encode as empty containers, not as null. The only way to
// produce a CBOR null is an untyped nil interface value.
package cbor

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Major types as they appear in the top three bits of an initial byte.
const (
	MajorUint   = 0
	MajorNint   = 1
	MajorBytes  = 2
	MajorText   = 3
	MajorArray  = 4
	MajorMap    = 5
	MajorTag    = 6
	MajorSimple = 7
)

// null is the single-byte encoding of the CBOR null simple value.
const null = 0xf6

// Error types for CBOR encoding/decoding failures
var (
	ErrUnexpectedEOF = errors.New("cbor: unexpected end of data")
	ErrNonCanonical  = errors.New("cbor: non-canonical encoding")
	ErrNotTagged     = errors.New("cbor: data item is not tagged")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.NilContainers = cbor.NilContainerAsEmpty
	if encMode, err = encOptions.EncMode(); err != nil {
		panic("cbor: encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
		IntDec:      cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic("cbor: decoder initialization failed: " + err.Error())
	}
}

// RawMessage is a raw encoded CBOR value, used to delay decoding of individual
// array elements until their expected type is known.
type RawMessage = cbor.RawMessage

// Tag is a CBOR tag number wrapping an arbitrary content value.
type Tag = cbor.Tag

// RawTag is a CBOR tag number wrapping still-encoded content.
type RawTag = cbor.RawTag

// Marshal encodes v using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v, rejecting trailing bytes.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Major returns the major type of the first data item in data.
func Major(data []byte) (uint8, error) {
	if len(data) == 0 {
		return 0, ErrUnexpectedEOF
	}
	return data[0] >> 5, nil
}

// IsNull reports whether data is exactly the CBOR null value.
func IsNull(data []byte) bool {
	return len(data) == 1 && data[0] == null
}

// Untag splits a tagged data item into its tag number and encoded content.
// Untagged data is reported with ErrNotTagged.
func Untag(data []byte) (uint64, RawMessage, error) {
	major, err := Major(data)
	if err != nil {
		return 0, nil, err
	}
	if major != MajorTag {
		return 0, nil, ErrNotTagged
	}
	var tag RawTag
	if err := decMode.Unmarshal(data, &tag); err != nil {
		return 0, nil, err
	}
	return tag.Number, tag.Content, nil
}

// Verify does a dry-run decoding to check that data is a single well formed
// item acceptable to this package's decoder.
func Verify(data []byte) error {
	var v any
	return decMode.Unmarshal(data, &v)
}

// Canonical checks that data is already in deterministic encoding, i.e. that
// decoding and re-encoding it yields the same bytes.
func Canonical(data []byte) error {
	var v any
	if err := decMode.Unmarshal(data, &v); err != nil {
		return err
	}
	again, err := encMode.Marshal(v)
	if err != nil {
		return err
	}
	if !bytes.Equal(again, data) {
		return fmt.Errorf("%w: %x re-encodes as %x", ErrNonCanonical, data, again)
	}
	return nil
}

// Diagnose returns the RFC 8949 Section 8 diagnostic notation for data.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
