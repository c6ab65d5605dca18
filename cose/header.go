// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"github.com/dark-bio/cose-go/cbor"
)

// Header parameter identifiers.
const (
	HeaderPartyUNonce      = -22
	HeaderStaticKeyID      = -3
	HeaderStaticKey        = -2
	HeaderEphemeralKey     = -1
	HeaderAlgorithm        = 1
	HeaderCritical         = 2
	HeaderContentType      = 3
	HeaderKeyID            = 4
	HeaderIV               = 5
	HeaderPartialIV        = 6
	HeaderCounterSignature = 7
)

// headerParameters maps registered parameter names onto their identifiers.
// The ctyp alias shares its identifier with content_type.
var headerParameters = map[string]int64{
	"partyUNonce":       HeaderPartyUNonce,
	"static_key_id":     HeaderStaticKeyID,
	"static_key":        HeaderStaticKey,
	"ephemeral_key":     HeaderEphemeralKey,
	"alg":               HeaderAlgorithm,
	"crit":              HeaderCritical,
	"content_type":      HeaderContentType,
	"ctyp":              HeaderContentType,
	"kid":               HeaderKeyID,
	"IV":                HeaderIV,
	"Partial_IV":        HeaderPartialIV,
	"counter_signature": HeaderCounterSignature,
}

// headerTransforms holds the value conversion for each parameter identifier
// that needs one. Values of other parameters are passed through.
var headerTransforms = map[int64]func(any) (any, error){
	HeaderAlgorithm:    transformAlgorithm,
	HeaderKeyID:        transformKeyID,
	HeaderEphemeralKey: transformKey,
	HeaderStaticKey:    transformKey,
}

// Header is a named header bucket. Zero-valued fields are absent and never
// encoded. Registered parameters without a typed field, or spelled with an
// alias (e.g. ctyp), go into Extra.
type Header struct {
	Alg              string
	Crit             []int64
	ContentType      any // uint or tstr
	Kid              string
	IV               []byte
	PartialIV        []byte
	CounterSignature any
	EphemeralKey     *Key
	StaticKey        *Key
	StaticKeyID      []byte
	PartyUNonce      []byte

	// Extra holds parameters keyed by registered name.
	Extra map[string]any
}

// Headers is the protected and unprotected partition of a message's headers.
type Headers struct {
	Protected   Header
	Unprotected Header
}

// HeaderMap is a header bucket in its integer-keyed wire form.
type HeaderMap map[int64]any

// parameter is a single named header value.
type parameter struct {
	name  string
	value any
}

// parameters lists the header's values in a fixed order: typed fields first,
// then extension values sorted by name.
func (h *Header) parameters() []parameter {
	params := []parameter{
		{"alg", h.Alg},
		{"crit", h.Crit},
		{"content_type", h.ContentType},
		{"kid", h.Kid},
		{"IV", h.IV},
		{"Partial_IV", h.PartialIV},
		{"counter_signature", h.CounterSignature},
		{"ephemeral_key", h.EphemeralKey},
		{"static_key", h.StaticKey},
		{"static_key_id", h.StaticKeyID},
		{"partyUNonce", h.PartyUNonce},
	}
	for _, name := range slices.Sorted(maps.Keys(h.Extra)) {
		params = append(params, parameter{name, h.Extra[name]})
	}
	return params
}

// Translate converts the header into its integer-keyed wire form.
//
// Unknown names fail with ErrUnknownParameter. Two names resolving to the same
// identifier (content_type and ctyp) fail with ErrDuplicateParameter. Absent
// values are skipped. No partial map is returned on failure.
func (h *Header) Translate() (HeaderMap, error) {
	out := make(HeaderMap)
	for _, param := range h.parameters() {
		id, ok := headerParameters[param.name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownParameter, param.name)
		}
		if absent(param.value) {
			continue
		}
		value := param.value
		if transform, ok := headerTransforms[id]; ok {
			var err error
			if value, err = transform(value); err != nil {
				return nil, err
			}
		}
		if _, ok := out[id]; ok {
			return nil, fmt.Errorf("%w: %q maps to %d which is already set", ErrDuplicateParameter, param.name, id)
		}
		out[id] = value
	}
	return out, nil
}

// TranslateHeader converts a bucket of named parameters into its wire form.
func TranslateHeader(params map[string]any) (HeaderMap, error) {
	h := Header{Extra: params}
	return h.Translate()
}

// absent reports whether a header value should be left out of the map.
func absent(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []byte:
		return v == nil
	case []int64:
		return v == nil
	case *Key:
		return v == nil
	}
	return false
}

func transformAlgorithm(v any) (any, error) {
	switch v := v.(type) {
	case string:
		alg, err := ParseAlgorithm(v)
		if err != nil {
			return nil, err
		}
		return alg.tag, nil
	case Algorithm:
		return v.tag, nil
	case int64:
		if _, err := LookupAlgorithm(v); err != nil {
			return nil, err
		}
		return v, nil
	case int:
		return transformAlgorithm(int64(v))
	default:
		return nil, fmt.Errorf("%w: alg of type %T", ErrUnknownAlgorithm, v)
	}
}

func transformKeyID(v any) (any, error) {
	switch v := v.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: kid of type %T", ErrUnknownParameter, v)
	}
}

func transformKey(v any) (any, error) {
	switch v := v.(type) {
	case *Key:
		return v.Translate()
	case Key:
		return v.Translate()
	case map[int64]any:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: key of type %T", ErrInvalidKey, v)
	}
}

// Keys returns the identifiers in the map in deterministic CBOR order.
func (m HeaderMap) Keys() []int64 {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, func(a, b int64) int {
		ea, _ := cbor.Marshal(a)
		eb, _ := cbor.Marshal(b)
		return bytes.Compare(ea, eb)
	})
	return keys
}

// Algorithm resolves the alg parameter of the map.
func (m HeaderMap) Algorithm() (Algorithm, bool, error) {
	switch v := m[HeaderAlgorithm].(type) {
	case nil:
		return Algorithm{}, false, nil
	case int64:
		alg, err := LookupAlgorithm(v)
		return alg, err == nil, err
	case string:
		alg, err := ParseAlgorithm(v)
		return alg, err == nil, err
	default:
		return Algorithm{}, false, fmt.Errorf("%w: alg of type %T", ErrUnknownAlgorithm, v)
	}
}

// Bytes returns a byte string parameter, if present.
func (m HeaderMap) Bytes(id int64) ([]byte, bool) {
	b, ok := m[id].([]byte)
	return b, ok
}

// EncodeProtected serializes a protected bucket. An empty bucket encodes as a
// zero-length byte string rather than an empty map.
func EncodeProtected(m HeaderMap) ([]byte, error) {
	if len(m) == 0 {
		return []byte{}, nil
	}
	return cbor.Marshal(map[int64]any(m))
}

// decodeProtected parses serialized protected header bytes.
func decodeProtected(data []byte) (HeaderMap, error) {
	if len(data) == 0 {
		return HeaderMap{}, nil
	}
	if major, _ := cbor.Major(data); major != cbor.MajorMap {
		return nil, fmt.Errorf("%w: protected header is not a map", ErrMalformedMessage)
	}
	return decodeHeaderMap(data)
}

// decodeHeaderMap parses an encoded header map. Labels must be integers.
func decodeHeaderMap(data []byte) (HeaderMap, error) {
	if major, err := cbor.Major(data); err != nil || major != cbor.MajorMap {
		return nil, fmt.Errorf("%w: header is not a map", ErrMalformedMessage)
	}
	var m map[int64]any
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if m == nil {
		m = make(map[int64]any)
	}
	return HeaderMap(m), nil
}

// labelMap converts a decoded nested map with integer labels.
func labelMap(v any) (map[int64]any, bool) {
	switch m := v.(type) {
	case map[int64]any:
		return m, true
	case map[any]any:
		out := make(map[int64]any, len(m))
		for k, v := range m {
			id, ok := k.(int64)
			if !ok {
				return nil, false
			}
			out[id] = v
		}
		return out, true
	default:
		return nil, false
	}
}
