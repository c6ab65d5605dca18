// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"fmt"

	"github.com/dark-bio/cose-go/cbor"
)

// Context distinguishes the MAC_structure of the two MAC message forms.
type Context string

// MAC_structure contexts.
const (
	ContextMac  Context = "MAC"
	ContextMac0 Context = "MAC0"
)

// macStructure is the MAC_structure fed to the MAC primitive per RFC 9052
// Section 6.3.
//
//	MAC_structure = [
//	    context:      "MAC" / "MAC0",
//	    protected:    empty_or_serialized_map,
//	    external_aad: bstr,
//	    payload:      bstr
//	]
type macStructure struct {
	_           struct{} `cbor:",toarray"`
	Context     string
	Protected   []byte
	ExternalAAD []byte
	Payload     []byte
}

// BuildMacStructure encodes the MAC_structure for the given context. Nil
// byte inputs encode as zero-length byte strings. The result depends only on
// its inputs.
func BuildMacStructure(ctx Context, protected, externalAAD, payload []byte) ([]byte, error) {
	if ctx != ContextMac && ctx != ContextMac0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidContext, ctx)
	}
	data, err := cbor.Marshal(&macStructure{
		Context:     string(ctx),
		Protected:   protected,
		ExternalAAD: externalAAD,
		Payload:     payload,
	})
	if err != nil {
		panic(err) // cannot fail, be loud if it does
	}
	return data, nil
}
