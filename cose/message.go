// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"errors"
	"fmt"

	"github.com/dark-bio/cose-go/agree"
	"github.com/dark-bio/cose-go/cbor"
)

// MessageType identifies a MAC message form by its CBOR tag number.
type MessageType uint64

// MAC message forms.
const (
	MessageMac0 MessageType = 17
	MessageMac  MessageType = 97
)

// String implements fmt.Stringer.
func (t MessageType) String() string {
	switch t {
	case MessageMac0:
		return "COSE_Mac0"
	case MessageMac:
		return "COSE_Mac"
	default:
		return fmt.Sprintf("MessageType(%d)", uint64(t))
	}
}

// context returns the MAC_structure context of the message form.
func (t MessageType) context() Context {
	if t == MessageMac {
		return ContextMac
	}
	return ContextMac0
}

// errProtectedHeader marks a message whose protected header bytes do not
// decode. Those bytes are covered by the tag, so Read reports such messages
// as failing verification.
var errProtectedHeader = errors.New("cose: undecodable protected header")

// MacMessage is a decoded COSE_Mac or COSE_Mac0 message. Protected holds the
// raw protected header bytes exactly as received, which is what the tag is
// computed over.
type MacMessage struct {
	Type         MessageType
	Tagged       bool
	Protected    []byte
	ProtectedMap HeaderMap
	Unprotected  HeaderMap
	Payload      []byte
	Detached     bool
	Tag          []byte
	Recipients   []*RecipientInfo
}

// RecipientInfo is a decoded COSE_recipient.
type RecipientInfo struct {
	Protected    []byte
	ProtectedMap HeaderMap
	Unprotected  HeaderMap
	Ciphertext   []byte
}

// coseMac is the COSE_Mac wire structure per RFC 9052 Section 6.1.
//
//	COSE_Mac = [
//	    protected:   empty_or_serialized_map,
//	    unprotected: header_map,
//	    payload:     bstr / nil,
//	    tag:         bstr,
//	    recipients:  [+COSE_recipient]
//	]
type coseMac struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected HeaderMap
	Payload     any
	Tag         []byte
	Recipients  []*coseRecipient
}

// coseMac0 is the COSE_Mac0 wire structure per RFC 9052 Section 6.2.
//
//	COSE_Mac0 = [
//	    protected:   empty_or_serialized_map,
//	    unprotected: header_map,
//	    payload:     bstr / nil,
//	    tag:         bstr
//	]
type coseMac0 struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected HeaderMap
	Payload     any
	Tag         []byte
}

// Algorithm resolves the MAC algorithm of the message the same way Create
// does: protected bucket first, then unprotected, then the first recipient
// header carrying a MAC algorithm.
func (m *MacMessage) Algorithm() (Algorithm, bool, error) {
	alg, ok, err := lookupAlgorithm(m.ProtectedMap, m.Unprotected)
	if err != nil || ok {
		return alg, ok, err
	}
	for _, r := range m.Recipients {
		ralg, ok, err := lookupAlgorithm(r.ProtectedMap, r.Unprotected)
		if err == nil && ok && ralg.kind == KindMAC {
			return ralg, true, nil
		}
	}
	return Algorithm{}, false, nil
}

// IV returns the initialization vector the message headers carry: the IV
// parameter as is, or the Partial IV expanded against baseIV. Messages with
// neither return nil.
func (m *MacMessage) IV(baseIV []byte) ([]byte, error) {
	if iv, ok := headerBytes(m.ProtectedMap, m.Unprotected, HeaderIV); ok {
		return iv, nil
	}
	partial, ok := headerBytes(m.ProtectedMap, m.Unprotected, HeaderPartialIV)
	if !ok {
		return nil, nil
	}
	if len(baseIV) == 0 {
		return nil, fmt.Errorf("%w: partial IV without a base IV", ErrInvalidIV)
	}
	return FullIV(baseIV, partial)
}

// headerBytes returns a byte string parameter from either bucket, protected
// first.
func headerBytes(protected, unprotected HeaderMap, id int64) ([]byte, bool) {
	if b, ok := protected.Bytes(id); ok {
		return b, true
	}
	return unprotected.Bytes(id)
}

// conflictingIV reports whether a header pair carries both an IV and a
// Partial IV, which RFC 9052 Section 3.1 forbids.
func conflictingIV(protected, unprotected HeaderMap) bool {
	_, hasIV := headerBytes(protected, unprotected, HeaderIV)
	_, hasPartial := headerBytes(protected, unprotected, HeaderPartialIV)
	return hasIV && hasPartial
}

// Decode parses a COSE_Mac or COSE_Mac0 message without verifying it. Tagged
// input must carry tag 17 or 97. Untagged input takes its form from
// WithMessageType, or else from the number of array elements.
//
// Every structural problem is reported as ErrMalformedMessage.
func Decode(data []byte, opts ...Option) (*MacMessage, error) {
	return decode(data, newOptions(opts))
}

func decode(data []byte, o *options) (*MacMessage, error) {
	msg := new(MacMessage)

	content := cbor.RawMessage(data)
	num, inner, err := cbor.Untag(data)
	switch {
	case err == nil:
		msg.Type, msg.Tagged, content = MessageType(num), true, inner
		if msg.Type != MessageMac0 && msg.Type != MessageMac {
			return nil, fmt.Errorf("%w: unexpected tag %d", ErrMalformedMessage, num)
		}
	case !errors.Is(err, cbor.ErrNotTagged):
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	items, err := decodeArray(content)
	if err != nil {
		return nil, err
	}
	if !msg.Tagged {
		switch {
		case o.messageType != 0:
			msg.Type = o.messageType
		case len(items) == 4:
			msg.Type = MessageMac0
		default:
			msg.Type = MessageMac
		}
	}
	want := 4
	if msg.Type == MessageMac {
		want = 5
	}
	if len(items) != want {
		return nil, fmt.Errorf("%w: %v has %d elements, want %d", ErrMalformedMessage, msg.Type, len(items), want)
	}
	if msg.Protected, err = decodeBytes(items[0]); err != nil {
		return nil, err
	}
	if msg.ProtectedMap, err = decodeProtected(msg.Protected); err != nil {
		return nil, fmt.Errorf("%w: %w", errProtectedHeader, err)
	}
	if msg.Unprotected, err = decodeHeaderMap(items[1]); err != nil {
		return nil, err
	}
	if conflictingIV(msg.ProtectedMap, msg.Unprotected) {
		return nil, fmt.Errorf("%w: both IV and Partial IV present", ErrMalformedMessage)
	}
	if cbor.IsNull(items[2]) {
		msg.Detached = true
		msg.Payload = o.payload
	} else if msg.Payload, err = decodeBytes(items[2]); err != nil {
		return nil, err
	}
	if msg.Tag, err = decodeBytes(items[3]); err != nil {
		return nil, err
	}
	if msg.Type == MessageMac {
		recipients, err := decodeArray(items[4])
		if err != nil {
			return nil, err
		}
		for _, raw := range recipients {
			r, err := decodeRecipient(raw)
			if err != nil {
				return nil, err
			}
			msg.Recipients = append(msg.Recipients, r)
		}
	}
	return msg, nil
}

// decodeRecipient parses a COSE_recipient. Nested recipients are not
// supported.
func decodeRecipient(data []byte) (*RecipientInfo, error) {
	items, err := decodeArray(data)
	if err != nil {
		return nil, err
	}
	if len(items) != 3 {
		return nil, fmt.Errorf("%w: recipient has %d elements, want 3", ErrMalformedMessage, len(items))
	}
	r := new(RecipientInfo)
	if r.Protected, err = decodeBytes(items[0]); err != nil {
		return nil, err
	}
	if r.ProtectedMap, err = decodeProtected(r.Protected); err != nil {
		return nil, err
	}
	if r.Unprotected, err = decodeHeaderMap(items[1]); err != nil {
		return nil, err
	}
	if !cbor.IsNull(items[2]) {
		if r.Ciphertext, err = decodeBytes(items[2]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// decodeArray splits an encoded array into its raw elements.
func decodeArray(data []byte) ([]cbor.RawMessage, error) {
	if major, err := cbor.Major(data); err != nil || major != cbor.MajorArray {
		return nil, fmt.Errorf("%w: expected array", ErrMalformedMessage)
	}
	var items []cbor.RawMessage
	if err := cbor.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return items, nil
}

// decodeBytes decodes an encoded byte string.
func decodeBytes(data []byte) ([]byte, error) {
	if major, err := cbor.Major(data); err != nil || major != cbor.MajorBytes {
		return nil, fmt.Errorf("%w: expected byte string", ErrMalformedMessage)
	}
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return b, nil
}

// peerKey returns the other party's public key for a key agreement
// recipient: the ephemeral key for ECDH-ES, the static key for ECDH-SS. A
// static key referenced only by static_key_id must be supplied by the caller.
func (r *RecipientInfo) peerKey(alg Algorithm, sender *Key) (*agree.PublicKey, error) {
	id := int64(HeaderEphemeralKey)
	if alg.tag == AlgorithmECDHSS || alg.tag == AlgorithmECDHSS512 {
		id = HeaderStaticKey
	}
	value, ok := r.ProtectedMap[id]
	if !ok {
		value, ok = r.Unprotected[id]
	}
	if !ok {
		if id == HeaderStaticKey && sender != nil {
			return sender.publicKey()
		}
		return nil, fmt.Errorf("%w: recipient carries no peer key", ErrMissingKey)
	}
	key, err := decodeKeyValue(value)
	if err != nil {
		return nil, err
	}
	return key.publicKey()
}
