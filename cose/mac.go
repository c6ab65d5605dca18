// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"iter"

	"github.com/dark-bio/cose-go/cbor"
)

// Create builds a COSE_Mac message authenticating payload for the given
// recipients.
//
// The MAC algorithm is taken from the protected header, then the unprotected
// one, then any recipient header carrying a MAC algorithm. All recipients
// share one content key; see Recipient for how each kind obtains it.
func Create(headers Headers, payload []byte, recipients []Recipient, opts ...Option) ([]byte, error) {
	return defaultEngine.Create(headers, payload, recipients, opts...)
}

// CreateMac0 builds a COSE_Mac0 message authenticating payload with key.
func CreateMac0(headers Headers, payload, key []byte, opts ...Option) ([]byte, error) {
	return defaultEngine.CreateMac0(headers, payload, key, opts...)
}

// Read verifies a COSE_Mac or COSE_Mac0 message with a symmetric key and
// returns its payload.
func Read(data, key []byte, opts ...Option) ([]byte, error) {
	return defaultEngine.Read(data, key, opts...)
}

// ReadWithKey verifies a message with a COSE key, which may be a symmetric
// key or the private key of a key agreement recipient.
func ReadWithKey(data []byte, key *Key, opts ...Option) ([]byte, error) {
	return defaultEngine.ReadWithKey(data, key, opts...)
}

// Create builds a COSE_Mac message. See the package level Create.
func (e *Engine) Create(headers Headers, payload []byte, recipients []Recipient, opts ...Option) ([]byte, error) {
	o := newOptions(opts)

	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrMissingKey)
	}
	protected, unprotected, err := translateHeaders(headers)
	if err != nil {
		return nil, err
	}
	pending, err := translateRecipients(recipients)
	if err != nil {
		return nil, err
	}
	alg, ok, err := lookupAlgorithm(protected, unprotected)
	if err != nil {
		return nil, err
	}
	if !ok {
		for _, p := range pending {
			if p.alg.kind == KindMAC {
				alg, ok = p.alg, true
				break
			}
		}
	}
	if err := checkMacAlgorithm(alg, ok); err != nil {
		return nil, err
	}
	key, err := contentKey(alg, pending, e.rand)
	if err != nil {
		return nil, err
	}
	protectedBytes, err := EncodeProtected(protected)
	if err != nil {
		return nil, err
	}
	tag, err := e.computeTag(ContextMac, alg, key, protectedBytes, payload, o)
	if err != nil {
		return nil, err
	}
	msg := &coseMac{
		Protected:   protectedBytes,
		Unprotected: unprotected,
		Payload:     payloadValue(payload, o),
		Tag:         tag,
	}
	for _, p := range pending {
		r, err := p.encode()
		if err != nil {
			return nil, err
		}
		msg.Recipients = append(msg.Recipients, r)
	}
	e.logger.Debug("created MAC message", "type", MessageMac, "alg", alg, "recipients", len(pending))
	return encodeMessage(MessageMac, msg, o)
}

// CreateMac0 builds a COSE_Mac0 message. See the package level CreateMac0.
func (e *Engine) CreateMac0(headers Headers, payload, key []byte, opts ...Option) ([]byte, error) {
	o := newOptions(opts)

	if len(key) == 0 {
		return nil, ErrMissingKey
	}
	protected, unprotected, err := translateHeaders(headers)
	if err != nil {
		return nil, err
	}
	alg, ok, err := lookupAlgorithm(protected, unprotected)
	if err != nil {
		return nil, err
	}
	if err := checkMacAlgorithm(alg, ok); err != nil {
		return nil, err
	}
	protectedBytes, err := EncodeProtected(protected)
	if err != nil {
		return nil, err
	}
	tag, err := e.computeTag(ContextMac0, alg, key, protectedBytes, payload, o)
	if err != nil {
		return nil, err
	}
	msg := &coseMac0{
		Protected:   protectedBytes,
		Unprotected: unprotected,
		Payload:     payloadValue(payload, o),
		Tag:         tag,
	}
	e.logger.Debug("created MAC message", "type", MessageMac0, "alg", alg)
	return encodeMessage(MessageMac0, msg, o)
}

// Read verifies a message with a symmetric key. See the package level Read.
func (e *Engine) Read(data, key []byte, opts ...Option) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrMissingKey
	}
	return e.ReadWithKey(data, SymmetricKey(key), opts...)
}

// ReadWithKey verifies a message with a COSE key. See the package level
// ReadWithKey.
//
// Once the message is decoded, every failure is reported as
// ErrVerificationFailed without further detail.
func (e *Engine) ReadWithKey(data []byte, key *Key, opts ...Option) ([]byte, error) {
	o := newOptions(opts)

	if key == nil {
		return nil, ErrMissingKey
	}
	msg, err := decode(data, o)
	if errors.Is(err, errProtectedHeader) {
		e.logger.Debug("MAC verification failed", "reason", "undecodable protected header")
		return nil, ErrVerificationFailed
	}
	if err != nil {
		return nil, err
	}
	if msg.Detached && !o.hasPayload {
		return nil, fmt.Errorf("%w: payload is detached and was not supplied", ErrMalformedMessage)
	}
	alg, ok, err := msg.Algorithm()
	if err != nil || !ok || alg.kind != KindMAC {
		e.logger.Debug("MAC verification failed", "type", msg.Type, "reason", "no usable MAC algorithm")
		return nil, ErrVerificationFailed
	}
	structure, err := BuildMacStructure(msg.Type.context(), msg.Protected, o.externalAAD, msg.Payload)
	if err != nil {
		return nil, ErrVerificationFailed
	}
	var tried int
	for candidate := range e.candidateKeys(msg, alg, key, o) {
		tried++
		tag, err := e.provider.ComputeMac(alg, candidate, structure)
		if err != nil {
			continue
		}
		if subtle.ConstantTimeCompare(tag, msg.Tag) == 1 {
			e.logger.Debug("verified MAC message", "type", msg.Type, "alg", alg, "recipients", len(msg.Recipients))
			return msg.Payload, nil
		}
	}
	e.logger.Debug("MAC verification failed", "type", msg.Type, "alg", alg, "candidates", tried)
	return nil, ErrVerificationFailed
}

// candidateKeys yields the MAC keys to try for a message, one per recipient
// that yields a key, in recipient order.
func (e *Engine) candidateKeys(msg *MacMessage, alg Algorithm, key *Key, o *options) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		if msg.Type == MessageMac0 || len(msg.Recipients) == 0 {
			if secret, err := symmetricSecret(key); err == nil {
				yield(secret)
			}
			return
		}
		for i, r := range msg.Recipients {
			secret, err := recipientSecret(alg, r, key, o)
			if err != nil {
				e.logger.Debug("skipping recipient", "index", i, "error", err)
				continue
			}
			if !yield(secret) {
				return
			}
		}
	}
}

// computeTag builds the MAC_structure and runs the provider over it.
func (e *Engine) computeTag(ctx Context, alg Algorithm, key, protected, payload []byte, o *options) ([]byte, error) {
	structure, err := BuildMacStructure(ctx, protected, o.externalAAD, payload)
	if err != nil {
		return nil, err
	}
	return e.provider.ComputeMac(alg, key, structure)
}

// translateHeaders converts both buckets of a message's headers.
func translateHeaders(headers Headers) (HeaderMap, HeaderMap, error) {
	protected, err := headers.Protected.Translate()
	if err != nil {
		return nil, nil, err
	}
	unprotected, err := headers.Unprotected.Translate()
	if err != nil {
		return nil, nil, err
	}
	if conflictingIV(protected, unprotected) {
		return nil, nil, fmt.Errorf("%w: IV and Partial IV are exclusive", ErrDuplicateParameter)
	}
	return protected, unprotected, nil
}

// checkMacAlgorithm rejects a missing or non-MAC message algorithm.
func checkMacAlgorithm(alg Algorithm, ok bool) error {
	if !ok {
		return fmt.Errorf("%w: no MAC algorithm in headers", ErrUnsupportedAlgorithm)
	}
	if alg.kind != KindMAC {
		return fmt.Errorf("%w: %s is a %v algorithm", ErrUnsupportedAlgorithm, alg, alg.kind)
	}
	return nil
}

// payloadValue returns the payload as encoded in the message, nil if detached.
func payloadValue(payload []byte, o *options) any {
	if o.detached {
		return nil
	}
	if payload == nil {
		return []byte{}
	}
	return payload
}

// encodeMessage serializes a message, tagged unless WithoutTag was given.
func encodeMessage(t MessageType, msg any, o *options) ([]byte, error) {
	value := msg
	if !o.untagged {
		value = cbor.Tag{Number: uint64(t), Content: msg}
	}
	data, err := cbor.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("cose: failed to encode %v: %w", t, err)
	}
	return data, nil
}
