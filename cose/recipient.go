// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dark-bio/cose-go/agree"
	"github.com/dark-bio/cose-go/keywrap"
)

// Recipient is one consumer of a COSE_Mac message.
//
// Key is the recipient's key: the shared secret for direct recipients, the
// key encryption key for key wrap recipients or the recipient's public key
// for key agreement. SenderKey is the sender's static private key, only used
// with ECDH-SS.
//
// If neither header bucket carries an algorithm, it is inferred from Key: a
// symmetric key becomes a direct recipient, an EC2 or OKP key an ECDH-ES (or
// ECDH-SS if SenderKey is set) recipient.
type Recipient struct {
	Protected   Header
	Unprotected Header
	Key         *Key
	SenderKey   *Key
}

// family groups the recipient algorithms sharing a content key model.
type family int

const (
	familyDirect family = iota + 1
	familyWrap
	familyAgreement
)

// recipientFamily classifies a recipient algorithm. A MAC algorithm in a
// recipient header marks a direct recipient.
func recipientFamily(alg Algorithm) (family, error) {
	switch alg.kind {
	case KindDirect, KindMAC:
		return familyDirect, nil
	case KindKeyWrap:
		return familyWrap, nil
	case KindKeyAgreement:
		return familyAgreement, nil
	default:
		return 0, fmt.Errorf("%w: %s is not a recipient algorithm", ErrUnsupportedAlgorithm, alg)
	}
}

// pendingRecipient is a recipient whose headers are translated but whose key
// material is not yet processed.
type pendingRecipient struct {
	protected   HeaderMap
	unprotected HeaderMap
	alg         Algorithm
	family      family
	key         *Key
	sender      *Key
	ciphertext  []byte
}

// coseRecipient is the COSE_recipient wire structure.
//
//	COSE_recipient = [
//	    protected:   empty_or_serialized_map,
//	    unprotected: header_map,
//	    ciphertext:  bstr / nil
//	]
type coseRecipient struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected HeaderMap
	Ciphertext  []byte
}

// translateRecipients converts the recipients' headers and resolves or infers
// their algorithms.
func translateRecipients(recipients []Recipient) ([]*pendingRecipient, error) {
	pending := make([]*pendingRecipient, 0, len(recipients))
	for i, r := range recipients {
		if r.Key == nil {
			return nil, fmt.Errorf("%w: recipient %d has no key", ErrMissingKey, i)
		}
		protected, err := r.Protected.Translate()
		if err != nil {
			return nil, err
		}
		unprotected, err := r.Unprotected.Translate()
		if err != nil {
			return nil, err
		}
		p := &pendingRecipient{
			protected:   protected,
			unprotected: unprotected,
			key:         r.Key,
			sender:      r.SenderKey,
		}
		alg, ok, err := lookupAlgorithm(protected, unprotected)
		if err != nil {
			return nil, err
		}
		if !ok {
			if alg, err = inferAlgorithm(r.Key, r.SenderKey); err != nil {
				return nil, fmt.Errorf("recipient %d: %w", i, err)
			}
			if alg.kind == KindDirect {
				unprotected[HeaderAlgorithm] = alg.tag
			} else {
				protected[HeaderAlgorithm] = alg.tag
			}
		}
		p.alg = alg
		if p.family, err = recipientFamily(alg); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, nil
}

// inferAlgorithm picks the recipient algorithm for a key without one.
func inferAlgorithm(key, sender *Key) (Algorithm, error) {
	kty, err := key.keyType()
	if err != nil {
		return Algorithm{}, err
	}
	switch kty {
	case "Symmetric":
		return LookupAlgorithm(AlgorithmDirect)
	case "EC2", "OKP":
		if sender != nil {
			return LookupAlgorithm(AlgorithmECDHSS)
		}
		return LookupAlgorithm(AlgorithmECDHES)
	default:
		return Algorithm{}, fmt.Errorf("%w: no recipient algorithm for %s keys", ErrUnsupportedAlgorithm, kty)
	}
}

// lookupAlgorithm resolves the algorithm of a header pair, protected first.
func lookupAlgorithm(protected, unprotected HeaderMap) (Algorithm, bool, error) {
	alg, ok, err := protected.Algorithm()
	if err != nil || ok {
		return alg, ok, err
	}
	return unprotected.Algorithm()
}

// contentKey establishes the MAC key for a set of recipients and fills in the
// per-recipient material needed to recover it.
//
// All recipients must share one family. Direct recipients must all hold the
// same secret, key wrap recipients each wrap one random content key and key
// agreement is only allowed for a single recipient.
func contentKey(alg Algorithm, pending []*pendingRecipient, rand io.Reader) ([]byte, error) {
	fam := pending[0].family
	for _, p := range pending[1:] {
		if p.family != fam {
			return nil, fmt.Errorf("%w: %s and %s recipients cannot share a message", ErrIncompatibleRecipients, pending[0].alg, p.alg)
		}
	}
	switch fam {
	case familyDirect:
		var secret []byte
		for i, p := range pending {
			k, err := symmetricSecret(p.key)
			if err != nil {
				return nil, fmt.Errorf("recipient %d: %w", i, err)
			}
			if secret != nil && !bytes.Equal(secret, k) {
				return nil, fmt.Errorf("%w: direct recipients hold different keys", ErrIncompatibleRecipients)
			}
			secret = k
		}
		return secret, nil

	case familyWrap:
		cek := make([]byte, alg.keySize)
		if _, err := io.ReadFull(rand, cek); err != nil {
			return nil, err
		}
		for i, p := range pending {
			kek, err := symmetricSecret(p.key)
			if err != nil {
				return nil, fmt.Errorf("recipient %d: %w", i, err)
			}
			if len(kek) != p.alg.keySize {
				return nil, fmt.Errorf("%w: %s needs a %d byte key, have %d", ErrInvalidKey, p.alg, p.alg.keySize, len(kek))
			}
			if p.ciphertext, err = keywrap.Wrap(kek, cek); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
			}
		}
		return cek, nil

	default:
		if len(pending) != 1 {
			return nil, fmt.Errorf("%w: direct key agreement allows a single recipient", ErrIncompatibleRecipients)
		}
		return agreeSender(alg, pending[0], rand)
	}
}

// agreeSender runs the sender side of ECDH-ES or ECDH-SS and derives the
// content key. The ephemeral or static public key, and for ECDH-SS a fresh
// party U nonce, are added to the recipient's unprotected bucket.
func agreeSender(alg Algorithm, p *pendingRecipient, rand io.Reader) ([]byte, error) {
	peer, err := p.key.publicKey()
	if err != nil {
		return nil, err
	}
	static := p.alg.tag == AlgorithmECDHSS || p.alg.tag == AlgorithmECDHSS512

	var secret []byte
	if static {
		if p.sender == nil {
			return nil, fmt.Errorf("%w: %s needs a sender key", ErrMissingKey, p.alg)
		}
		priv, err := p.sender.privateKey()
		if err != nil {
			return nil, err
		}
		if secret, err = priv.Shared(peer); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		if !p.has(HeaderStaticKey) && !p.has(HeaderStaticKeyID) {
			if err := p.set(HeaderStaticKey, newAgreementKey(priv.PublicKey())); err != nil {
				return nil, err
			}
		}
		if !p.has(HeaderPartyUNonce) {
			nonce := make([]byte, 16)
			if _, err := io.ReadFull(rand, nonce); err != nil {
				return nil, err
			}
			p.unprotected[HeaderPartyUNonce] = nonce
		}
	} else {
		if p.has(HeaderEphemeralKey) {
			return nil, fmt.Errorf("%w: ephemeral key is generated by the sender", ErrDuplicateParameter)
		}
		eph, err := agree.GenerateKey(peer.Curve(), rand)
		if err != nil {
			return nil, err
		}
		if secret, err = eph.Shared(peer); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		if err := p.set(HeaderEphemeralKey, newAgreementKey(eph.PublicKey())); err != nil {
			return nil, err
		}
	}
	protected, err := EncodeProtected(p.protected)
	if err != nil {
		return nil, err
	}
	return deriveKey(p.alg, alg, secret, p.nonce(), protected), nil
}

// has reports whether either bucket of the recipient carries a parameter.
func (p *pendingRecipient) has(id int64) bool {
	_, inProtected := p.protected[id]
	_, inUnprotected := p.unprotected[id]
	return inProtected || inUnprotected
}

// set stores a key parameter in the unprotected bucket.
func (p *pendingRecipient) set(id int64, key *Key) error {
	m, err := key.Translate()
	if err != nil {
		return err
	}
	p.unprotected[id] = m
	return nil
}

// nonce returns the party U nonce, protected bucket first.
func (p *pendingRecipient) nonce() []byte {
	if b, ok := p.protected.Bytes(HeaderPartyUNonce); ok {
		return b
	}
	b, _ := p.unprotected.Bytes(HeaderPartyUNonce)
	return b
}

// encode converts the recipient into its wire structure.
func (p *pendingRecipient) encode() (*coseRecipient, error) {
	protected, err := EncodeProtected(p.protected)
	if err != nil {
		return nil, err
	}
	return &coseRecipient{
		Protected:   protected,
		Unprotected: p.unprotected,
		Ciphertext:  p.ciphertext,
	}, nil
}

// symmetricSecret returns the secret of a symmetric key.
func symmetricSecret(key *Key) ([]byte, error) {
	kty, err := key.keyType()
	if err != nil {
		return nil, err
	}
	if kty != "Symmetric" {
		return nil, fmt.Errorf("%w: %s key where a symmetric one is needed", ErrInvalidKey, kty)
	}
	if len(key.K) == 0 {
		return nil, ErrMissingKey
	}
	return key.K, nil
}

// recipientSecret recovers the content key a decoded recipient carries for
// the given key. Failures carry no detail beyond the logs of the caller.
func recipientSecret(alg Algorithm, r *RecipientInfo, key *Key, o *options) ([]byte, error) {
	ralg, ok, err := lookupAlgorithm(r.ProtectedMap, r.Unprotected)
	if err != nil {
		return nil, err
	}
	if !ok {
		return symmetricSecret(key)
	}
	fam, err := recipientFamily(ralg)
	if err != nil {
		return nil, err
	}
	switch fam {
	case familyDirect:
		return symmetricSecret(key)

	case familyWrap:
		kek, err := symmetricSecret(key)
		if err != nil {
			return nil, err
		}
		cek, err := keywrap.Unwrap(kek, r.Ciphertext)
		if err != nil {
			return nil, err
		}
		if len(cek) != alg.keySize {
			return nil, fmt.Errorf("%w: unwrapped %d byte key for %s", ErrInvalidKey, len(cek), alg)
		}
		return cek, nil

	default:
		priv, err := key.privateKey()
		if err != nil {
			return nil, err
		}
		peer, err := r.peerKey(ralg, o.senderKey)
		if err != nil {
			return nil, err
		}
		secret, err := priv.Shared(peer)
		if err != nil {
			return nil, err
		}
		nonce, ok := r.ProtectedMap.Bytes(HeaderPartyUNonce)
		if !ok {
			nonce, _ = r.Unprotected.Bytes(HeaderPartyUNonce)
		}
		return deriveKey(ralg, alg, secret, nonce, r.Protected), nil
	}
}
