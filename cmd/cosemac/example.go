// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"

	"github.com/dark-bio/cose-go/cose"
	"github.com/dark-bio/cose-go/internal/vectors"
)

// createFromExample builds the message an example describes.
func createFromExample(engine *cose.Engine, ex *vectors.Example, options func(aad []byte) []cose.Option) ([]byte, error) {
	layer, mac0, err := ex.Layer()
	if err != nil {
		return nil, err
	}
	if len(layer.Recipients) == 0 {
		return nil, errors.New("example has no recipients")
	}
	aad, err := layer.ExternalAAD()
	if err != nil {
		return nil, err
	}
	headers := cose.Headers{
		Protected:   cose.Header{Extra: layer.Protected},
		Unprotected: cose.Header{Extra: layer.Unprotected},
	}
	payload := []byte(ex.Input.Plaintext)
	opts := options(aad)
	if ex.Input.Detached {
		opts = append(opts, cose.Detached())
	}
	if mac0 {
		key, err := exampleKey(layer.Recipients[0].Key)
		if err != nil {
			return nil, err
		}
		return engine.CreateMac0(headers, payload, key.K, opts...)
	}
	recipients := make([]cose.Recipient, 0, len(layer.Recipients))
	for _, r := range layer.Recipients {
		key, err := exampleKey(r.Key)
		if err != nil {
			return nil, err
		}
		recipient := cose.Recipient{
			Protected:   cose.Header{Extra: r.Protected},
			Unprotected: cose.Header{Extra: r.Unprotected},
			Key:         key,
		}
		if key.Kty != "oct" && key.Kty != "Symmetric" {
			recipient.Key = key.Public()
		}
		if r.Sender != nil {
			if recipient.SenderKey, err = exampleKey(*r.Sender); err != nil {
				return nil, err
			}
		}
		recipients = append(recipients, recipient)
	}
	return engine.Create(headers, payload, recipients, opts...)
}

// readFromExample returns the key and options verifying an example's output
// as its first recipient.
func readFromExample(ex *vectors.Example) (*cose.Key, []cose.Option, error) {
	layer, _, err := ex.Layer()
	if err != nil {
		return nil, nil, err
	}
	if len(layer.Recipients) == 0 {
		return nil, nil, errors.New("example has no recipients")
	}
	aad, err := layer.ExternalAAD()
	if err != nil {
		return nil, nil, err
	}
	opts := []cose.Option{cose.WithExternalAAD(aad)}
	if ex.Input.Detached {
		opts = append(opts, cose.WithDetachedPayload([]byte(ex.Input.Plaintext)))
	}
	r := layer.Recipients[0]
	if r.Sender != nil {
		sender, err := exampleKey(*r.Sender)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, cose.WithSenderKey(sender.Public()))
	}
	key, err := exampleKey(r.Key)
	if err != nil {
		return nil, nil, err
	}
	return key, opts, nil
}

// exampleKey converts an example JWK into a COSE key.
func exampleKey(jwk vectors.JWK) (*cose.Key, error) {
	m, err := jwk.Material()
	if err != nil {
		return nil, err
	}
	key := &cose.Key{Kty: m.Kty, Crv: m.Crv, K: m.K, X: m.X, Y: m.Y, D: m.D, Kid: m.Kid}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return key, nil
}
