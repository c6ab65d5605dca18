// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cose

import (
	"crypto/rand"
	"io"
	"log/slog"
)

// Engine creates and verifies MAC messages. It is immutable after
// construction and safe for concurrent use.
type Engine struct {
	provider Provider
	logger   *slog.Logger
	rand     io.Reader
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithProvider sets the MAC provider. The default is DefaultProvider; a nil
// provider keeps it.
func WithProvider(provider Provider) EngineOption {
	return func(e *Engine) {
		if provider != nil {
			e.provider = provider
		}
	}
}

// WithLogger sets the logger for debug output. Key material, tags and
// payloads are never logged. The default, also used for a nil logger,
// discards everything.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRand sets the randomness source for content keys, ephemeral keys and
// nonces. The default, also used for a nil reader, is crypto/rand.
func WithRand(r io.Reader) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.rand = r
		}
	}
}

// NewEngine creates an engine with the given options.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		provider: DefaultProvider{},
		logger:   slog.New(slog.DiscardHandler),
		rand:     rand.Reader,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// defaultEngine backs the package level functions.
var defaultEngine = NewEngine()

// Option configures a single create or read call.
type Option func(*options)

type options struct {
	externalAAD []byte
	detached    bool
	payload     []byte
	hasPayload  bool
	untagged    bool
	messageType MessageType
	senderKey   *Key
}

func newOptions(opts []Option) *options {
	o := new(options)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithExternalAAD binds externally supplied data into the tag.
func WithExternalAAD(aad []byte) Option {
	return func(o *options) {
		o.externalAAD = aad
	}
}

// Detached leaves the payload out of a created message, encoding it as nil.
// The payload is still covered by the tag and must be supplied on read with
// WithDetachedPayload.
func Detached() Option {
	return func(o *options) {
		o.detached = true
	}
}

// WithDetachedPayload supplies the payload of a message created with Detached.
func WithDetachedPayload(payload []byte) Option {
	return func(o *options) {
		o.payload = payload
		o.hasPayload = true
	}
}

// WithoutTag emits the message without its CBOR tag.
func WithoutTag() Option {
	return func(o *options) {
		o.untagged = true
	}
}

// WithMessageType sets the message form assumed for untagged input.
func WithMessageType(t MessageType) Option {
	return func(o *options) {
		o.messageType = t
	}
}

// WithSenderKey supplies the sender's static public key for ECDH-SS
// recipients that only reference it by static_key_id.
func WithSenderKey(key *Key) Option {
	return func(o *options) {
		o.senderKey = key
	}
}
