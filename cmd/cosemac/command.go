// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dark-bio/cose-go/cbor"
	"github.com/dark-bio/cose-go/cose"
	"github.com/dark-bio/cose-go/internal/base64ext"
	"github.com/dark-bio/cose-go/internal/vectors"
	"github.com/spf13/pflag"
)

// command is a parsed invocation with its flags, config and engine.
type command struct {
	name   string
	flags  *pflag.FlagSet
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	example  string
	in       string
	key      string
	kid      string
	config   string
	logLevel string
	alg      string
	aad      string
	mac0     bool
	detached bool
	untagged bool
	payload  string
	baseIV   string

	cfg    *config
	logger *slog.Logger
	engine *cose.Engine
}

func newCommand(name string, stdin io.Reader, stdout, stderr io.Writer) *command {
	c := &command{name: name, stdin: stdin, stdout: stdout, stderr: stderr}

	c.flags = pflag.NewFlagSet("cosemac "+name, pflag.ContinueOnError)
	c.flags.SetOutput(stderr)
	c.flags.StringVar(&c.example, "example", "", "cose-wg Examples JSON file to take input and keys from")
	c.flags.StringVar(&c.in, "in", "-", "input file, - for stdin")
	c.flags.StringVar(&c.config, "config", "", "YAML config file")
	c.flags.StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	if name != "diag" {
		c.flags.StringVar(&c.key, "key", "", "symmetric key, base64url")
		c.flags.StringVar(&c.kid, "kid", "", "key id to look up in the config file")
		c.flags.StringVar(&c.aad, "aad", "", "external additional data, hex")
	}
	switch name {
	case "create":
		c.flags.StringVar(&c.alg, "alg", "HS256", "MAC algorithm")
		c.flags.BoolVar(&c.mac0, "mac0", false, "emit a COSE_Mac0 instead of a COSE_Mac")
		c.flags.BoolVar(&c.detached, "detached", false, "leave the payload out of the message")
		c.flags.BoolVar(&c.untagged, "untagged", false, "emit the message without its CBOR tag")
	case "read":
		c.flags.StringVar(&c.payload, "payload", "", "file holding the detached payload")
	case "diag":
		c.flags.StringVar(&c.baseIV, "base-iv", "", "base IV to combine with a Partial IV header, hex")
	}
	return c
}

// setup loads the config file and builds the logger and engine. Flags set on
// the command line override config values.
func (c *command) setup() error {
	c.cfg = new(config)
	if c.config != "" {
		cfg, err := loadConfig(c.config)
		if err != nil {
			return err
		}
		c.cfg = cfg
	}
	if c.flags.Changed("log-level") || c.cfg.LogLevel == "" {
		c.cfg.LogLevel = c.logLevel
	}
	if c.flags.Changed("untagged") {
		c.cfg.Untagged = c.untagged
	}
	level, err := c.cfg.level()
	if err != nil {
		return err
	}
	c.logger = slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level})).With("command", c.name)
	c.engine = cose.NewEngine(cose.WithLogger(c.logger))
	return nil
}

// input reads the --in file or stdin.
func (c *command) input() ([]byte, error) {
	if c.in == "-" {
		return io.ReadAll(c.stdin)
	}
	return os.ReadFile(c.in)
}

// message reads a hex encoded message from the input.
func (c *command) message() ([]byte, error) {
	data, err := c.input()
	if err != nil {
		return nil, err
	}
	msg, err := hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
	if err != nil {
		return nil, fmt.Errorf("input is not hex: %w", err)
	}
	return msg, nil
}

// symmetricKey resolves the key from --key, or from --kid via the config.
func (c *command) symmetricKey() ([]byte, error) {
	switch {
	case c.key != "":
		return base64ext.DecodeURLString(c.key)
	case c.kid != "":
		return c.cfg.key(c.kid)
	default:
		return nil, errors.New("no key given, use --key or --kid")
	}
}

// externalAAD decodes the --aad flag.
func (c *command) externalAAD() ([]byte, error) {
	aad, err := hex.DecodeString(c.aad)
	if err != nil {
		return nil, fmt.Errorf("--aad is not hex: %w", err)
	}
	return aad, nil
}

// createOptions collects the per-call options of a create.
func (c *command) createOptions(aad []byte) []cose.Option {
	opts := []cose.Option{cose.WithExternalAAD(aad)}
	if c.detached {
		opts = append(opts, cose.Detached())
	}
	if c.cfg.Untagged {
		opts = append(opts, cose.WithoutTag())
	}
	return opts
}

func createCmd(c *command) error {
	if c.example != "" {
		return c.createExample()
	}
	key, err := c.symmetricKey()
	if err != nil {
		return err
	}
	aad, err := c.externalAAD()
	if err != nil {
		return err
	}
	payload, err := c.input()
	if err != nil {
		return err
	}
	headers := cose.Headers{Protected: cose.Header{Alg: c.alg}}

	var msg []byte
	if c.mac0 {
		msg, err = c.engine.CreateMac0(headers, payload, key, c.createOptions(aad)...)
	} else {
		recipient := cose.Recipient{
			Unprotected: cose.Header{Alg: "direct", Kid: c.kid},
			Key:         cose.SymmetricKey(key),
		}
		msg, err = c.engine.Create(headers, payload, []cose.Recipient{recipient}, c.createOptions(aad)...)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.stdout, hex.EncodeToString(msg))
	return err
}

// createExample builds the message described by an example file and checks
// it against the expected output.
func (c *command) createExample() error {
	ex, err := vectors.ReadFile(c.example)
	if err != nil {
		return err
	}
	msg, err := createFromExample(c.engine, ex, c.createOptions)
	if err != nil {
		return err
	}
	want, err := ex.Output.Bytes()
	if err != nil {
		return err
	}
	match := bytes.Equal(msg, want)
	c.logger.Info("created example message", "title", ex.Title, "matches_output", match, "fail", ex.Fail)
	if !match && !ex.Fail {
		return fmt.Errorf("created message differs from the example output")
	}
	_, err = fmt.Fprintln(c.stdout, hex.EncodeToString(msg))
	return err
}

func readCmd(c *command) error {
	var (
		msg  []byte
		key  *cose.Key
		opts []cose.Option
		fail bool
		err  error
	)
	if c.example != "" {
		var ex *vectors.Example
		if ex, err = vectors.ReadFile(c.example); err != nil {
			return err
		}
		if msg, err = ex.Output.Bytes(); err != nil {
			return err
		}
		if key, opts, err = readFromExample(ex); err != nil {
			return err
		}
		fail = ex.Fail
	} else {
		if msg, err = c.message(); err != nil {
			return err
		}
		secret, err := c.symmetricKey()
		if err != nil {
			return err
		}
		key = cose.SymmetricKey(secret)

		aad, err := c.externalAAD()
		if err != nil {
			return err
		}
		opts = append(opts, cose.WithExternalAAD(aad))
	}
	if c.payload != "" {
		detached, err := os.ReadFile(c.payload)
		if err != nil {
			return err
		}
		opts = append(opts, cose.WithDetachedPayload(detached))
	}
	payload, err := c.engine.ReadWithKey(msg, key, opts...)
	if fail {
		if !errors.Is(err, cose.ErrVerificationFailed) {
			return fmt.Errorf("failing example did not fail verification: %v", err)
		}
		c.logger.Info("example failed verification as expected")
		return nil
	}
	if err != nil {
		return err
	}
	_, err = c.stdout.Write(payload)
	return err
}

func diagCmd(c *command) error {
	var (
		msg []byte
		err error
	)
	if c.example != "" {
		ex, err := vectors.ReadFile(c.example)
		if err != nil {
			return err
		}
		msg, err = ex.Output.Bytes()
		if err != nil {
			return err
		}
	} else if msg, err = c.message(); err != nil {
		return err
	}
	decoded, err := cose.Decode(msg)
	if err != nil {
		return err
	}
	notation, err := cbor.Diagnose(msg)
	if err != nil {
		return err
	}
	alg, _, _ := decoded.Algorithm()

	baseIV, err := hex.DecodeString(c.baseIV)
	if err != nil {
		return fmt.Errorf("invalid base IV: %w", err)
	}
	iv, err := decoded.IV(baseIV)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "type: %v (tagged %v)\n", decoded.Type, decoded.Tagged)
	fmt.Fprintf(c.stdout, "alg: %v\n", alg)
	fmt.Fprintf(c.stdout, "recipients: %d\n", len(decoded.Recipients))
	if iv != nil {
		fmt.Fprintf(c.stdout, "iv: %x\n", iv)
	}
	_, err = fmt.Fprintln(c.stdout, notation)
	return err
}
