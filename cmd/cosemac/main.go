// cose-go: COSE message codec and MAC engine
// Copyright 2025 Dark Bio AG. All rights reserved.
//
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// cosemac creates, verifies and inspects COSE_Mac and COSE_Mac0 messages.
//
// Usage:
//
//	cosemac create [flags]
//	cosemac read [flags]
//	cosemac diag [flags]
//
// Messages are exchanged as hex text. Keys are given as base64url on the
// command line, or by key id from the keys section of a YAML config file.
// An --example flag takes a cose-wg Examples JSON file and uses its input
// layer, keys and expected output instead.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run executes a single cosemac invocation.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errors.New("no command given")
	}
	cmd, args := args[0], args[1:]

	var handler func(*command) error
	switch cmd {
	case "create":
		handler = createCmd
	case "read":
		handler = readCmd
	case "diag":
		handler = diagCmd
	case "help", "--help", "-h":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}
	c := newCommand(cmd, stdin, stdout, stderr)
	if err := c.flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if c.flags.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", c.flags.Arg(0))
	}
	if err := c.setup(); err != nil {
		return err
	}
	return handler(c)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `cosemac creates, verifies and inspects COSE MAC messages.

Usage:
  cosemac create [flags]   authenticate a payload, print the message as hex
  cosemac read [flags]     verify a hex message, print its payload
  cosemac diag [flags]     print a hex message in CBOR diagnostic notation

Examples:
  cosemac create --in payload.bin --key hJtXIZ2u... --alg HS256
  cosemac read --in message.hex --config keys.yaml --kid our-secret
  cosemac read --example HMac-01.json

Run "cosemac <command> --help" for the flags of a command.
`)
}
