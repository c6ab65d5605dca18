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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dark-bio/cose-go/cose"
)

const (
	ourSecret = "hJtXIZ2uSN5kbQfbtTNWbpdmhkV8FJG-Onbc6mxCcYg"
	content   = "This is the content."

	// HMac-01 of the cose-wg examples
	hmac01 = "d8618543a10105a054546869732069732074686520636f6e74656e742e58202bdcc89f058216b8a208ddc6d8b54aa91f48bd63484986565105c9ad5a6682f6818340a20125044a6f75722d73656372657440"
)

// invoke runs the tool with the given stdin and returns its stdout and stderr.
func invoke(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	err := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

// writeFile writes a file into a temporary directory and returns its path.
func writeFile(t *testing.T, name, data string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestCreate(t *testing.T) {
	stdout, _, err := invoke(t, content, "create", "--key", ourSecret, "--kid", "our-secret")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if have := strings.TrimSpace(stdout); have != hmac01 {
		t.Fatalf("message mismatch:\nhave %s\nwant %s", have, hmac01)
	}
}

func TestCreateRead(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", fmt.Sprintf("keys:\n  our-secret: %s\n", ourSecret))

	tests := [][]string{
		{},
		{"--mac0"},
		{"--alg", "HS512", "--aad", "0011"},
		{"--alg", "AES-MAC-256/64", "--untagged"},
	}
	for i, flags := range tests {
		t.Run(fmt.Sprintf("test %d", i), func(t *testing.T) {
			args := append([]string{"create", "--config", cfgPath, "--kid", "our-secret"}, flags...)
			msg, _, err := invoke(t, content, args...)
			if err != nil {
				t.Fatalf("create failed: %v", err)
			}
			args = []string{"read", "--config", cfgPath, "--kid", "our-secret"}
			for j, flag := range flags {
				if flag == "--aad" {
					args = append(args, flag, flags[j+1])
				}
			}
			payload, _, err := invoke(t, msg, args...)
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}
			if payload != content {
				t.Fatalf("payload mismatch: %q", payload)
			}
		})
	}
}

func TestReadWrongKey(t *testing.T) {
	_, _, err := invoke(t, hmac01, "read", "--key", "AAAAAAAAAAAAAAAAAAAAAA")
	if !errors.Is(err, cose.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
}

func TestDetached(t *testing.T) {
	msg, _, err := invoke(t, content, "create", "--key", ourSecret, "--mac0", "--detached")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, _, err := invoke(t, msg, "read", "--key", ourSecret); !errors.Is(err, cose.ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
	payload := writeFile(t, "payload.txt", content)
	have, _, err := invoke(t, msg, "read", "--key", ourSecret, "--payload", payload)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if have != content {
		t.Fatalf("payload mismatch: %q", have)
	}
}

// Tests that every bundled example can be recreated and verified.
func TestExamples(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "cose", "testdata", "*.json"))
	if err != nil || len(paths) == 0 {
		t.Fatalf("no examples found: %v", err)
	}
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			if _, _, err := invoke(t, "", "create", "--example", path); err != nil {
				t.Fatalf("create failed: %v", err)
			}
			payload, stderr, err := invoke(t, "", "read", "--example", path, "--log-level", "info")
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}
			if strings.HasSuffix(path, "-fail.json") {
				if payload != "" || !strings.Contains(stderr, "failed verification as expected") {
					t.Fatalf("failing example not reported: %q, %q", payload, stderr)
				}
				return
			}
			if payload != content {
				t.Fatalf("payload mismatch: %q", payload)
			}
		})
	}
}

func TestDiag(t *testing.T) {
	stdout, _, err := invoke(t, hmac01, "diag")
	if err != nil {
		t.Fatalf("diag failed: %v", err)
	}
	for _, want := range []string{"type: COSE_Mac (tagged true)", "alg: HS256", "recipients: 1", "97(["} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output misses %q:\n%s", want, stdout)
		}
	}
	if _, _, err := invoke(t, "d1", "diag"); !errors.Is(err, cose.ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
}

// Tests that debug logs go to stderr and flags override the config file.
// Tests that diag reports the IV built from a Partial IV and the base IV.
func TestDiagIV(t *testing.T) {
	msg, err := cose.CreateMac0(cose.Headers{
		Protected:   cose.Header{Alg: "HS256"},
		Unprotected: cose.Header{PartialIV: []byte{0x61, 0xa7}},
	}, []byte(content), make([]byte, 32))
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	stdin := hex.EncodeToString(msg)

	stdout, _, err := invoke(t, stdin, "diag", "--base-iv", "89f52f65a1c580933b5261a7")
	if err != nil {
		t.Fatalf("diag failed: %v", err)
	}
	if !strings.Contains(stdout, "iv: 89f52f65a1c580933b520000") {
		t.Fatalf("output misses the full IV:\n%s", stdout)
	}
	if _, _, err := invoke(t, stdin, "diag"); !errors.Is(err, cose.ErrInvalidIV) {
		t.Fatalf("expected ErrInvalidIV, got %v", err)
	}
	if _, _, err := invoke(t, stdin, "diag", "--base-iv", "zz"); err == nil {
		t.Fatal("invalid base IV accepted")
	}
	stdout, _, err = invoke(t, hmac01, "diag")
	if err != nil {
		t.Fatalf("diag failed: %v", err)
	}
	if strings.Contains(stdout, "iv: ") {
		t.Fatalf("IV reported for a message without one:\n%s", stdout)
	}
}

func TestLogLevel(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", "log_level: error\n")

	_, stderr, err := invoke(t, hmac01, "read", "--key", ourSecret, "--config", cfgPath)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if stderr != "" {
		t.Fatalf("unexpected log output: %s", stderr)
	}
	_, stderr, err = invoke(t, hmac01, "read", "--key", ourSecret, "--config", cfgPath, "--log-level", "debug")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(stderr, "verified MAC message") || !strings.Contains(stderr, "command=read") {
		t.Fatalf("debug log missing: %s", stderr)
	}
	if strings.Contains(stderr, ourSecret) {
		t.Fatalf("log leaks the key: %s", stderr)
	}
}

func TestUntaggedConfig(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", "untagged: true\n")

	stdout, _, err := invoke(t, content, "create", "--key", ourSecret, "--config", cfgPath)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !strings.HasPrefix(stdout, "85") {
		t.Fatalf("message is tagged: %s", stdout)
	}
	stdout, _, err = invoke(t, content, "create", "--key", ourSecret, "--config", cfgPath, "--untagged=false")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !strings.HasPrefix(stdout, "d861") {
		t.Fatalf("flag did not override config: %s", stdout)
	}
}

func TestErrors(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", "keys:\n  a: '!!!'\n")
	unknown := writeFile(t, "unknown.yaml", "log_levle: debug\n")

	tests := []struct {
		stdin string
		args  []string
	}{
		{"", nil},
		{"", []string{"frobnicate"}},
		{content, []string{"create"}},
		{content, []string{"create", "--key", ourSecret, "extra"}},
		{content, []string{"create", "--key", ourSecret, "--alg", "HS000"}},
		{content, []string{"create", "--key", ourSecret, "--alg", "ES256"}},
		{content, []string{"create", "--key", ourSecret, "--aad", "xyz"}},
		{content, []string{"create", "--key", "not base64!"}},
		{content, []string{"create", "--config", cfgPath, "--kid", "a"}},
		{content, []string{"create", "--config", cfgPath, "--kid", "b"}},
		{content, []string{"create", "--key", ourSecret, "--config", unknown}},
		{content, []string{"create", "--key", ourSecret, "--log-level", "loud"}},
		{content, []string{"create", "--key", ourSecret, "--config", "missing.yaml"}},
		{"zz", []string{"read", "--key", ourSecret}},
		{"", []string{"read", "--example", "missing.json"}},
		{"", []string{"diag", "--key", ourSecret}},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("test %d", i), func(t *testing.T) {
			if _, _, err := invoke(t, tt.stdin, tt.args...); err == nil {
				t.Fatalf("args %q should fail", tt.args)
			}
		})
	}
}

func TestHelp(t *testing.T) {
	stdout, _, err := invoke(t, "", "help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	if !strings.Contains(stdout, "cosemac create") {
		t.Fatalf("usage missing: %s", stdout)
	}
	if _, stderr, err := invoke(t, "", "read", "--help"); err != nil || !strings.Contains(stderr, "--payload") {
		t.Fatalf("read help missing: %v %s", err, stderr)
	}
}
