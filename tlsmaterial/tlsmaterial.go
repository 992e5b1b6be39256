/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package tlsmaterial loads and validates the PEM certificate/key pair the
// acceptor needs to terminate TLS. It is the "opaque secure transport"
// collaborator the pipeline never reaches into directly.
package tlsmaterial

import (
	"crypto/tls"
	"fmt"

	"github.com/sabouaram/staticd/errcode"
)

// Material is a loaded, verified certificate/key pair ready to hand to a
// *tls.Config. A nil Material means "no TLS configured".
type Material struct {
	cert tls.Certificate
}

// Load reads certFile/keyFile from disk and verifies the key matches the
// certificate. A mismatch is fatal at startup, never discovered mid-handshake.
func Load(certFile, keyFile string) (*Material, error) {
	if certFile == "" || keyFile == "" {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, errcode.New(errcode.ConfigInvalid, fmt.Errorf("loading TLS material: %w", err))
	}

	return &Material{cert: cert}, nil
}

// Config builds a *tls.Config serving this material, or nil if no material
// was loaded (cleartext only).
func (m *Material) Config() *tls.Config {
	if m == nil {
		return nil
	}

	return &tls.Config{
		Certificates: []tls.Certificate{m.cert},
		MinVersion:   tls.VersionTLS12,
	}
}

// Present reports whether TLS material was actually loaded.
func (m *Material) Present() bool {
	return m != nil
}
