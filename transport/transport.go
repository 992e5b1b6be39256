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

// Package transport is the uniform read/write/close surface the pipeline
// drives regardless of whether the underlying connection is cleartext or
// TLS-framed. The pipeline never branches on which variant it holds; only
// the constructors below know the difference.
package transport

import (
	"net"
	"time"
)

// Transport is the capability set a worker needs from a connection.
type Transport interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Close() error
	SetDeadline(t time.Time) error
	RemoteAddr() net.Addr
	// IsTLS reports whether this transport terminated a TLS handshake, for
	// the upgrade-redirect decision in the response emitter. The pipeline
	// consults this one bit; it never inspects the transport otherwise.
	IsTLS() bool
}

type plain struct {
	conn net.Conn
}

// NewPlain wraps a raw, already-accepted TCP connection.
func NewPlain(conn net.Conn) Transport {
	return &plain{conn: conn}
}

func (p *plain) Read(buf []byte) (int, error)  { return p.conn.Read(buf) }
func (p *plain) Write(buf []byte) (int, error) { return p.conn.Write(buf) }
func (p *plain) Close() error                  { return p.conn.Close() }
func (p *plain) SetDeadline(t time.Time) error { return p.conn.SetDeadline(t) }
func (p *plain) RemoteAddr() net.Addr          { return p.conn.RemoteAddr() }
func (p *plain) IsTLS() bool                   { return false }

type secure struct {
	conn TLSConn
}

// TLSConn is the subset of *tls.Conn the transport needs, so tests can
// substitute a fake without standing up a real handshake.
type TLSConn interface {
	net.Conn
	CloseWrite() error
}

// NewTLS wraps a connection that has already completed a TLS handshake.
func NewTLS(conn TLSConn) Transport {
	return &secure{conn: conn}
}

func (s *secure) Read(buf []byte) (int, error)  { return s.conn.Read(buf) }
func (s *secure) Write(buf []byte) (int, error) { return s.conn.Write(buf) }

// Close performs an orderly shutdown (half-close the write side) before
// closing the underlying descriptor, so the peer sees a clean close_notify.
func (s *secure) Close() error {
	_ = s.conn.CloseWrite()
	return s.conn.Close()
}

func (s *secure) SetDeadline(t time.Time) error { return s.conn.SetDeadline(t) }
func (s *secure) RemoteAddr() net.Addr          { return s.conn.RemoteAddr() }
func (s *secure) IsTLS() bool                   { return true }
