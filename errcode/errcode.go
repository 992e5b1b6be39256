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

// Package errcode provides coded, chainable errors for the static server.
//
// Every error the core raises carries a small numeric Code naming its kind
// (a plain enumeration, not an HTTP status number) plus an
// optional parent error chain, so a caller can branch on Code() without
// string-matching Error() and still retain the original cause via Unwrap.
package errcode

import (
	"fmt"
	"runtime"
)

// Code classifies an error the way an HTTP status code classifies a response.
type Code uint16

const (
	Unknown Code = iota
	MalformedRequest
	UnsupportedVersion
	UnsupportedMethod
	ForbiddenPath
	NotFound
	PermissionDenied
	UnsatisfiableRange
	PeerReset
	TransportFailure
	TLSHandshakeFailure
	QueueFull
	CatalogBuildFailure
	ServerStart
	ServerStop
	ConfigInvalid
)

var messages = map[Code]string{
	Unknown:             "unknown error",
	MalformedRequest:    "malformed request",
	UnsupportedVersion:  "unsupported HTTP version",
	UnsupportedMethod:   "unsupported HTTP method",
	ForbiddenPath:       "forbidden path",
	NotFound:            "resource not found",
	PermissionDenied:    "permission denied",
	UnsatisfiableRange:  "range not satisfiable",
	PeerReset:           "peer reset connection",
	TransportFailure:    "transport read/write failure",
	TLSHandshakeFailure: "TLS handshake failed",
	QueueFull:           "work queue is full",
	CatalogBuildFailure: "catalog build failed",
	ServerStart:         "server failed to start",
	ServerStop:          "server failed to stop cleanly",
	ConfigInvalid:       "configuration is invalid",
}

// Error is a coded error that can wrap a parent cause and records the call
// site where it was raised.
type Error interface {
	error
	Code() Code
	Unwrap() error
	Is(code Code) bool
}

type coded struct {
	code   Code
	parent error
	frame  runtime.Frame
}

// New builds a coded error with the given parent cause, which may be nil.
func New(code Code, parent error) Error {
	pc, _, _, _ := runtime.Caller(1)
	frames := runtime.CallersFrames([]uintptr{pc})
	fr, _ := frames.Next()

	return &coded{
		code:   code,
		parent: parent,
		frame:  fr,
	}
}

func (e *coded) Code() Code {
	if e == nil {
		return Unknown
	}
	return e.code
}

func (e *coded) Error() string {
	if e == nil {
		return ""
	}

	msg, ok := messages[e.code]
	if !ok {
		msg = "unregistered error code"
	}

	if e.parent == nil {
		return fmt.Sprintf("%s (%s:%d)", msg, e.frame.File, e.frame.Line)
	}

	return fmt.Sprintf("%s (%s:%d): %s", msg, e.frame.File, e.frame.Line, e.parent.Error())
}

func (e *coded) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.parent
}

func (e *coded) Is(code Code) bool {
	if e == nil {
		return false
	}
	return e.code == code
}
