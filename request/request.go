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

// Package request turns one buffered read off a transport into a
// structured Request. Parse copies the buffer into a string once, so every
// string field it exposes is a copy: no field references the buffer passed
// to Parse, and a Request stays valid after that buffer is reused.
package request

import (
	"strconv"
	"strings"

	"github.com/sabouaram/staticd/errcode"
)

// Method is the tagged variant chosen once by the parser; downstream code
// branches on this, never on a string compare against the method token.
type Method uint8

const (
	Unsupported Method = iota
	Get
	Head
	Options
)

// Version is the tagged HTTP version the request line declared.
type Version uint8

const (
	VersionOther Version = iota
	HTTP10
	HTTP11
)

// RangeSpec is the parsed form of a Range header. Absent is the zero value.
type RangeSpec struct {
	Present bool
	// Suffix is true when the grammar was "bytes=-<n>"; Start/End are
	// meaningless in that case and SuffixLen is used instead.
	Suffix    bool
	Start     uint64
	End       uint64
	HasEnd    bool
	SuffixLen uint64
}

// Request is the parsed form of one inbound HTTP message. Every string
// field below is copied out of the buffer supplied to Parse; none of them
// references that buffer.
type Request struct {
	Method    Method
	Path      string
	Version   Version
	Host      string
	KeepAlive bool

	ETagIn    uint32 // parsed from If-None-Match; 0 if absent or unparseable
	HasETagIn bool

	IfModifiedSince  string
	Range            RangeSpec
	UpgradeRequested bool

	// Logged-only negotiation/diagnostic fields; never drive a decision.
	UserAgent      string
	AcceptEncoding string
	AcceptLanguage string
	DNT            string
	SecGPC         string
}

// ParseError carries the HTTP status the pipeline must emit for a request
// that could not be parsed or accepted.
type ParseError struct {
	Status int
	err    error
}

func (p *ParseError) Error() string {
	if p.err != nil {
		return p.err.Error()
	}
	return "parse error"
}

func newParseError(status int, code errcode.Code, msg string) *ParseError {
	return &ParseError{Status: status, err: errcode.New(code, strErr(msg))}
}

type strErr string

func (s strErr) Error() string { return string(s) }

// Parse splits buf on CRLF, extracts the request line, classifies the
// method and version, and binds the headers of interest.
func Parse(buf []byte) (Request, *ParseError) {
	var req Request
	s := string(buf)

	lines := splitLines(s)
	if len(lines) == 0 {
		return req, newParseError(400, errcode.MalformedRequest, "empty request")
	}

	var requestLine string
	var headerLines []string
	for i, l := range lines {
		if l != "" {
			requestLine = l
			headerLines = lines[i+1:]
			break
		}
	}
	if requestLine == "" {
		return req, newParseError(400, errcode.MalformedRequest, "missing request line")
	}

	tokens := strings.Fields(requestLine)
	if len(tokens) != 3 {
		return req, newParseError(400, errcode.MalformedRequest, "malformed request line")
	}

	switch tokens[0] {
	case "GET":
		req.Method = Get
	case "HEAD":
		req.Method = Head
	case "OPTIONS":
		req.Method = Options
	default:
		req.Method = Unsupported
	}

	req.Path = tokens[1]

	switch tokens[2] {
	case "HTTP/1.0":
		req.Version = HTTP10
		req.KeepAlive = false
	case "HTTP/1.1":
		req.Version = HTTP11
		req.KeepAlive = true
	default:
		return req, newParseError(505, errcode.UnsupportedVersion, "unsupported version")
	}

	for _, line := range headerLines {
		if line == "" {
			continue
		}
		name, value, ok := splitHeader(line)
		if !ok {
			continue
		}
		bindHeader(&req, name, value)
	}

	if req.Version == HTTP11 && req.Host == "" {
		return req, newParseError(400, errcode.MalformedRequest, "missing Host header")
	}

	return req, nil
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}

func splitHeader(line string) (name, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	name = strings.TrimSpace(line[:idx])
	value = strings.TrimLeft(line[idx+1:], " \t")
	return name, value, true
}

func bindHeader(req *Request, name, value string) {
	switch strings.ToLower(name) {
	case "host":
		req.Host = value
	case "connection":
		req.KeepAlive = strings.EqualFold(strings.TrimSpace(value), "keep-alive")
	case "user-agent":
		req.UserAgent = value
	case "if-none-match":
		bindETagIn(req, value)
	case "if-modified-since":
		req.IfModifiedSince = value
	case "range":
		req.Range = parseRange(value)
	case "upgrade-insecure-requests":
		req.UpgradeRequested = strings.TrimSpace(value) == "1"
	case "accept-encoding":
		req.AcceptEncoding = value
	case "accept-language":
		req.AcceptLanguage = value
	case "dnt":
		req.DNT = value
	case "sec-gpc":
		req.SecGPC = value
	}
}

func bindETagIn(req *Request, value string) {
	v := strings.Trim(strings.TrimSpace(value), `"`)
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		req.ETagIn = 0
		req.HasETagIn = false
		return
	}
	req.ETagIn = uint32(n)
	req.HasETagIn = true
}

// parseRange recognizes "bytes=<start>-<end>" | "bytes=<start>-" |
// "bytes=-<suffix>". Anything else yields an absent RangeSpec, which the
// emitter treats as "no Range header" (full-response path), per the
// parser's contract that malformed Range never produces an error status.
func parseRange(value string) RangeSpec {
	value = strings.TrimSpace(value)
	const prefix = "bytes="
	if !strings.HasPrefix(value, prefix) {
		return RangeSpec{}
	}
	spec := value[len(prefix):]

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return RangeSpec{}
	}

	startStr := spec[:dash]
	endStr := spec[dash+1:]

	if startStr == "" {
		k, err := strconv.ParseUint(endStr, 10, 64)
		if err != nil {
			return RangeSpec{}
		}
		return RangeSpec{Present: true, Suffix: true, SuffixLen: k}
	}

	s, err := strconv.ParseUint(startStr, 10, 64)
	if err != nil {
		return RangeSpec{}
	}

	if endStr == "" {
		return RangeSpec{Present: true, Start: s}
	}

	e, err := strconv.ParseUint(endStr, 10, 64)
	if err != nil {
		return RangeSpec{}
	}
	return RangeSpec{Present: true, Start: s, End: e, HasEnd: true}
}

// ValidatePath rejects targets containing "..", "//", or an embedded NUL.
// A rejected target must never reach an open() call on its resolved path.
func ValidatePath(path string) bool {
	if strings.Contains(path, "..") {
		return false
	}
	if strings.Contains(path, "//") {
		return false
	}
	if strings.IndexByte(path, 0) >= 0 {
		return false
	}
	return true
}
