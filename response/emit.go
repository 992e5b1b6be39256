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

// Package response builds and streams the status line, headers, and body
// for one request, including the byte-range state machine and the
// conditional-request short-circuits. It is driven by the pipeline; it
// never reaches back into the transport layer for anything but Write.
package response

import (
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/sabouaram/staticd/catalog"
	"github.com/sabouaram/staticd/logging"
	"github.com/sabouaram/staticd/mimetype"
	"github.com/sabouaram/staticd/request"
)

const streamBufSize = 64 * 1024

// ResolvePath maps a request target to a filesystem path under webroot,
// substituting /landing.html for the bare root. The target is appended
// as-is to the cleaned webroot/webpages prefix: no ".." normalization is
// performed on it; request.ValidatePath must have already rejected traversal.
func ResolvePath(webroot, target string) string {
	if target == "/" {
		target = "/landing.html"
	}
	return path.Join(webroot, "webpages") + target
}

// Input bundles everything Decide needs to run the status-selection state
// machine for one request.
type Input struct {
	Req          request.Request
	PathValid    bool
	ResolvedPath string
	Host         string
	TransportTLS bool
	Entry        catalog.Entry
	EntryOK      bool
	Opener       Opener
}

// Plan is the fully-resolved outcome of the state machine: the status to
// emit, the headers to compose, and (for 200/206) the open file and range
// to stream.
type Plan struct {
	Status   int
	Location string // 301 only
	Entry    catalog.Entry
	EntryOK  bool
	File     File
	Range    ResolvedRange
	HasRange bool
	Size     int64
}

// Decide runs the status-selection state machine (first match wins, per
// the component design) without performing any I/O against the transport.
func Decide(in Input) Plan {
	if in.Req.Method == request.Unsupported {
		return Plan{Status: 501}
	}

	if in.Req.Method == request.Options {
		return Plan{Status: 200}
	}

	if !in.PathValid {
		return Plan{Status: 403}
	}

	if in.Req.UpgradeRequested && !in.TransportTLS {
		loc := fmt.Sprintf("https://%s%s", in.Host, in.Req.Path)
		return Plan{Status: 301, Location: loc}
	}

	if in.EntryOK {
		if in.Req.HasETagIn && in.Req.ETagIn == in.Entry.ContentFingerprint {
			return Plan{Status: 304, Entry: in.Entry, EntryOK: true}
		}
		if in.Req.IfModifiedSince != "" && catalog.CompareModified(in.Req.IfModifiedSince, in.Entry.LastModified) {
			return Plan{Status: 304, Entry: in.Entry, EntryOK: true}
		}
	}

	f, err := in.Opener(in.ResolvedPath)
	if err != nil {
		status := 500
		if os.IsNotExist(err) {
			status = 404
		} else if os.IsPermission(err) {
			status = 403
		}
		return Plan{Status: status, Entry: in.Entry, EntryOK: in.EntryOK}
	}

	size, err := f.Size()
	if err != nil {
		_ = f.Close()
		return Plan{Status: 500, Entry: in.Entry, EntryOK: in.EntryOK}
	}

	if in.Req.Range.Present {
		rr := ResolveRange(in.Req.Range, uint64(size))
		if !rr.Satisfiable {
			_ = f.Close()
			return Plan{Status: 416, Entry: in.Entry, EntryOK: in.EntryOK, Size: size}
		}
		return Plan{Status: 206, Entry: in.Entry, EntryOK: in.EntryOK, File: f, Range: rr, HasRange: true, Size: size}
	}

	return Plan{Status: 200, Entry: in.Entry, EntryOK: in.EntryOK, File: f, Size: size}
}

// Writer is the sink the emitter streams headers and body to. transport.Transport
// satisfies it.
type Writer interface {
	Write(buf []byte) (int, error)
}

// Serve executes the decided Plan against w: composes the status line and
// headers, then streams the body (suppressed for HEAD). It reports whether
// the connection may be reused, and the error if the header write failed.
func Serve(w Writer, req request.Request, plan Plan, log logging.Logger) (keepAlive bool, err error) {
	var headers strings.Builder

	status := plan.Status
	fmt.Fprintf(&headers, "HTTP/1.1 %d %s\r\n", status, Reason(status))

	// A 304 always closes, even on a keep-alive request; only a 200/206
	// (a streamed body, or the 200 answering OPTIONS) leaves the connection
	// reusable.
	wantKeepAlive := req.KeepAlive && (status == 200 || status == 206)

	switch {
	case req.Method == request.Options:
		headers.WriteString("Allow: GET, HEAD, OPTIONS\r\n")
		headers.WriteString("Content-Length: 0\r\n")
		headers.WriteString(connectionHeader(wantKeepAlive))
	case status == 200:
		writeFileHeaders(&headers, req, plan, plan.Size, wantKeepAlive)
	case status == 206:
		writeFileHeaders(&headers, req, plan, int64(plan.Range.Length()), wantKeepAlive)
		fmt.Fprintf(&headers, "Content-Range: bytes %d-%d/%d\r\n", plan.Range.Start, plan.Range.End, plan.Size)
	case status == 304:
		fmt.Fprintf(&headers, "Date: %s\r\n", catalog.FormatModTime(time.Now().UTC()))
		writeValidators(&headers, plan)
		headers.WriteString(connectionHeader(wantKeepAlive))
	case status == 301:
		fmt.Fprintf(&headers, "Location: %s\r\n", plan.Location)
		fmt.Fprintf(&headers, "Date: %s\r\n", catalog.FormatModTime(time.Now().UTC()))
		headers.WriteString("Connection: close\r\n")
	case status == 416:
		// Unlike the other error statuses, 416 carries only the valid-range
		// hint and an empty body.
		fmt.Fprintf(&headers, "Content-Range: bytes */%d\r\n", plan.Size)
		headers.WriteString("Content-Length: 0\r\n")
		headers.WriteString("Connection: close\r\n")
	default:
		writeErrorHeaders(&headers, status)
	}

	headers.WriteString("\r\n")

	if _, werr := w.Write([]byte(headers.String())); werr != nil {
		closeIfOpen(plan)
		return false, werr
	}

	if req.Method == request.Options {
		return wantKeepAlive, nil
	}

	switch status {
	case 301, 304, 416:
		return wantKeepAlive, nil
	case 200, 206:
		ok := streamBody(w, plan, req.Method == request.Head, log)
		return wantKeepAlive && ok, nil
	default:
		if req.Method != request.Head {
			_, _ = w.Write(renderErrorBody(status))
		}
		return false, nil
	}
}

func writeFileHeaders(b *strings.Builder, req request.Request, plan Plan, length int64, keepAlive bool) {
	ext := path.Ext(plan.nameForMime(req))
	fmt.Fprintf(b, "Content-Type: %s\r\n", mimetype.Resolve(ext))
	fmt.Fprintf(b, "Content-Length: %d\r\n", length)
	b.WriteString("Accept-Ranges: bytes\r\n")
	fmt.Fprintf(b, "Date: %s\r\n", catalog.FormatModTime(time.Now().UTC()))
	writeValidators(b, plan)
	b.WriteString(connectionHeader(keepAlive))
}

func (p Plan) nameForMime(req request.Request) string {
	target := req.Path
	if target == "/" {
		target = "/landing.html"
	}
	return target
}

func writeValidators(b *strings.Builder, plan Plan) {
	if !plan.EntryOK {
		return
	}
	fmt.Fprintf(b, "Last-Modified: %s\r\n", plan.Entry.LastModified)
	fmt.Fprintf(b, "ETag: \"%s\"\r\n", strconv.FormatUint(uint64(plan.Entry.ContentFingerprint), 10))
}

func writeErrorHeaders(b *strings.Builder, status int) {
	b.WriteString("Content-Type: text/html\r\n")
	body := renderErrorBody(status)
	fmt.Fprintf(b, "Content-Length: %d\r\n", len(body))
	b.WriteString("Connection: close\r\n")
}

func connectionHeader(keepAlive bool) string {
	if keepAlive {
		return "Connection: keep-alive\r\n"
	}
	return "Connection: close\r\n"
}

func closeIfOpen(plan Plan) {
	if plan.File != nil {
		_ = plan.File.Close()
	}
}

// streamBody seeks to the range start and copies up to streamBufSize at a
// time. A peer reset mid-write is expected and non-fatal: the bytes sent
// so far stand, the response ends cleanly, and the connection is not
// reused regardless of what the caller requested.
func streamBody(w Writer, plan Plan, headOnly bool, log logging.Logger) bool {
	defer closeIfOpen(plan)

	if plan.File == nil || headOnly {
		return true
	}

	start := int64(0)
	remaining := plan.Size
	if plan.HasRange {
		start = int64(plan.Range.Start)
		remaining = int64(plan.Range.Length())
	}

	if _, err := plan.File.Seek(start, io.SeekStart); err != nil {
		log.Entry(logging.WarnLevel, "seek failed before streaming body").Field("error", err.Error()).Log()
		return false
	}

	buf := make([]byte, streamBufSize)
	var sent int64
	for remaining > 0 {
		chunk := int64(len(buf))
		if remaining < chunk {
			chunk = remaining
		}
		n, rerr := plan.File.Read(buf[:chunk])
		if n > 0 {
			if wn, werr := w.Write(buf[:n]); werr != nil {
				log.Entry(logging.InfoLevel, "peer reset during body write").
					Field("bytesSent", sent+int64(wn)).Log()
				return false
			}
			sent += int64(n)
			remaining -= int64(n)
		}
		if rerr != nil {
			if rerr != io.EOF {
				log.Entry(logging.WarnLevel, "short read streaming body").Field("error", rerr.Error()).Log()
			}
			break
		}
	}

	return true
}
