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

// Package pipeline drives one worker's read-parse-decide-emit-repeat loop
// over a single transport, for as long as the connection stays keep-alive.
package pipeline

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sabouaram/staticd/catalog"
	"github.com/sabouaram/staticd/logging"
	"github.com/sabouaram/staticd/metrics"
	"github.com/sabouaram/staticd/request"
	"github.com/sabouaram/staticd/response"
	"github.com/sabouaram/staticd/transport"
)

const readBufSize = 8 * 1024

// Config bundles the collaborators one connection's pipeline run needs.
type Config struct {
	Webroot string
	Catalog *catalog.Catalog
	Log     logging.Logger
	Opener  response.Opener

	// ReadTimeout, when non-zero, is set as a read deadline on tr before
	// every read so a stalled client can't pin a worker forever.
	ReadTimeout time.Duration
}

// Run drives tr to completion: it reads, parses, decides, and emits
// responses in a loop until the peer closes, a non-keep-alive response is
// sent, or a read/parse error forces the connection closed.
func Run(tr transport.Transport, peer string, cfg Config) {
	defer func() { _ = tr.Close() }()

	opener := cfg.Opener
	if opener == nil {
		opener = response.OSOpen
	}

	// One correlation ID per connection, not per request: it lets log
	// lines from the same keep-alive socket be grouped even though they
	// span several loop iterations.
	connID := uuid.NewString()

	for {
		if cfg.ReadTimeout > 0 {
			_ = tr.SetDeadline(time.Now().Add(cfg.ReadTimeout))
		}

		buf := make([]byte, readBufSize)
		n, err := tr.Read(buf)
		if n == 0 || err != nil {
			return
		}
		buf = buf[:n]
		if cfg.ReadTimeout > 0 {
			// Clear the deadline so it bounds only the read, not the
			// response writes that follow.
			_ = tr.SetDeadline(time.Time{})
		}

		req, perr := request.Parse(buf)
		if perr != nil {
			writeParseError(tr, perr, cfg.Log, connID)
			return
		}

		pathValid := request.ValidatePath(req.Path)
		resolved := response.ResolvePath(cfg.Webroot, req.Path)

		entry, ok := catalog.Entry{}, false
		if cfg.Catalog != nil {
			entry, ok = cfg.Catalog.Lookup(resolved)
		}

		plan := response.Decide(response.Input{
			Req:          req,
			PathValid:    pathValid,
			ResolvedPath: resolved,
			Host:         req.Host,
			TransportTLS: tr.IsTLS(),
			Entry:        entry,
			EntryOK:      ok,
			Opener:       opener,
		})

		keepAlive, serveErr := response.Serve(tr, req, plan, cfg.Log)
		metrics.RequestsTotal.WithLabelValues(strconv.Itoa(plan.Status)).Inc()
		if serveErr != nil {
			cfg.Log.Entry(logging.WarnLevel, "transport write failure").
				Field("conn_id", connID).Field("peer", peer).Field("error", serveErr.Error()).Log()
			return
		}

		cfg.Log.Entry(logging.InfoLevel, "request served").
			Field("conn_id", connID).Field("peer", peer).
			Field("path", req.Path).Field("status", plan.Status).
			Field("user_agent", req.UserAgent).Field("accept_encoding", req.AcceptEncoding).
			Field("accept_language", req.AcceptLanguage).Field("dnt", req.DNT).Field("sec_gpc", req.SecGPC).Log()

		if !keepAlive {
			return
		}
	}
}

// writeParseError reuses Serve's header-composition path without
// constructing a full Plan for a request that never finished parsing.
func writeParseError(tr transport.Transport, perr *request.ParseError, log logging.Logger, connID string) {
	status := perr.Status
	req := request.Request{} // unparsed; keep-alive defaults to false
	plan := response.Plan{Status: status}
	metrics.RequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	if _, err := response.Serve(tr, req, plan, log); err != nil {
		log.Entry(logging.WarnLevel, "failed writing parse-error response").
			Field("conn_id", connID).Field("error", err.Error()).Log()
	}
}
