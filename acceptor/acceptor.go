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

// Package acceptor owns the two listening sockets and feeds accepted
// connections to the worker pool.
//
// net.Listener has no portable deadline-based Accept, so rather than a
// readiness poll over both sockets, each listener runs its own Accept
// loop in its own goroutine, and shutdown is delivered by closing the
// listener, which unblocks Accept immediately with a
// use-of-closed-network-connection error.
package acceptor

import (
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sabouaram/staticd/catalog"
	"github.com/sabouaram/staticd/logging"
	"github.com/sabouaram/staticd/pipeline"
	"github.com/sabouaram/staticd/tlsmaterial"
	"github.com/sabouaram/staticd/transport"
	"github.com/sabouaram/staticd/workerpool"
)

// defaultReadTimeout applies when the configuration record leaves
// ReadTimeout at its zero value.
const defaultReadTimeout = time.Second

// Pool is the subset of workerpool.Pool the acceptor drives.
type Pool interface {
	Submit(job workerpool.Job) bool
	WaitIdle()
}

// Config bundles everything the acceptor loop needs for its lifetime.
type Config struct {
	Webroot      string
	CatalogRoot  string
	ExcludeGlobs []string
	TLS          *tlsmaterial.Material
	Pool         Pool
	Log          logging.Logger

	// ReadTimeout bounds stuck reads on an accepted connection, inherited
	// from the listening socket's configured default. Zero selects
	// defaultReadTimeout.
	ReadTimeout time.Duration

	// Shutdown and Refresh are the two async control flags described by
	// the concurrency model: the acceptor samples them, nothing else does.
	Shutdown *atomic.Bool
	Refresh  *atomic.Bool
}

// Acceptor owns the two listeners and the currently-published catalog
// handle.
type Acceptor struct {
	cfg Config

	catalogHandle atomic.Pointer[catalog.Catalog]
	watcher       *catalog.Watcher

	plain net.Listener
	tls   net.Listener

	wg sync.WaitGroup
}

// New builds an Acceptor bound to plainLn and, if cfg.TLS is present,
// tlsLn. tlsLn may be nil when no TLS material was configured. A
// filesystem watcher on the document root is started alongside the
// operator-driven refresh flag; either one ends up flipping cfg.Refresh.
func New(cfg Config, plainLn, tlsLn net.Listener) (*Acceptor, error) {
	c, err := catalog.Build(catalog.Options{Root: cfg.CatalogRoot, ExcludeGlobs: cfg.ExcludeGlobs, Log: cfg.Log})
	if err != nil {
		return nil, err
	}

	watcher, err := catalog.NewWatcher(cfg.CatalogRoot, cfg.Log)
	if err != nil && cfg.Log != nil {
		cfg.Log.Entry(logging.WarnLevel, "catalog watcher unavailable, falling back to signal-only refresh").
			Field("error", err.Error()).Log()
	}

	a := &Acceptor{cfg: cfg, plain: plainLn, tls: tlsLn, watcher: watcher}
	a.catalogHandle.Store(c)
	return a, nil
}

// Run starts accepting on both listeners and blocks until Shutdown is
// observed and both accept loops have returned.
func (a *Acceptor) Run() {
	a.wg.Add(1)
	go a.acceptLoop(a.plain, false)

	if a.tls != nil {
		a.wg.Add(1)
		go a.acceptLoop(a.tls, true)
	}

	if a.watcher != nil {
		a.wg.Add(1)
		go a.watchFilesystem()
	}

	a.watchRefresh()
	a.wg.Wait()
}

// watchFilesystem forwards the watcher's coalesced change notifications
// onto the same Refresh flag the operator's SIGHUP sets, so either trigger
// drives one publication protocol.
func (a *Acceptor) watchFilesystem() {
	defer a.wg.Done()
	shutdownCh := a.shutdownSignal()
	for {
		select {
		case _, ok := <-a.watcher.Triggered():
			if !ok {
				return
			}
			a.cfg.Refresh.Store(true)
		case <-shutdownCh:
			return
		}
	}
}

// shutdownSignal polls the shutdown flag at a modest interval; it exists
// only to let watchFilesystem's select unblock without a dedicated
// shutdown channel per watcher.
func (a *Acceptor) shutdownSignal() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		for !a.cfg.Shutdown.Load() {
			time.Sleep(200 * time.Millisecond)
		}
		close(ch)
	}()
	return ch
}

func (a *Acceptor) acceptLoop(ln net.Listener, secure bool) {
	defer a.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if a.cfg.Shutdown.Load() {
				return
			}
			a.cfg.Log.Entry(logging.WarnLevel, "accept failed").Field("error", err.Error()).Log()
			continue
		}

		if a.cfg.Shutdown.Load() {
			_ = conn.Close()
			return
		}

		a.dispatch(conn, secure)
	}
}

func (a *Acceptor) dispatch(conn net.Conn, secure bool) {
	var tr = transport.NewPlain(conn)
	peer := conn.RemoteAddr().String()

	if secure {
		tlsConn := tls.Server(conn, a.cfg.TLS.Config())
		if err := tlsConn.Handshake(); err != nil {
			a.cfg.Log.Entry(logging.WarnLevel, "TLS handshake failed").
				Field("peer", peer).Field("error", err.Error()).Log()
			_ = conn.Close()
			return
		}
		tr = transport.NewTLS(tlsConn)
	}

	snapshot := a.catalogHandle.Load()

	readTimeout := a.cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	ok := a.cfg.Pool.Submit(func() {
		pipeline.Run(tr, peer, pipeline.Config{
			Webroot:     a.cfg.Webroot,
			Catalog:     snapshot,
			Log:         a.cfg.Log,
			ReadTimeout: readTimeout,
		})
	})

	if !ok {
		a.cfg.Log.Entry(logging.InfoLevel, "queue full, closing connection").Field("peer", peer).Log()
		_ = tr.Close()
	}
}

// watchRefresh runs the refresh-then-quiesce publication protocol: when
// Refresh is observed, the pool is drained, a new catalog is built, and
// the handle is swapped atomically. The accept loops do not pause
// meanwhile: jobs submitted before the swap carry the previous snapshot.
//
// This runs as its own goroutine rather than interleaved into the accept
// loops: with listener-close shutdown there is no single accept iteration
// to hang a refresh check off of.
func (a *Acceptor) watchRefresh() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for !a.cfg.Shutdown.Load() {
			if a.cfg.Refresh.CompareAndSwap(true, false) {
				a.cfg.Pool.WaitIdle()
				c, err := catalog.Build(catalog.Options{
					Root: a.cfg.CatalogRoot, ExcludeGlobs: a.cfg.ExcludeGlobs, Log: a.cfg.Log,
				})
				if err != nil {
					a.cfg.Log.Entry(logging.WarnLevel, "catalog refresh failed").Field("error", err.Error()).Log()
					continue
				}
				a.catalogHandle.Store(c)
				continue
			}
			time.Sleep(200 * time.Millisecond)
		}
	}()
}

// Shutdown sets the shutdown flag and closes both listeners, which
// unblocks their Accept calls, and stops the filesystem watcher. It does
// not drain the worker pool.
func (a *Acceptor) Shutdown() {
	a.cfg.Shutdown.Store(true)
	_ = a.plain.Close()
	if a.tls != nil {
		_ = a.tls.Close()
	}
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
}

// Catalog returns the currently-published catalog handle.
func (a *Acceptor) Catalog() *catalog.Catalog {
	return a.catalogHandle.Load()
}
