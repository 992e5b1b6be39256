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

// Package server is the facade that owns one running instance: it binds
// the listeners, starts the worker pool, and drives the acceptor for as
// long as the process lives. It exposes the same small lifecycle surface
// the rest of the ambient stack expects of a long-running component.
package server

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sabouaram/staticd/acceptor"
	"github.com/sabouaram/staticd/errcode"
	"github.com/sabouaram/staticd/logging"
	"github.com/sabouaram/staticd/staticfg"
	"github.com/sabouaram/staticd/tlsmaterial"
	"github.com/sabouaram/staticd/workerpool"
)

// Server is the lifecycle surface the CLI entrypoint drives.
type Server interface {
	Listen() error
	Shutdown()
	Restart() error
	WaitNotify() <-chan error
	IsRunning() bool
	TriggerRefresh()
}

type server struct {
	cfg staticfg.Config
	log logging.Logger

	mu       sync.Mutex
	running  atomic.Bool
	shutdown atomic.Bool
	refresh  atomic.Bool

	pool *workerpool.Pool
	acc  *acceptor.Acceptor

	notify chan error
}

// New builds a Server bound to cfg; it does not start listening until
// Listen is called.
func New(cfg staticfg.Config, log logging.Logger) Server {
	return &server{cfg: cfg, log: log, notify: make(chan error, 1)}
}

func (s *server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plainLn, err := net.Listen("tcp4", fmt.Sprintf(":%d", s.cfg.HTTPPort))
	if err != nil {
		return errcode.New(errcode.ServerStart, err)
	}

	var tlsLn net.Listener
	var material *tlsmaterial.Material
	if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
		material, err = tlsmaterial.Load(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		if err != nil {
			_ = plainLn.Close()
			return errcode.New(errcode.ServerStart, err)
		}
		tlsLn, err = net.Listen("tcp4", fmt.Sprintf(":%d", s.cfg.HTTPSPort))
		if err != nil {
			_ = plainLn.Close()
			return errcode.New(errcode.ServerStart, err)
		}
	}

	s.shutdown.Store(false)
	s.pool = workerpool.New(s.cfg.ThreadPoolSize, s.cfg.MaxQueueSize)

	s.acc, err = acceptor.New(acceptor.Config{
		Webroot:      s.cfg.Webroot,
		CatalogRoot:  s.cfg.Webroot,
		ExcludeGlobs: s.cfg.ExcludeGlobs,
		TLS:          material,
		Pool:         s.pool,
		Log:          s.log,
		Shutdown:     &s.shutdown,
		Refresh:      &s.refresh,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSeconds) * time.Second,
	}, plainLn, tlsLn)
	if err != nil {
		_ = plainLn.Close()
		if tlsLn != nil {
			_ = tlsLn.Close()
		}
		s.pool.Destroy()
		return errcode.New(errcode.ServerStart, err)
	}

	s.running.Store(true)

	go func() {
		s.acc.Run()
		s.pool.Destroy()
		s.running.Store(false)
		s.notify <- nil
	}()

	return nil
}

func (s *server) Shutdown() {
	if !s.running.Load() {
		return
	}
	s.acc.Shutdown()
}

func (s *server) Restart() error {
	s.Shutdown()
	<-s.notify
	return s.Listen()
}

func (s *server) WaitNotify() <-chan error {
	return s.notify
}

func (s *server) IsRunning() bool {
	return s.running.Load()
}

// TriggerRefresh sets the async refresh flag, which the acceptor's refresh
// goroutine polls every 200ms.
func (s *server) TriggerRefresh() {
	s.refresh.Store(true)
}
