package server_test

import (
	"io"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/staticd/logging"
	"github.com/sabouaram/staticd/server"
	"github.com/sabouaram/staticd/staticfg"
)

var _ = Describe("Server lifecycle", func() {
	It("starts, reports running, and exits cleanly after Shutdown", func() {
		dir := GinkgoT().TempDir()
		Expect(os.MkdirAll(filepath.Join(dir, "webpages"), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "webpages", "landing.html"), []byte("hi"), 0o644)).To(Succeed())

		cfg := staticfg.Config{
			Webroot:        dir,
			HTTPPort:       0,
			HTTPSPort:      0,
			ThreadPoolSize: 2,
			MaxQueueSize:   4,
		}

		srv := server.New(cfg, logging.New(io.Discard, logging.ErrorLevel))
		Expect(srv.Listen()).To(Succeed())
		Expect(srv.IsRunning()).To(BeTrue())

		srv.Shutdown()

		select {
		case <-srv.WaitNotify():
		case <-time.After(2 * time.Second):
			Fail("server did not notify after Shutdown")
		}
	})
})
