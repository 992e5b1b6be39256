package acceptor_test

import (
	"bufio"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/staticd/acceptor"
	"github.com/sabouaram/staticd/logging"
	"github.com/sabouaram/staticd/workerpool"
)

func writeRoot(root string) {
	Expect(os.MkdirAll(filepath.Join(root, "webpages"), 0o755)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(root, "webpages", "landing.html"), []byte("hello"), 0o644)).To(Succeed())
}

var _ = Describe("Acceptor", func() {
	It("accepts a connection, serves it through the pool, and closes listeners on shutdown", func() {
		root := GinkgoT().TempDir()
		writeRoot(root)

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())

		pool := workerpool.New(2, 10)
		defer pool.Destroy()

		var shutdown, refresh atomic.Bool

		a, err := acceptor.New(acceptor.Config{
			Webroot:     root,
			CatalogRoot: root,
			Pool:        pool,
			Log:         logging.New(io.Discard, logging.ErrorLevel),
			Shutdown:    &shutdown,
			Refresh:     &refresh,
		}, ln, nil)
		Expect(err).NotTo(HaveOccurred())

		done := make(chan struct{})
		go func() {
			a.Run()
			close(done)
		}()

		conn, err := net.Dial("tcp", ln.Addr().String())
		Expect(err).NotTo(HaveOccurred())
		_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: h\r\nConnection: close\r\n\r\n"))
		Expect(err).NotTo(HaveOccurred())

		reader := bufio.NewReader(conn)
		status, err := reader.ReadString('\n')
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(ContainSubstring("200"))
		_ = conn.Close()

		a.Shutdown()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			Fail("Run did not return after Shutdown")
		}
	})
})
