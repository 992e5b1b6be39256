package pipeline_test

import (
	"bytes"
	"io"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/staticd/logging"
	"github.com/sabouaram/staticd/pipeline"
	"github.com/sabouaram/staticd/response"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "127.0.0.1:0" }

// fakeTransport replays a queue of reads and records every write, so a
// test can assert that multiple requests are served without a new accept.
type fakeTransport struct {
	reads [][]byte
	idx   int
	out   bytes.Buffer
}

func (f *fakeTransport) Read(buf []byte) (int, error) {
	if f.idx >= len(f.reads) {
		return 0, io.EOF
	}
	n := copy(buf, f.reads[f.idx])
	f.idx++
	return n, nil
}

func (f *fakeTransport) Write(buf []byte) (int, error) { return f.out.Write(buf) }
func (f *fakeTransport) Close() error                  { return nil }
func (f *fakeTransport) SetDeadline(t time.Time) error { return nil }
func (f *fakeTransport) RemoteAddr() net.Addr          { return fakeAddr{} }
func (f *fakeTransport) IsTLS() bool                   { return false }

type memFile struct {
	*bytes.Reader
}

func (m memFile) Close() error         { return nil }
func (m memFile) Size() (int64, error) { return m.Reader.Size(), nil }

var _ = Describe("Run", func() {
	It("serves two keep-alive requests on one transport without a second accept", func() {
		tr := &fakeTransport{reads: [][]byte{
			[]byte("GET /a.html HTTP/1.1\r\nHost: h\r\n\r\n"),
			[]byte("GET /b.html HTTP/1.1\r\nHost: h\r\nConnection: close\r\n\r\n"),
		}}

		opener := func(path string) (response.File, error) {
			return memFile{bytes.NewReader([]byte("hi"))}, nil
		}

		cfg := pipeline.Config{
			Webroot: "/srv",
			Log:     logging.New(io.Discard, logging.ErrorLevel),
			Opener:  opener,
		}

		pipeline.Run(tr, "127.0.0.1:1234", cfg)

		out := tr.out.String()
		Expect(tr.idx).To(Equal(2))
		Expect(out).To(ContainSubstring("200 OK"))
		Expect(out).To(ContainSubstring("Connection: close"))
	})

	It("ends the connection on a zero-byte read", func() {
		tr := &fakeTransport{reads: nil}
		cfg := pipeline.Config{Webroot: "/srv", Log: logging.New(io.Discard, logging.ErrorLevel)}
		pipeline.Run(tr, "peer", cfg)
		Expect(tr.out.Len()).To(Equal(0))
	})
})
