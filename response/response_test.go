package response_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/staticd/catalog"
	"github.com/sabouaram/staticd/logging"
	"github.com/sabouaram/staticd/request"
	"github.com/sabouaram/staticd/response"
)

type memFile struct {
	*bytes.Reader
}

func (m memFile) Close() error         { return nil }
func (m memFile) Size() (int64, error) { return m.Reader.Size(), nil }

func newMemFile(data string) response.File {
	return memFile{bytes.NewReader([]byte(data))}
}

type recordingWriter struct {
	buf bytes.Buffer
}

func (r *recordingWriter) Write(p []byte) (int, error) { return r.buf.Write(p) }

func testLogger() logging.Logger {
	return logging.New(io.Discard, logging.ErrorLevel)
}

var _ = Describe("Decide and Serve", func() {
	It("streams a satisfiable byte range as 206 with correct Content-Range", func() {
		data := strings.Repeat("x", 1000)
		opener := func(path string) (response.File, error) { return newMemFile(data), nil }

		req, perr := request.Parse([]byte("GET /f HTTP/1.1\r\nHost: h\r\nRange: bytes=100-199\r\n\r\n"))
		Expect(perr).To(BeNil())

		plan := response.Decide(response.Input{
			Req: req, PathValid: true, ResolvedPath: "/webroot/webpages/f", Opener: opener,
		})
		Expect(plan.Status).To(Equal(206))

		w := &recordingWriter{}
		_, err := response.Serve(w, req, plan, testLogger())
		Expect(err).NotTo(HaveOccurred())

		out := w.buf.String()
		Expect(out).To(ContainSubstring("206 Partial Content"))
		Expect(out).To(ContainSubstring("Content-Range: bytes 100-199/1000"))
		Expect(out).To(ContainSubstring("Content-Length: 100"))
		Expect(out).To(HaveSuffix(strings.Repeat("x", 100)))
	})

	It("resolves a suffix range against the file tail", func() {
		data := strings.Repeat("x", 950) + strings.Repeat("y", 50)
		opener := func(path string) (response.File, error) { return newMemFile(data), nil }

		req, _ := request.Parse([]byte("GET /f HTTP/1.1\r\nHost: h\r\nRange: bytes=-50\r\n\r\n"))

		plan := response.Decide(response.Input{
			Req: req, PathValid: true, ResolvedPath: "/webroot/webpages/f", Opener: opener,
		})
		Expect(plan.Status).To(Equal(206))

		w := &recordingWriter{}
		_, err := response.Serve(w, req, plan, testLogger())
		Expect(err).NotTo(HaveOccurred())

		out := w.buf.String()
		Expect(out).To(ContainSubstring("Content-Range: bytes 950-999/1000"))
		Expect(out).To(ContainSubstring("Content-Length: 50"))
		Expect(out).To(HaveSuffix(strings.Repeat("y", 50)))
	})

	It("reports 416 with Content-Range */N and empty body when unsatisfiable", func() {
		data := strings.Repeat("x", 1000)
		opener := func(path string) (response.File, error) { return newMemFile(data), nil }

		req, _ := request.Parse([]byte("GET /f HTTP/1.1\r\nHost: h\r\nRange: bytes=2000-3000\r\n\r\n"))

		plan := response.Decide(response.Input{
			Req: req, PathValid: true, ResolvedPath: "/webroot/webpages/f", Opener: opener,
		})
		Expect(plan.Status).To(Equal(416))

		w := &recordingWriter{}
		_, err := response.Serve(w, req, plan, testLogger())
		Expect(err).NotTo(HaveOccurred())
		Expect(w.buf.String()).To(ContainSubstring("416 Range Not Satisfiable"))
		Expect(w.buf.String()).To(ContainSubstring("Content-Range: bytes */1000"))
		Expect(w.buf.String()).To(ContainSubstring("Content-Length: 0"))
		Expect(w.buf.String()).To(HaveSuffix("\r\n\r\n"))
	})

	It("short-circuits to 304 on a matching If-None-Match without opening the file", func() {
		opened := false
		opener := func(path string) (response.File, error) {
			opened = true
			return newMemFile("irrelevant"), nil
		}

		entry := catalog.Entry{Path: "/webroot/webpages/index.html", ContentFingerprint: 12345, LastModified: "Mon, 01 Jan 2024 00:00:00 GMT"}

		req, _ := request.Parse([]byte("GET /index.html HTTP/1.1\r\nHost: h\r\nIf-None-Match: \"12345\"\r\n\r\n"))

		plan := response.Decide(response.Input{
			Req: req, PathValid: true, ResolvedPath: entry.Path, Entry: entry, EntryOK: true, Opener: opener,
		})
		Expect(plan.Status).To(Equal(304))
		Expect(opened).To(BeFalse())

		w := &recordingWriter{}
		_, err := response.Serve(w, req, plan, testLogger())
		Expect(err).NotTo(HaveOccurred())
		Expect(w.buf.String()).To(ContainSubstring("304 Not Modified"))
		Expect(w.buf.String()).To(ContainSubstring(`ETag: "12345"`))
		Expect(w.buf.String()).To(ContainSubstring("Connection: close"))
		Expect(w.buf.String()).To(HaveSuffix("\r\n\r\n"))
	})

	It("redirects an upgrade-requesting cleartext client to https with no body", func() {
		opened := false
		opener := func(path string) (response.File, error) {
			opened = true
			return newMemFile("irrelevant"), nil
		}

		req, perr := request.Parse([]byte("GET / HTTP/1.1\r\nHost: h\r\nUpgrade-Insecure-Requests: 1\r\n\r\n"))
		Expect(perr).To(BeNil())
		Expect(req.UpgradeRequested).To(BeTrue())

		plan := response.Decide(response.Input{
			Req: req, PathValid: true, Host: req.Host, TransportTLS: false, Opener: opener,
		})
		Expect(plan.Status).To(Equal(301))
		Expect(plan.Location).To(Equal("https://h/"))
		Expect(opened).To(BeFalse())

		w := &recordingWriter{}
		keepAlive, err := response.Serve(w, req, plan, testLogger())
		Expect(err).NotTo(HaveOccurred())
		Expect(keepAlive).To(BeFalse())
		Expect(w.buf.String()).To(ContainSubstring("301 Moved Permanently"))
		Expect(w.buf.String()).To(ContainSubstring("Location: https://h/"))
		Expect(w.buf.String()).To(ContainSubstring("Connection: close"))
		Expect(w.buf.String()).To(HaveSuffix("\r\n\r\n"))
	})

	It("does not redirect when the transport already terminated TLS", func() {
		opener := func(path string) (response.File, error) { return newMemFile("hi"), nil }

		req, _ := request.Parse([]byte("GET / HTTP/1.1\r\nHost: h\r\nUpgrade-Insecure-Requests: 1\r\n\r\n"))
		plan := response.Decide(response.Input{
			Req: req, PathValid: true, Host: req.Host, TransportTLS: true,
			ResolvedPath: "/webroot/webpages/landing.html", Opener: opener,
		})
		Expect(plan.Status).To(Equal(200))
	})

	It("refuses a traversal target with 403 without ever calling the opener", func() {
		opened := false
		opener := func(path string) (response.File, error) {
			opened = true
			return nil, errors.New("should not be called")
		}

		req, _ := request.Parse([]byte("GET /../etc/passwd HTTP/1.1\r\nHost: h\r\n\r\n"))
		valid := request.ValidatePath(req.Path)
		Expect(valid).To(BeFalse())

		plan := response.Decide(response.Input{Req: req, PathValid: valid, Opener: opener})
		Expect(plan.Status).To(Equal(403))
		Expect(opened).To(BeFalse())
	})

	It("maps a missing file to 404 via os.IsNotExist", func() {
		opener := func(path string) (response.File, error) { return nil, os.ErrNotExist }

		req, _ := request.Parse([]byte("GET /missing.html HTTP/1.1\r\nHost: h\r\n\r\n"))
		plan := response.Decide(response.Input{Req: req, PathValid: true, Opener: opener})
		Expect(plan.Status).To(Equal(404))
	})

	It("answers OPTIONS with 200, Allow header, and empty body", func() {
		req, _ := request.Parse([]byte("OPTIONS / HTTP/1.1\r\nHost: h\r\n\r\n"))
		plan := response.Decide(response.Input{Req: req, PathValid: true})
		Expect(plan.Status).To(Equal(200))

		w := &recordingWriter{}
		_, err := response.Serve(w, req, plan, testLogger())
		Expect(err).NotTo(HaveOccurred())
		Expect(w.buf.String()).To(ContainSubstring("Allow: GET, HEAD, OPTIONS"))
		Expect(w.buf.String()).To(HaveSuffix("\r\n\r\n"))
	})
})
