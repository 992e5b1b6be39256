package catalog_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/staticd/catalog"
)

func writeTree(root string) {
	Expect(os.MkdirAll(filepath.Join(root, "webpages", "videos"), 0o755)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(root, "webpages", "landing.html"), []byte("<html>hi</html>"), 0o644)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(root, "webpages", "index.html"), []byte("<html>idx</html>"), 0o644)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(root, "webpages", "videos", "a.mp4"), []byte("binary"), 0o644)).To(Succeed())
}

var _ = Describe("Build", func() {
	It("is deterministic across independent builds", func() {
		root := GinkgoT().TempDir()
		writeTree(root)

		c1, err := catalog.Build(catalog.Options{Root: root})
		Expect(err).NotTo(HaveOccurred())

		c2, err := catalog.Build(catalog.Options{Root: root})
		Expect(err).NotTo(HaveOccurred())

		e1, ok := c1.Lookup(filepath.Join(root, "webpages", "index.html"))
		Expect(ok).To(BeTrue())

		e2, ok := c2.Lookup(filepath.Join(root, "webpages", "index.html"))
		Expect(ok).To(BeTrue())

		Expect(e1.PathFingerprint).To(Equal(e2.PathFingerprint))
		Expect(e1.ContentFingerprint).To(Equal(e2.ContentFingerprint))
	})

	It("excludes files under videos/", func() {
		root := GinkgoT().TempDir()
		writeTree(root)

		c, err := catalog.Build(catalog.Options{Root: root})
		Expect(err).NotTo(HaveOccurred())

		_, ok := c.Lookup(filepath.Join(root, "webpages", "videos", "a.mp4"))
		Expect(ok).To(BeFalse())
		Expect(c.Len()).To(Equal(2))
	})

	It("fails when the root is unreadable", func() {
		_, err := catalog.Build(catalog.Options{Root: "/does/not/exist-xyz"})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("fingerprints", func() {
	It("djb2-hashes the path", func() {
		Expect(catalog.PathFingerprint("")).To(Equal(uint32(5381)))
		Expect(catalog.PathFingerprint("a")).To(Equal(uint32(5381*33 + 'a')))
	})

	It("byte-sums the content", func() {
		Expect(catalog.ContentFingerprint(nil)).To(Equal(uint32(5381)))
		Expect(catalog.ContentFingerprint([]byte{1, 2, 3})).To(Equal(uint32(5381 + 6)))
	})
})

var _ = Describe("CompareModified", func() {
	It("preserves the lexicographic-compare quirk instead of reparsing dates", func() {
		Expect(catalog.CompareModified("Tue, 02 Jan 2024 00:00:00 GMT", "Mon, 01 Jan 2024 00:00:00 GMT")).To(BeTrue())
		Expect(catalog.CompareModified("Mon, 01 Jan 2024 00:00:00 GMT", "Mon, 01 Jan 2024 00:00:00 GMT")).To(BeTrue())
		Expect(catalog.CompareModified("Fri, 01 Jan 2024 00:00:00 GMT", "Mon, 01 Jan 2024 00:00:00 GMT")).To(BeFalse())
	})
})
