package staticfg_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/staticd/staticfg"
)

var _ = Describe("Load", func() {
	It("fills in documented defaults and validates a minimal file", func() {
		dir := GinkgoT().TempDir()
		webroot := filepath.Join(dir, "srv")
		Expect(os.MkdirAll(webroot, 0o755)).To(Succeed())

		cfgPath := filepath.Join(dir, "staticd.yaml")
		Expect(os.WriteFile(cfgPath, []byte("webroot: "+webroot+"\n"), 0o644)).To(Succeed())

		cfg, err := staticfg.Load(cfgPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.HTTPPort).To(Equal(80))
		Expect(cfg.HTTPSPort).To(Equal(443))
		Expect(cfg.ThreadPoolSize).To(Equal(20))
		Expect(cfg.MaxQueueSize).To(Equal(100))
	})

	It("fails validation when webroot is missing", func() {
		dir := GinkgoT().TempDir()
		cfgPath := filepath.Join(dir, "staticd.yaml")
		Expect(os.WriteFile(cfgPath, []byte("http_port: 80\n"), 0o644)).To(Succeed())

		_, err := staticfg.Load(cfgPath)
		Expect(err).To(HaveOccurred())
	})
})
