package errcode_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/staticd/errcode"
)

var _ = Describe("Error", func() {
	It("carries its code", func() {
		e := errcode.New(errcode.NotFound, nil)
		Expect(e.Code()).To(Equal(errcode.NotFound))
		Expect(e.Is(errcode.NotFound)).To(BeTrue())
		Expect(e.Is(errcode.ForbiddenPath)).To(BeFalse())
	})

	It("unwraps to its parent", func() {
		parent := errors.New("boom")
		e := errcode.New(errcode.TransportFailure, parent)
		Expect(errors.Unwrap(e)).To(Equal(parent))
		Expect(e.Error()).To(ContainSubstring("boom"))
	})

})
