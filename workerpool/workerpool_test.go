package workerpool_test

import (
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/staticd/workerpool"
)

var _ = Describe("Pool", func() {
	It("runs submitted jobs and reaches idle once they finish", func() {
		p := workerpool.New(4, 10)
		defer p.Destroy()

		var n int32
		var wg sync.WaitGroup
		wg.Add(5)
		for i := 0; i < 5; i++ {
			Expect(p.Submit(func() {
				defer wg.Done()
				atomic.AddInt32(&n, 1)
			})).To(BeTrue())
		}
		wg.Wait()
		p.WaitIdle()

		Expect(atomic.LoadInt32(&n)).To(Equal(int32(5)))
		Expect(p.Len()).To(Equal(0))
	})

	It("rejects submissions once the queue is at capacity", func() {
		p := workerpool.New(1, 1)
		defer p.Destroy()

		started := make(chan struct{})
		block := make(chan struct{})
		Expect(p.Submit(func() { close(started); <-block })).To(BeTrue())
		<-started // the sole worker now holds its slot and the queue is empty

		Expect(p.Submit(func() {})).To(BeTrue()) // fills the one-deep queue

		ok := p.Submit(func() {})
		Expect(ok).To(BeFalse())

		close(block)
	})

	It("drains in-flight work before Destroy returns", func() {
		p := workerpool.New(2, 10)

		done := make(chan struct{})
		Expect(p.Submit(func() {
			time.Sleep(10 * time.Millisecond)
			close(done)
		})).To(BeTrue())

		p.Destroy()

		select {
		case <-done:
		default:
			Fail("Destroy returned before the queued job completed")
		}
	})
})
