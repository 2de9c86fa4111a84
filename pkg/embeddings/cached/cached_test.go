package cached_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/embeddings/cached"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
)

var _ = Describe("Embedder", func() {
	It("serves repeated texts from the cache", func() {
		inner := testutils.NewMockEmbedderDim(4)
		e, err := cached.New(inner, cached.Config{MaxEntries: 100})
		Expect(err).NotTo(HaveOccurred())
		defer e.Close()

		first, err := e.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		e.Wait()

		second, err := e.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(first))
		Expect(inner.Calls()).To(Equal(1))
	})

	It("does not cache failures", func() {
		inner := testutils.NewMockEmbedder()
		inner.FailOn = "bad"
		e, err := cached.New(inner, cached.Config{})
		Expect(err).NotTo(HaveOccurred())
		defer e.Close()

		_, err = e.Embed(context.Background(), "bad")
		Expect(err).To(HaveOccurred())
		e.Wait()
		_, err = e.Embed(context.Background(), "bad")
		Expect(err).To(HaveOccurred())
		Expect(inner.Calls()).To(Equal(2))
	})
})
