package openai_test

import (
	"context"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/embeddings/openai"
)

var _ = Describe("Embedder", func() {
	It("requires an API key", func() {
		_, err := openai.NewEmbedder(openai.EmbedderConfig{})
		Expect(err).To(HaveOccurred())
	})

	It("authenticates and decodes the embedding", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/embeddings"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer sk"))
			_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0,0]}]}`))
		}))
		defer server.Close()

		e, err := openai.NewEmbedder(openai.EmbedderConfig{APIKey: "sk", BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		vec, err := e.Embed(context.Background(), "x")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal([]float32{1, 0, 0}))
	})
})
