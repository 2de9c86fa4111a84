package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/embeddings/ollama"
	"github.com/papercomputeco/mnemo/pkg/llm"
)

var _ = Describe("Embedder", func() {
	It("applies defaults", func() {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{})
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Model()).To(Equal(ollama.DefaultEmbeddingModel))
	})

	It("returns the first embedding from /api/embed", func() {
		var got map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/api/embed"))
			_ = json.NewDecoder(r.Body).Decode(&got)
			_, _ = w.Write([]byte(`{"embeddings":[[0.5,0.25]]}`))
		}))
		defer server.Close()

		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL + "/", Model: "all-minilm"})
		Expect(err).NotTo(HaveOccurred())
		vec, err := e.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal([]float32{0.5, 0.25}))
		Expect(got).To(HaveKeyWithValue("model", "all-minilm"))
		Expect(got).To(HaveKeyWithValue("input", "hello"))
	})

	It("reports empty and failed responses as provider errors", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"embeddings":[]}`))
		}))
		defer server.Close()

		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())
		_, err = e.Embed(context.Background(), "hello")
		Expect(errors.Is(err, llm.ErrEmptyResponse)).To(BeTrue())

		server.Close()
		_, err = e.Embed(context.Background(), "hello")
		var perr *llm.ProviderError
		Expect(errors.As(err, &perr)).To(BeTrue())
		Expect(perr.Provider).To(Equal("ollama"))
	})
})
