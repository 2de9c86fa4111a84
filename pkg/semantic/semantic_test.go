package semantic_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/semantic"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
	"github.com/papercomputeco/mnemo/pkg/vector"
	"github.com/papercomputeco/mnemo/pkg/vector/inmemory"
)

const dim = 8

var _ = Describe("Search", func() {
	var (
		ctx    context.Context
		index  *inmemory.Index
		search *semantic.Search
	)

	emb := func(text string) []float32 { return testutils.HashVector(text, dim) }

	BeforeEach(func() {
		ctx = context.Background()
		index = inmemory.NewIndex()
		var err error
		search, err = semantic.New(semantic.Config{Index: index, Dimensions: dim})
		Expect(err).NotTo(HaveOccurred())
		Expect(search.EnsureCollection(ctx)).To(Succeed())
	})

	It("requires an index", func() {
		_, err := semantic.New(semantic.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("indexes and finds text with its source and metadata", func() {
		id, err := search.IndexText(ctx, "goroutines are cheap", "notes.md", emb("goroutines"), map[string]string{"author": "ana"})
		Expect(err).NotTo(HaveOccurred())
		Expect(id).NotTo(BeEmpty())

		results, err := search.Search(ctx, emb("goroutines"), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Text).To(Equal("goroutines are cheap"))
		Expect(results[0].Source).To(Equal("notes.md"))
		Expect(results[0].Metadata).To(HaveKeyWithValue("author", "ana"))
	})

	It("rejects embeddings of the wrong width", func() {
		_, err := search.IndexText(ctx, "x", "s", []float32{1}, nil)
		Expect(err).To(BeAssignableToTypeOf(&vector.DimensionError{}))
	})

	It("drops hits without a source", func() {
		_, err := index.Upsert(ctx, vector.CollectionSemantic, []vector.Point{{Vector: emb("x"), Payload: map[string]any{"text": "orphan"}}})
		Expect(err).NotTo(HaveOccurred())

		results, err := search.Search(ctx, emb("x"), 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(BeEmpty())
	})

	It("filters by source after over-fetching", func() {
		for _, t := range []string{"a1", "a2", "a3"} {
			_, err := search.IndexText(ctx, t, "a", emb(t), nil)
			Expect(err).NotTo(HaveOccurred())
		}
		_, err := search.IndexText(ctx, "b1", "b", emb("b1"), nil)
		Expect(err).NotTo(HaveOccurred())

		results, err := search.SearchBySource(ctx, emb("a1"), "a", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		for _, r := range results {
			Expect(r.Source).To(Equal("a"))
		}
	})

	It("formats numbered results", func() {
		out := semantic.FormatResults([]semantic.Result{
			{Text: "first", Score: 0.912, Source: "a"},
			{Text: "second", Score: 0.5, Source: "b"},
		})
		Expect(out).To(Equal("1. [Score: 0.91] first (Source: a)\n2. [Score: 0.50] second (Source: b)\n"))
	})

	Describe("Chat", func() {
		It("answers from search results and stores the exchange", func() {
			memIndex := inmemory.NewIndex()
			store, err := memory.NewStore(memory.Config{Index: memIndex, Dimensions: dim})
			Expect(err).NotTo(HaveOccurred())
			Expect(store.EnsureCollection(ctx)).To(Succeed())

			backend := testutils.NewMockBackend("Use channels.")
			backend.Embedder = testutils.NewMockEmbedderDim(dim)

			search, err := semantic.New(semantic.Config{Index: index, Dimensions: dim, Backend: backend, Memory: store})
			Expect(err).NotTo(HaveOccurred())
			_, err = search.IndexText(ctx, "channels connect goroutines", "go.md", emb("channels"), nil)
			Expect(err).NotTo(HaveOccurred())

			answer, err := search.Chat(ctx, "how do goroutines talk?")
			Expect(err).NotTo(HaveOccurred())
			Expect(answer).To(Equal("Use channels."))
			Expect(backend.Prompts[0]).To(HavePrefix("Relevant search results:\n1. [Score: "))
			Expect(backend.Prompts[0]).To(HaveSuffix("\n\nUser: how do goroutines talk?\nAssistant:"))

			recs, err := store.GetRecent(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs[0].Role).To(Equal("chat"))
			Expect(recs[0].Text).To(Equal("Q: how do goroutines talk?\nA: Use channels."))
		})

		It("requires a backend", func() {
			_, err := search.Chat(ctx, "hi")
			Expect(err).To(HaveOccurred())
		})
	})
})
