package document_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/document"
)

func words(n int, word string) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}

func wordCounts(chunks []document.DocumentChunk) []int {
	out := make([]int, len(chunks))
	for i, c := range chunks {
		out[i] = len(strings.Fields(c.Text))
	}
	return out
}

var _ = Describe("Chunk", func() {
	It("splits a 2500 word page into 1000, 1000 and 500", func() {
		chunks := document.Chunk(words(2500, "w"), 1000)
		Expect(wordCounts(chunks)).To(Equal([]int{1000, 1000, 500}))
		for i, c := range chunks {
			Expect(c.ChunkIndex).To(Equal(i))
			Expect(c.PageNumber).To(Equal(1))
		}
	})

	DescribeTable("produces ceil(W / size) chunks",
		func(w, size int) {
			chunks := document.Chunk(words(w, "x"), size)
			Expect(chunks).To(HaveLen((w + size - 1) / size))
			for i, c := range chunks[:len(chunks)-1] {
				Expect(wordCounts(chunks)[i]).To(Equal(size), "chunk %d", c.ChunkIndex)
			}
		},
		Entry("exact multiple", 30, 10),
		Entry("remainder", 31, 10),
		Entry("smaller than window", 3, 10),
		Entry("window of one", 4, 1),
	)

	It("numbers pages from the marker and keeps chunk indexes global", func() {
		text := words(3, "a") + "\n\nPage 2 " + words(4, "b") + "\n\nPage 3 " + words(2, "c")
		chunks := document.Chunk(text, 3)

		pages := make([]int, len(chunks))
		indexes := make([]int, len(chunks))
		for i, c := range chunks {
			pages[i] = c.PageNumber
			indexes[i] = c.ChunkIndex
		}
		Expect(pages).To(Equal([]int{1, 2, 2, 3}))
		Expect(indexes).To(Equal([]int{0, 1, 2, 3}))
		Expect(chunks[1].Text).To(Equal("2 b b"))
	})

	It("skips empty pages but still advances the page number", func() {
		text := "first page" + "\n\nPage " + "\n\nPage " + "third page"
		chunks := document.Chunk(text, 10)
		Expect(chunks).To(HaveLen(2))
		Expect(chunks[0].PageNumber).To(Equal(1))
		Expect(chunks[1].PageNumber).To(Equal(3))
		Expect(chunks[1].ChunkIndex).To(Equal(1))
	})

	It("returns nothing for blank text", func() {
		Expect(document.Chunk("  \n\t ", 10)).To(BeEmpty())
	})

	It("falls back to the default window", func() {
		chunks := document.Chunk(words(1500, "z"), 0)
		Expect(wordCounts(chunks)).To(Equal([]int{1000, 500}))
	})
})
