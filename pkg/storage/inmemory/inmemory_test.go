package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/storage"
	"github.com/papercomputeco/mnemo/pkg/storage/inmemory"
)

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
	})

	It("satisfies storage.Driver", func() {
		var _ storage.Driver = driver
	})

	It("returns recent turns newest first", func() {
		base := time.Unix(1_700_000_000, 0)
		for i, text := range []string{"a", "b", "c"} {
			_, err := driver.Append(ctx, &storage.Conversation{
				Timestamp: base.Add(time.Duration(i) * time.Second),
				Actor:     "user",
				Content:   text,
			})
			Expect(err).NotTo(HaveOccurred())
		}

		recent, err := driver.Recent(ctx, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(recent).To(HaveLen(2))
		Expect(recent[0].Content).To(Equal("c"))
		Expect(recent[1].Content).To(Equal("b"))
		Expect(driver.Count()).To(Equal(3))
	})

	It("returns copies so callers cannot mutate the log", func() {
		_, err := driver.Append(ctx, &storage.Conversation{Actor: "user", Content: "original"})
		Expect(err).NotTo(HaveOccurred())

		recent, _ := driver.Recent(ctx, 1)
		recent[0].Content = "changed"

		recent, _ = driver.Recent(ctx, 1)
		Expect(recent[0].Content).To(Equal("original"))
	})

	It("searches content", func() {
		driver.Append(ctx, &storage.Conversation{Actor: "user", Content: "golang rocks"})
		driver.Append(ctx, &storage.Conversation{Actor: "user", Content: "rust rocks"})

		found, err := driver.Search(ctx, "golang", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(1))
	})

	It("stores knowledge and reports missing keys", func() {
		Expect(driver.SaveKnowledge(ctx, "k", "v")).To(Succeed())
		k, err := driver.GetKnowledge(ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(k.Value).To(Equal("v"))

		_, err = driver.GetKnowledge(ctx, "nope")
		Expect(err).To(Equal(storage.NotFoundError{Key: "nope"}))
	})

	It("orders insights by relevance", func() {
		driver.SaveInsight(ctx, &storage.DocumentInsight{DocumentPath: "d", InsightText: "low", Relevance: 0.1})
		driver.SaveInsight(ctx, &storage.DocumentInsight{DocumentPath: "d", InsightText: "high", Relevance: 0.9})
		driver.SaveInsight(ctx, &storage.DocumentInsight{DocumentPath: "e", InsightText: "other high", Relevance: 1})

		insights, err := driver.DocumentInsights(ctx, "d")
		Expect(err).NotTo(HaveOccurred())
		Expect(insights).To(HaveLen(2))
		Expect(insights[0].InsightText).To(Equal("high"))

		found, err := driver.SearchInsights(ctx, "high", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(found[0].InsightText).To(Equal("other high"))
	})
})
