package topics_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/personality"
	"github.com/papercomputeco/mnemo/pkg/topics"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
)

var _ = Describe("Cache", func() {
	It("matches by case-insensitive containment in either direction", func() {
		c := topics.NewCache(0, 0)
		c.Add("Rust Memory Safety")

		Expect(c.IsUnique("memory safety")).To(BeFalse())
		Expect(c.IsUnique("Rust memory safety in embedded systems")).To(BeFalse())
		Expect(c.IsUnique("Go generics")).To(BeTrue())
	})

	It("never remembers a blank topic", func() {
		c := topics.NewCache(0, 0)
		c.Add("  ")
		Expect(c.Len()).To(BeZero())
		Expect(c.IsUnique("")).To(BeFalse())
		Expect(c.IsUnique("Go generics")).To(BeTrue())
	})

	It("evicts the oldest topic at capacity", func() {
		c := topics.NewCache(0, 2)
		now := time.Unix(1000, 0)
		c.SetClock(func() time.Time { now = now.Add(time.Second); return now })

		c.Add("alpha")
		c.Add("beta")
		c.Add("gamma")

		Expect(c.Len()).To(Equal(2))
		Expect(c.IsUnique("alpha")).To(BeTrue())
		Expect(c.IsUnique("beta")).To(BeFalse())
	})

	It("forgets expired topics", func() {
		c := topics.NewCache(50*time.Millisecond, 0)
		c.Add("ephemeral")
		Eventually(c.IsUnique).WithArguments("ephemeral").Should(BeTrue())
	})

	It("clears", func() {
		c := topics.NewCache(0, 0)
		c.Add("a")
		c.Clear()
		Expect(c.Len()).To(BeZero())
	})
})

var _ = Describe("Generator", func() {
	var (
		ctx     context.Context
		backend *testutils.MockBackend
		profile *personality.Profile
		gen     *topics.Generator
	)

	BeforeEach(func() {
		ctx = context.Background()
		backend = testutils.NewMockBackend()
		profile = &personality.Profile{Name: "Ada", Description: "a mathematician", Style: "precise", Interests: []string{"engines"}}
		gen = topics.NewGenerator(backend, nil, nil)
		gen.SetClock(func() time.Time { return time.Unix(1700000000, 0) })
	})

	It("cleans the answer and remembers it", func() {
		backend.Responses = []string{"  Topic: \"Analytical engines\"  "}
		topic, err := gen.Next(ctx, profile)
		Expect(err).NotTo(HaveOccurred())
		Expect(topic).To(Equal("Analytical engines"))
		Expect(gen.Cache().IsUnique("analytical engines")).To(BeFalse())

		Expect(backend.Prompts[0]).To(HavePrefix("You are Ada\n\nRole: a mathematician\n\nStyle: precise"))
		Expect(backend.Prompts[0]).To(ContainSubstring("Primary areas of expertise: engines"))
		Expect(backend.Prompts[0]).To(HaveSuffix("Topic:"))
	})

	It("retries until a unique topic is found", func() {
		gen.Cache().Add("engines")
		backend.Responses = []string{"Engines", "Difference engines", "Bernoulli numbers"}
		topic, err := gen.Next(ctx, profile)
		Expect(err).NotTo(HaveOccurred())
		Expect(topic).To(Equal("Bernoulli numbers"))
		Expect(backend.PromptCount()).To(Equal(3))
	})

	It("timestamps the third colliding answer", func() {
		gen.Cache().Add("engines")
		backend.Default = "Engines"
		topic, err := gen.Next(ctx, profile)
		Expect(err).NotTo(HaveOccurred())
		Expect(topic).To(Equal(fmt.Sprintf("Engines (%d)", 1700000000)))
		Expect(backend.PromptCount()).To(Equal(topics.MaxAttempts))
	})

	It("skips blank answers without poisoning the cache", func() {
		backend.Responses = []string{"Topic: \"\"", "Bernoulli numbers"}
		topic, err := gen.Next(ctx, profile)
		Expect(err).NotTo(HaveOccurred())
		Expect(topic).To(Equal("Bernoulli numbers"))
		Expect(gen.Cache().Len()).To(Equal(1))

		backend.Responses = []string{"Jacquard looms"}
		topic, err = gen.Next(ctx, profile)
		Expect(err).NotTo(HaveOccurred())
		Expect(topic).To(Equal("Jacquard looms"))
		Expect(backend.PromptCount()).To(Equal(3))
	})

	It("fails when every answer is blank", func() {
		backend.Default = "   "
		_, err := gen.Next(ctx, profile)
		Expect(err).To(MatchError(topics.ErrEmptyTopic))
		Expect(gen.Cache().Len()).To(BeZero())
	})

	It("fails when the backend fails", func() {
		backend.FailOnPrompt = "You are"
		_, err := gen.Next(ctx, profile)
		Expect(err).To(MatchError(testutils.ErrMockBackend))
	})
})
