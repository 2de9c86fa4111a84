package memory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/session"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
	"github.com/papercomputeco/mnemo/pkg/vector/inmemory"
)

var _ = Describe("ParseTags", func() {
	DescribeTable("parses tag answers",
		func(resp string, tags []string, importance float64) {
			gotTags, gotImportance := memory.ParseTags(resp)
			if tags == nil {
				Expect(gotTags).To(BeEmpty())
			} else {
				Expect(gotTags).To(Equal(tags))
			}
			Expect(gotImportance).To(Equal(importance))
		},
		Entry("well formed", "golang, concurrency,testing|0.7", []string{"golang", "concurrency", "testing"}, 0.7),
		Entry("no separator", "golang,testing", nil, 1.0),
		Entry("too many separators", "a|b|0.5", nil, 1.0),
		Entry("bad importance", "golang|very", []string{"golang"}, 1.0),
		Entry("importance above one", "golang|7", []string{"golang"}, 1.0),
		Entry("negative importance", "golang|-0.5", []string{"golang"}, 0.0),
		Entry("empty tags dropped", " , ,go |0.3", []string{"go"}, 0.3),
	)
})

var _ = Describe("AnalyzeAndTag", func() {
	It("sends the tagging prompt", func() {
		backend := testutils.NewMockBackend("ops,deploy|0.4")
		tags, importance, err := memory.AnalyzeAndTag(context.Background(), backend, "we shipped")
		Expect(err).NotTo(HaveOccurred())
		Expect(tags).To(Equal([]string{"ops", "deploy"}))
		Expect(importance).To(Equal(0.4))
		Expect(backend.Prompts[0]).To(Equal("Analyze the following message and:\n1. Extract 1-3 topic tags (single words)\n2. Rate its importance (0.0-1.0) for future context\nFormat: tag1,tag2,tag3|importance\n\nMessage: we shipped\n\nTags|Importance:"))
	})

	It("surfaces backend failures", func() {
		backend := testutils.NewMockBackend()
		backend.FailOnPrompt = "Analyze"
		_, _, err := memory.AnalyzeAndTag(context.Background(), backend, "x")
		Expect(err).To(MatchError(testutils.ErrMockBackend))
	})
})

var _ = Describe("session summaries", func() {
	var (
		ctx      context.Context
		sessions *session.Manager
		store    *memory.Store
		backend  *testutils.MockBackend
	)

	BeforeEach(func() {
		ctx = context.Background()
		sessions = session.NewManager(session.Config{})
		var err error
		store, err = memory.NewStore(memory.Config{Index: inmemory.NewIndex(), Sessions: sessions, Dimensions: 4})
		Expect(err).NotTo(HaveOccurred())
		Expect(store.EnsureCollection(ctx)).To(Succeed())
		backend = testutils.NewMockBackend("They said hello.")
	})

	It("reports sessions with no conversation", func() {
		summary, err := store.SessionSummary(ctx, backend, "nobody")
		Expect(err).NotTo(HaveOccurred())
		Expect(summary).To(Equal(memory.NoConversation))
		Expect(backend.PromptCount()).To(BeZero())
	})

	It("summarizes and records the current session", func() {
		sessions.StartNew(ctx, "greetings")
		_, err := store.Store(ctx, "hello", "user", testutils.HashVector("hello", 4), nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(store.UpdateSessionSummary(ctx, backend)).To(Succeed())
		Expect(backend.Prompts[0]).To(Equal("Summarize the key points of this conversation in 2-3 sentences:\n\nuser: hello"))

		s, _ := sessions.Current()
		Expect(s.Summary).To(Equal("They said hello."))
	})

	It("does nothing without a current session", func() {
		Expect(store.UpdateSessionSummary(ctx, backend)).To(Succeed())
		Expect(backend.PromptCount()).To(BeZero())
	})
})
