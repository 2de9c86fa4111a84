package session_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/session"
)

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore records saves.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]session.Session
	current  string
	failSave bool
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]session.Session{}}
}

func (s *memStore) Save(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errors.New("store down")
	}
	s.sessions[sess.ID] = *sess
	s.current = sess.ID
	return nil
}

func (s *memStore) Current(ctx context.Context) (*session.Session, error) {
	s.mu.Lock()
	id := s.current
	s.mu.Unlock()
	if id == "" {
		return nil, session.ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *memStore) Get(_ context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return &sess, nil
}

var _ = Describe("Manager", func() {
	var (
		ctx   context.Context
		clock *fakeClock
		mgr   *session.Manager
	)

	BeforeEach(func() {
		ctx = context.Background()
		clock = &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
		mgr = session.NewManager(session.Config{Clock: clock.Now})
	})

	It("starts with no session", func() {
		_, ok := mgr.Current()
		Expect(ok).To(BeFalse())
		Expect(mgr.CurrentID()).To(BeEmpty())
	})

	It("always creates a fresh session on StartNew", func() {
		a := mgr.StartNew(ctx, "golang")
		b := mgr.StartNew(ctx, "golang")
		Expect(a.ID).NotTo(Equal(b.ID))
		Expect(mgr.CurrentID()).To(Equal(b.ID))
		Expect(b.Topic).To(Equal("golang"))
		Expect(b.StartTime).To(Equal(clock.Now()))
	})

	It("defaults the topic", func() {
		s := mgr.GetOrCreate(ctx, "")
		Expect(s.Topic).To(Equal(session.DefaultTopic))
	})

	It("continues a session within 30 minutes", func() {
		first := mgr.GetOrCreate(ctx, "t")
		clock.Advance(29 * time.Minute)
		second := mgr.GetOrCreate(ctx, "other")

		Expect(second.ID).To(Equal(first.ID))
		Expect(second.Topic).To(Equal("t"))
		Expect(second.LastActive).To(Equal(clock.Now()))
		Expect(second.StartTime).To(Equal(first.StartTime))
	})

	It("slides the window on each touch", func() {
		first := mgr.GetOrCreate(ctx, "t")
		for range 4 {
			clock.Advance(20 * time.Minute)
			Expect(mgr.GetOrCreate(ctx, "t").ID).To(Equal(first.ID))
		}
	})

	It("supersedes the session after 31 minutes", func() {
		first := mgr.GetOrCreate(ctx, "t")
		clock.Advance(31 * time.Minute)
		second := mgr.GetOrCreate(ctx, "t")
		Expect(second.ID).NotTo(Equal(first.ID))
	})

	It("starts a new session at exactly the window", func() {
		first := mgr.GetOrCreate(ctx, "t")
		clock.Advance(session.DefaultWindow)
		Expect(mgr.GetOrCreate(ctx, "t").ID).NotTo(Equal(first.ID))
	})

	It("honours a custom window", func() {
		mgr = session.NewManager(session.Config{Clock: clock.Now, Window: time.Minute})
		first := mgr.GetOrCreate(ctx, "t")
		clock.Advance(2 * time.Minute)
		Expect(mgr.GetOrCreate(ctx, "t").ID).NotTo(Equal(first.ID))
	})

	It("records summaries on the current session", func() {
		Expect(mgr.SetSummary(ctx, "nothing yet")).To(BeFalse())
		mgr.StartNew(ctx, "t")
		Expect(mgr.SetSummary(ctx, "we talked")).To(BeTrue())
		s, _ := mgr.Current()
		Expect(s.Summary).To(Equal("we talked"))
	})

	It("returns copies", func() {
		mgr.StartNew(ctx, "t")
		s, _ := mgr.Current()
		s.Topic = "changed"
		again, _ := mgr.Current()
		Expect(again.Topic).To(Equal("t"))
	})

	It("is safe for concurrent use", func() {
		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				mgr.GetOrCreate(ctx, "t")
				mgr.CurrentID()
			}()
		}
		wg.Wait()
		Expect(mgr.CurrentID()).NotTo(BeEmpty())
	})

	Describe("with a store", func() {
		var store *memStore

		BeforeEach(func() {
			store = newMemStore()
			mgr = session.NewManager(session.Config{Clock: clock.Now, Store: store})
		})

		It("persists every change", func() {
			s := mgr.StartNew(ctx, "t")
			mgr.SetSummary(ctx, "sum")

			saved, err := store.Get(ctx, s.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Summary).To(Equal("sum"))
		})

		It("restores the current session", func() {
			s := mgr.StartNew(ctx, "t")

			restored := session.NewManager(session.Config{Clock: clock.Now, Store: store})
			Expect(restored.Restore(ctx)).To(Succeed())
			Expect(restored.CurrentID()).To(Equal(s.ID))

			clock.Advance(time.Minute)
			Expect(restored.GetOrCreate(ctx, "t").ID).To(Equal(s.ID))
		})

		It("restores nothing from an empty store", func() {
			Expect(mgr.Restore(ctx)).To(Succeed())
			Expect(mgr.CurrentID()).To(BeEmpty())
		})

		It("finds past sessions by id", func() {
			old := mgr.StartNew(ctx, "old")
			mgr.StartNew(ctx, "new")

			got, err := mgr.Get(ctx, old.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Topic).To(Equal("old"))

			_, err = mgr.Get(ctx, "missing")
			Expect(err).To(MatchError(session.ErrNotFound))
		})

		It("keeps working when the store fails", func() {
			store.failSave = true
			s := mgr.StartNew(ctx, "t")
			Expect(mgr.CurrentID()).To(Equal(s.ID))
		})
	})
})
