package store

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/robalobadob/kbcquiz/internal/bank"
	"github.com/robalobadob/kbcquiz/internal/quiz"
)

func TestSaveGetUpdate(t *testing.T) {
	ctx := context.Background()
	b, err := bank.Default()
	if err != nil {
		t.Fatal(err)
	}
	st := NewMemoryStore()
	g := quiz.New(b, rand.New(rand.NewSource(1)))
	if err := st.Save(ctx, &Session{Game: g, OwnerID: "a", Anonymous: true, Mode: ModeClassic}); err != nil {
		t.Fatal(err)
	}

	got, err := st.Get(ctx, g.ID)
	if err != nil || got.Game != g {
		t.Fatalf("get = %+v, %v", got, err)
	}

	if err := st.Update(ctx, g.ID, func(s *Session) error {
		_, err := s.Game.SubmitAnswer(b.Questions[0].Answer)
		return err
	}); err != nil {
		t.Fatal(err)
	}
	if !g.State().AwaitAdvance {
		t.Fatal("update did not reach the game")
	}

	sentinel := errors.New("boom")
	if err := st.Update(ctx, g.ID, func(*Session) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Fatalf("update err = %v", err)
	}
}

func TestMissing(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	if _, err := st.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get err = %v", err)
	}
	if err := st.Update(ctx, "nope", func(*Session) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update err = %v", err)
	}
}

func TestConcurrentUpdatesSerialize(t *testing.T) {
	ctx := context.Background()
	b, _ := bank.Default()
	st := NewMemoryStore()
	g := quiz.New(b, nil)
	_ = st.Save(ctx, &Session{Game: g})

	// Only one of many racing submits may succeed; the rest see a pending advance.
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.Update(ctx, g.ID, func(s *Session) error {
				_, err := s.Game.SubmitAnswer(b.Questions[0].Answer)
				return err
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if ok != 1 {
		t.Fatalf("%d submits succeeded", ok)
	}
}

func TestPruneEvictsByIdleAndFinishedTTL(t *testing.T) {
	ctx := context.Background()
	b, _ := bank.Default()
	st := NewMemoryStoreTTL(time.Hour, time.Minute).(*memory)
	clock := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return clock }

	live := quiz.New(b, nil)
	done := quiz.New(b, nil)
	busy := quiz.New(b, nil)
	for _, g := range []*quiz.Game{live, done, busy} {
		_ = st.Save(ctx, &Session{Game: g})
	}
	_ = st.Update(ctx, done.ID, func(s *Session) error {
		_, err := s.Game.SubmitAnswer((b.Questions[0].Answer + 1) % quiz.OptionCount)
		return err
	})

	clock = clock.Add(2 * time.Minute)
	if n := st.Prune(ctx); n != 1 {
		t.Fatalf("pruned %d, want the finished game only", n)
	}
	if _, err := st.Get(ctx, done.ID); !errors.Is(err, ErrNotFound) {
		t.Fatal("finished game kept past its ttl")
	}

	clock = clock.Add(50 * time.Minute)
	_ = st.Update(ctx, busy.ID, func(*Session) error { return nil }) // activity resets the clock
	clock = clock.Add(20 * time.Minute)
	if n := st.Prune(ctx); n != 1 {
		t.Fatalf("pruned %d, want the idle game only", n)
	}
	if _, err := st.Get(ctx, live.ID); !errors.Is(err, ErrNotFound) {
		t.Fatal("idle game kept past its ttl")
	}
	if _, err := st.Get(ctx, busy.ID); err != nil {
		t.Fatalf("active game evicted: %v", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	b, _ := bank.Default()
	st := NewMemoryStore()
	g := quiz.New(b, nil)
	_ = st.Save(ctx, &Session{Game: g})
	if err := st.Delete(ctx, g.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Get(ctx, g.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete = %v", err)
	}
	if err := st.Delete(ctx, "nope"); err != nil {
		t.Fatal(err)
	}
}

func TestJanitorStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Janitor(ctx, NewMemoryStore(), time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
