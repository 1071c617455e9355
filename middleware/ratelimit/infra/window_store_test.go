package infra

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"formguard/middleware/ratelimit/domain"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func admit(t *testing.T, s *WindowStore, key domain.Key, p domain.Policy, at time.Time) domain.Decision {
	t.Helper()
	dec, err := s.Admit(context.Background(), key, p, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return dec
}

func TestWindowStore_AdmitsUpToMaxThenRejects(t *testing.T) {
	s := NewWindowStore()
	key := domain.ClientKey(domain.EndpointContact, "1.2.3.4")

	for i := 0; i < 5; i++ {
		dec := admit(t, s, key, domain.ContactPolicy, t0.Add(time.Duration(i)*2*time.Second))
		if !dec.Allowed {
			t.Fatalf("expected attempt %d to be admitted", i+1)
		}
		if dec.Count != i+1 {
			t.Fatalf("expected count %d, got %d", i+1, dec.Count)
		}
	}

	dec := admit(t, s, key, domain.ContactPolicy, t0.Add(10*time.Second))
	if dec.Allowed {
		t.Fatalf("expected sixth attempt inside the window to be rejected")
	}
	if got := s.Entries(); got != 5 {
		t.Fatalf("rejection must not record an entry, count=%d", got)
	}
}

func TestWindowStore_RetryAfterPointsAtOldestEntry(t *testing.T) {
	s := NewWindowStore()
	p := domain.Policy{Window: time.Minute, Max: 1}

	admit(t, s, "k", p, t0)
	dec := admit(t, s, "k", p, t0.Add(20*time.Second))
	if dec.Allowed {
		t.Fatalf("expected rejection")
	}
	if dec.RetryAfter != 40*time.Second {
		t.Fatalf("expected RetryAfter=40s, got %s", dec.RetryAfter)
	}
}

func TestWindowStore_WindowSlidesAfterWindowPlusOneMillisecond(t *testing.T) {
	s := NewWindowStore()
	p := domain.NewsletterPolicy

	for i := 0; i < p.Max; i++ {
		admit(t, s, "k", p, t0)
	}
	if admit(t, s, "k", p, t0.Add(p.Window)).Allowed {
		t.Fatalf("entries stamped exactly at the window start still count")
	}
	if !admit(t, s, "k", p, t0.Add(p.Window+time.Millisecond)).Allowed {
		t.Fatalf("expected admission once the window slid past the cap")
	}
}

func TestWindowStore_KeysAreIndependent(t *testing.T) {
	s := NewWindowStore()
	p := domain.Policy{Window: time.Minute, Max: 1}

	if !admit(t, s, "contact:a", p, t0).Allowed {
		t.Fatalf("expected first key to be admitted")
	}
	if !admit(t, s, "contact:b", p, t0).Allowed {
		t.Fatalf("expected second key to have its own budget")
	}
	if admit(t, s, "contact:a", p, t0).Allowed {
		t.Fatalf("expected first key to be capped")
	}
}

func TestWindowStore_AdmitSweepsOtherKeys(t *testing.T) {
	s := NewWindowStore()
	p := domain.Policy{Window: time.Minute, Max: 3}

	admit(t, s, "a", p, t0)
	admit(t, s, "b", p, t0.Add(30*time.Second))
	if s.Size() != 2 {
		t.Fatalf("expected 2 keys, got %d", s.Size())
	}

	admit(t, s, "b", p, t0.Add(61*time.Second))
	if s.Size() != 1 {
		t.Fatalf("expected stale key to be swept by another key's admission, size=%d", s.Size())
	}
	if got := s.Entries(); got != 2 {
		t.Fatalf("expected only key b's two entries, got %d", got)
	}
}

func TestWindowStore_PruneIsIdempotent(t *testing.T) {
	s := NewWindowStore()
	p := domain.Policy{Window: time.Minute, Max: 10}

	for i := 0; i < 6; i++ {
		admit(t, s, "a", p, t0.Add(time.Duration(i)*15*time.Second))
		admit(t, s, "b", p, t0.Add(time.Duration(i)*5*time.Second))
	}

	at := t0.Add(100 * time.Second)
	s.Prune(at)
	size, entries := s.Size(), s.Entries()
	s.Prune(at)
	if s.Size() != size || s.Entries() != entries {
		t.Fatalf("second prune changed state: %d/%d -> %d/%d", size, entries, s.Size(), s.Entries())
	}
	if entries != 3 {
		// a: 45s, 60s e 75s sobrevivem (início da janela em 40s); b: nada
		t.Fatalf("expected 3 surviving entries, got %d", entries)
	}
}

func TestWindowStore_RejectsInvalidPolicy(t *testing.T) {
	s := NewWindowStore()
	if _, err := s.Admit(context.Background(), "k", domain.Policy{}, t0); err != domain.ErrInvalidPolicy {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestWindowStore_ConcurrentAdmissionsNeverExceedMax(t *testing.T) {
	s := NewWindowStore()
	p := domain.ContactPolicy

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, err := s.Admit(context.Background(), "contact:1.2.3.4", p, t0)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if dec.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != p.Max {
		t.Fatalf("expected exactly %d admissions, got %d", p.Max, allowed)
	}
}

func TestWindowStore_SlidingInvariantHoldsForRandomArrivals(t *testing.T) {
	s := NewWindowStore()
	p := domain.Policy{Window: 10 * time.Second, Max: 4}
	rng := rand.New(rand.NewSource(7))

	var admitted []time.Time
	at := t0
	for i := 0; i < 2000; i++ {
		at = at.Add(time.Duration(rng.Intn(1500)) * time.Millisecond)
		if admit(t, s, "k", p, at).Allowed {
			admitted = append(admitted, at)
		}
	}

	// para cada admissão, o intervalo [t-window, t] contém no máximo Max admissões
	for i, end := range admitted {
		start := end.Add(-p.Window)
		n := 0
		for j := i; j >= 0 && !admitted[j].Before(start); j-- {
			n++
		}
		if n > p.Max {
			t.Fatalf("window ending at %s admitted %d > %d", end, n, p.Max)
		}
	}
	if len(admitted) == 0 {
		t.Fatalf("expected some admissions")
	}
}
