package utils

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeySetNoDuplicates(t *testing.T) {
	s := NewKeySet()

	added := s.Add("avito:1")
	if !added {
		t.Error("first Add should return true")
	}

	added = s.Add("avito:1")
	if added {
		t.Error("second Add of same key should return false")
	}

	if !s.Add("avito:2") {
		t.Error("Add of a new key should return true")
	}
}

func TestKeySetConcurrency(t *testing.T) {
	s := NewKeySet()
	var added int64
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Add("cian:same") {
				atomic.AddInt64(&added, 1)
			}
		}()
	}
	wg.Wait()

	if added != 1 {
		t.Errorf("expected exactly 1 successful add, got %d", added)
	}
}

func TestPacerSpacing(t *testing.T) {
	interval := 100 * time.Millisecond
	p := NewPacer(interval)
	ctx := context.Background()

	var timestamps []time.Time
	for i := 0; i < 3; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatal(err)
		}
		timestamps = append(timestamps, time.Now())
	}

	// The limiter may release a token a hair early; allow small jitter.
	min := interval - 10*time.Millisecond
	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		if gap < min {
			t.Errorf("gap between op %d and %d: %v < minimum %v", i-1, i, gap, min)
		}
	}
}

func TestPacerZeroIntervalDoesNotWait(t *testing.T) {
	p := NewPacer(0)
	start := time.Now()
	for i := 0; i < 50; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("zero-interval pacer waited %v", elapsed)
	}
}
