package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestPacerFirstWaitIsImmediate(t *testing.T) {
	p := NewPacer(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := p.Wait(ctx); err != nil {
		t.Fatalf("first wait should not block: %v", err)
	}
}

func TestPacerEnforcesGapAfterDone(t *testing.T) {
	interval := 150 * time.Millisecond
	p := NewPacer(interval)
	ctx := context.Background()

	if err := p.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	p.Done()

	start := time.Now()
	if err := p.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < interval-20*time.Millisecond {
		t.Errorf("Expected to wait about %v, waited %v", interval, elapsed)
	}
}

func TestPacerZeroInterval(t *testing.T) {
	p := NewPacer(0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 100; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
		p.Done()
	}
}

func TestPacerRespectsContext(t *testing.T) {
	p := NewPacer(time.Hour)
	p.Done()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx); err == nil {
		t.Error("Expected error from cancelled context")
	}
}

func TestPacerImplementsLimiter(t *testing.T) {
	var _ Limiter = NewPacer(time.Second)
}
