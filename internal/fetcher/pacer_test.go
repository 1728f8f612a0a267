package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPacer_DelayNeverNegative(t *testing.T) {
	t.Parallel()

	p := NewPacer(10*time.Millisecond, 50*time.Millisecond, 0)
	for range 1000 {
		if d := p.Delay(); d < 0 {
			t.Fatalf("Delay() = %v, want >= 0", d)
		}
	}
}

func TestPacer_DelayDistribution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mean   time.Duration
		sigma  time.Duration
		sample float64
		want   time.Duration
	}{
		{name: "zero sigma returns the mean", mean: 100 * time.Millisecond, sigma: 0, sample: 3, want: 100 * time.Millisecond},
		{name: "positive sample", mean: 100 * time.Millisecond, sigma: 10 * time.Millisecond, sample: 1, want: 110 * time.Millisecond},
		{name: "negative sample", mean: 100 * time.Millisecond, sigma: 10 * time.Millisecond, sample: -2, want: 80 * time.Millisecond},
		{name: "reflected at zero", mean: 10 * time.Millisecond, sigma: 10 * time.Millisecond, sample: -3, want: 20 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := NewPacer(tt.mean, tt.sigma, 0)
			p.normal = func() float64 { return tt.sample }
			if got := p.Delay(); got != tt.want {
				t.Errorf("Delay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPacer_SharedSchedule(t *testing.T) {
	t.Parallel()

	const (
		workers = 4
		delay   = 25 * time.Millisecond
	)
	p := NewPacer(delay, 0, 0)

	start := time.Now()
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Wait(context.Background()); err != nil {
				t.Errorf("Wait() error = %v", err)
			}
		}()
	}
	wg.Wait()

	// Four requests on one schedule take four delays, not one.
	if elapsed := time.Since(start); elapsed < workers*delay-5*time.Millisecond {
		t.Errorf("elapsed = %v, want at least %v", elapsed, workers*delay)
	}
}

func TestPacer_WaitCancelled(t *testing.T) {
	t.Parallel()

	p := NewPacer(time.Hour, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestPacer_RateLimit(t *testing.T) {
	t.Parallel()

	p := NewPacer(0, 0, 20)
	start := time.Now()
	for range 3 {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	// Burst 1 at 20/s: the second and third requests wait ~50ms each.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 90ms", elapsed)
	}
}

func TestPacer_Nil(t *testing.T) {
	t.Parallel()

	var p *Pacer
	if err := p.Wait(context.Background()); err != nil {
		t.Errorf("nil Pacer Wait() error = %v", err)
	}
}
