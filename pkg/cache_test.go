package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPutGetRoundTrip(t *testing.T) {
	c, err := New[string, string](1<<20, time.Minute, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	c.Put(context.Background(), "k", "v", 1)
	got, err := c.GetOrLoad(context.Background(), "k", func(context.Context, string) (string, error) {
		t.Fatal("loader must not run on an already-Put key")
		return "", nil
	})
	if err != nil || got != "v" {
		t.Fatalf("GetOrLoad: got (%q, %v), want (\"v\", nil)", got, err)
	}
}

func TestGetOrLoadRunsLoaderOnMiss(t *testing.T) {
	c, err := New[string, int](1<<20, time.Minute, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	var calls atomic.Int64
	got, err := c.GetOrLoad(context.Background(), "missing", func(context.Context, string) (int, error) {
		calls.Add(1)
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("GetOrLoad: got (%d, %v)", got, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one loader call, got %d", calls.Load())
	}

	// A second GetOrLoad for the same key must hit the now-populated entry
	// rather than invoking the loader again.
	got2, err := c.GetOrLoad(context.Background(), "missing", func(context.Context, string) (int, error) {
		calls.Add(1)
		return 0, errors.New("should not be called")
	})
	if err != nil || got2 != 42 {
		t.Fatalf("second GetOrLoad: got (%d, %v)", got2, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected the loader to run only once total, ran %d times", calls.Load())
	}
}

func TestGetOrLoadDeduplicatesConcurrentMisses(t *testing.T) {
	c, err := New[string, int](1<<20, time.Minute, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	var calls atomic.Int64
	loader := func(context.Context, string) (int, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return 7, nil
	}

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			v, err := c.GetOrLoad(context.Background(), "shared", loader)
			if err == nil && v != 7 {
				err = errors.New("unexpected value")
			}
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent GetOrLoad failed: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected singleflight to collapse concurrent misses to one loader call, got %d", calls.Load())
	}
}

func TestGetOrLoadPropagatesLoaderError(t *testing.T) {
	c, err := New[string, int](1<<20, time.Minute, 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	wantErr := errors.New("boom")
	_, err = c.GetOrLoad(context.Background(), "k", func(context.Context, string) (int, error) {
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected loader error to propagate, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("a failed load must not populate the cache")
	}
}

func TestNewRejectsInvalidArguments(t *testing.T) {
	if _, err := New[string, int](0, time.Minute, 4); err == nil {
		t.Fatal("expected an error for capBytes <= 0")
	}
	if _, err := New[string, int](1024, 0, 4); err == nil {
		t.Fatal("expected an error for ttl <= 0")
	}
	if _, err := New[string, int](1024, time.Minute, 3); err == nil {
		t.Fatal("expected an error for a non-power-of-two shard count")
	}
}

func TestWithMetricsRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New[string, int](1<<20, time.Minute, 2, WithMetrics[string, int](reg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	c.Put(context.Background(), "k", 1, 1)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatal("expected WithMetrics to register at least one collector")
	}
}

func TestWithWeightFnOverridesDefault(t *testing.T) {
	var used int
	weightFn := func(v int) int {
		used = v
		return v * 2
	}
	c, err := New[string, int](1<<20, time.Minute, 1, WithWeightFn[string, int](weightFn))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	_, err = c.GetOrLoad(context.Background(), "k", func(context.Context, string) (int, error) {
		return 5, nil
	})
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if used != 5 {
		t.Fatalf("expected the custom weight function to run on the loaded value, got used=%d", used)
	}
}
