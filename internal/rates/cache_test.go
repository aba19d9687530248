package rates

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ledgersync/internal/currency"
)

type stubSource struct {
	calls atomic.Int32
	mu    sync.Mutex
	table Table
	err   error
	gate  chan struct{}
}

func (s *stubSource) Fetch(context.Context, []currency.Code) (Table, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.table.Clone(), nil
}

func (s *stubSource) set(table Table, err error) {
	s.mu.Lock()
	s.table, s.err = table, err
	s.mu.Unlock()
}

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Add(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestCache(src Source) (*Cache, *fakeNow) {
	clock := &fakeNow{t: time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)}
	return NewCache(src, CacheOptions{Now: clock.Now}), clock
}

func TestCache_ServesUntilExpiry(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{table: Table{"USD_COP": 4000}}
	cache, clock := newTestCache(src)

	snap := cache.Rates(ctx)
	if snap.Rates["USD_COP"] != 4000 || snap.Fallback {
		t.Fatalf("snapshot = %+v", snap)
	}
	if !snap.ExpiresAt.Equal(snap.FetchedAt.Add(DefaultTTL)) {
		t.Errorf("expires at %v, want fetched + ttl", snap.ExpiresAt)
	}

	clock.Add(DefaultTTL - time.Second)
	cache.Rates(ctx)
	if n := src.calls.Load(); n != 1 {
		t.Errorf("fetches before expiry = %d, want 1", n)
	}

	src.set(Table{"USD_COP": 4300}, nil)
	clock.Add(2 * time.Second)
	if got := cache.Rates(ctx).Rates["USD_COP"]; got != 4300 {
		t.Errorf("after expiry USD_COP = %v, want 4300", got)
	}
}

func TestCache_MinRefreshInterval(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{table: Table{"USD_COP": 4000}}
	cache, clock := newTestCache(src)

	cache.Rates(ctx)
	clock.Add(time.Minute)
	cache.Refresh(ctx)
	if n := src.calls.Load(); n != 1 {
		t.Errorf("refresh inside min interval fetched: calls = %d", n)
	}

	clock.Add(DefaultMinRefresh)
	cache.Refresh(ctx)
	if n := src.calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestCache_FailureKeepsPreviousTable(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{table: Table{"USD_COP": 4000}}
	cache, clock := newTestCache(src)
	cache.Rates(ctx)

	src.set(nil, errors.New("upstream down"))
	clock.Add(DefaultTTL)
	snap := cache.Rates(ctx)
	if snap.Rates["USD_COP"] != 4000 || snap.Fallback {
		t.Errorf("snapshot = %+v, want previous table", snap)
	}
	if want := clock.Now().Add(10 * time.Minute); !snap.ExpiresAt.Equal(want) {
		t.Errorf("expires at %v, want %v", snap.ExpiresAt, want)
	}
}

func TestCache_FailureWithoutTableUsesFallback(t *testing.T) {
	cache, _ := newTestCache(&stubSource{err: errors.New("offline")})
	snap := cache.Rates(context.Background())
	if !snap.Fallback || snap.Rates["BTC_COP"] != 295_000_000 {
		t.Errorf("snapshot = %+v, want fallback rates", snap)
	}
	if got := cache.Convert(context.Background(), 1, currency.EUR, currency.COP); got != 4450 {
		t.Errorf("Convert = %v, want 4450", got)
	}
}

func TestCache_ConcurrentRefreshesShareOneFetch(t *testing.T) {
	src := &stubSource{table: Table{"USD_COP": 4000}, gate: make(chan struct{})}
	cache, _ := newTestCache(src)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.Rates(context.Background())
		}()
	}
	// Let every goroutine reach the shared call before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	if n := src.calls.Load(); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
}
