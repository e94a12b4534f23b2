package manifest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chartdeck/chartdeck/internal/protocol"
)

type stubFetcher struct {
	mu      sync.Mutex
	calls   int32
	delay   time.Duration
	err     error
	folders map[string]*protocol.Folder
}

func (s *stubFetcher) FetchManifest(ctx context.Context, folderName string) (*protocol.Folder, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.folders[folderName]; ok {
		return f, nil
	}
	return &protocol.Folder{Name: folderName}, nil
}

func TestCache_HitSkipsFetch(t *testing.T) {
	f := &stubFetcher{}
	c := New(f, time.Minute)

	if _, err := c.Get(context.Background(), "week1"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if _, err := c.Get(context.Background(), "week1"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if n := atomic.LoadInt32(&f.calls); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}
}

func TestCache_Expiry(t *testing.T) {
	f := &stubFetcher{}
	c := New(f, 20*time.Millisecond)

	c.Get(context.Background(), "week1")
	time.Sleep(40 * time.Millisecond)
	c.Get(context.Background(), "week1")

	if n := atomic.LoadInt32(&f.calls); n != 2 {
		t.Errorf("fetch calls = %d, want 2 after expiry", n)
	}
}

func TestCache_Invalidate(t *testing.T) {
	f := &stubFetcher{}
	c := New(f, time.Minute)

	c.Get(context.Background(), "week1")
	c.Invalidate("week1")
	c.Get(context.Background(), "week1")

	if n := atomic.LoadInt32(&f.calls); n != 2 {
		t.Errorf("fetch calls = %d, want 2 after invalidation", n)
	}
}

func TestCache_CoalescesConcurrentMisses(t *testing.T) {
	f := &stubFetcher{delay: 30 * time.Millisecond}
	c := New(f, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(context.Background(), "week1"); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&f.calls); n != 1 {
		t.Errorf("fetch calls = %d, want 1 coalesced fetch", n)
	}
}

func TestCache_FetchErrorPropagatesAndIsNotCached(t *testing.T) {
	f := &stubFetcher{err: errors.New("upstream down")}
	c := New(f, time.Minute)

	if _, err := c.Get(context.Background(), "week1"); err == nil {
		t.Fatal("expected error from failed fetch")
	}

	f.err = nil
	folder, err := c.Get(context.Background(), "week1")
	if err != nil {
		t.Fatalf("get after recovery: %v", err)
	}
	if folder.Name != "week1" {
		t.Errorf("folder name = %q", folder.Name)
	}
}

func TestCache_FoldersAreIndependent(t *testing.T) {
	f := &stubFetcher{folders: map[string]*protocol.Folder{
		"week1": {Name: "week1", Files: []protocol.FileDescriptor{{FileName: "AAPL/D.json"}}},
		"week2": {Name: "week2"},
	}}
	c := New(f, time.Minute)

	a, _ := c.Get(context.Background(), "week1")
	b, _ := c.Get(context.Background(), "week2")
	if len(a.Files) != 1 || len(b.Files) != 0 {
		t.Error("cache mixed up folder entries")
	}
	if n := atomic.LoadInt32(&f.calls); n != 2 {
		t.Errorf("fetch calls = %d, want 2", n)
	}
}
