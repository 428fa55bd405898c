package store

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func finishedAt(t time.Time) *time.Time {
	return &t
}

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore(0)
	if store == nil {
		t.Fatal("NewMemoryStore() = nil")
	}

	if len(store.GetAll()) != 0 {
		t.Errorf("GetAll() = %v items, want 0", len(store.GetAll()))
	}
	if store.maxRecords != DefaultMaxRecords {
		t.Errorf("maxRecords = %d, want %d", store.maxRecords, DefaultMaxRecords)
	}
}

func TestMemoryStore_UpdateAndGet(t *testing.T) {
	store := NewMemoryStore(10)

	store.Update(PollRecord{
		ID:        "p1",
		Name:      "history",
		URL:       "https://example.com",
		State:     "running",
		StartedAt: time.Now(),
	})

	got, ok := store.Get("p1")
	if !ok {
		t.Fatal("Get(p1) not found")
	}
	if got.Name != "history" {
		t.Errorf("Get(p1).Name = %v, want %v", got.Name, "history")
	}
	if got.Finished() {
		t.Error("Finished() = true for running record")
	}

	if _, ok := store.Get("missing"); ok {
		t.Error("Get(missing) found a record")
	}
}

func TestMemoryStore_UpdateOverwrites(t *testing.T) {
	store := NewMemoryStore(10)
	now := time.Now()

	store.Update(PollRecord{ID: "p1", State: "running", Attempts: 1, StartedAt: now})
	store.Update(PollRecord{ID: "p1", State: "running", Attempts: 2, StartedAt: now})
	store.Update(PollRecord{ID: "p1", State: "matched", Attempts: 3, StartedAt: now, FinishedAt: finishedAt(now)})

	all := store.GetAll()
	if len(all) != 1 {
		t.Fatalf("GetAll() = %v items, want 1", len(all))
	}
	if all[0].State != "matched" {
		t.Errorf("GetAll()[0].State = %v, want %v", all[0].State, "matched")
	}
	if all[0].Attempts != 3 {
		t.Errorf("GetAll()[0].Attempts = %v, want %v", all[0].Attempts, 3)
	}
}

func TestMemoryStore_GetAllOldestFirst(t *testing.T) {
	store := NewMemoryStore(10)
	base := time.Now()

	store.Update(PollRecord{ID: "c", StartedAt: base.Add(2 * time.Second)})
	store.Update(PollRecord{ID: "a", StartedAt: base})
	store.Update(PollRecord{ID: "b", StartedAt: base.Add(time.Second)})

	all := store.GetAll()
	if len(all) != 3 {
		t.Fatalf("GetAll() = %v items, want 3", len(all))
	}
	for i, want := range []string{"a", "b", "c"} {
		if all[i].ID != want {
			t.Errorf("GetAll()[%d].ID = %v, want %v", i, all[i].ID, want)
		}
	}
}

func TestMemoryStore_EvictsOldestFinished(t *testing.T) {
	store := NewMemoryStore(2)
	base := time.Now()

	store.Update(PollRecord{ID: "old", StartedAt: base, FinishedAt: finishedAt(base)})
	store.Update(PollRecord{ID: "running", StartedAt: base.Add(-time.Hour)})
	store.Update(PollRecord{ID: "new", StartedAt: base.Add(time.Second), FinishedAt: finishedAt(base)})

	if _, ok := store.Get("old"); ok {
		t.Error("oldest finished record was not evicted")
	}
	if _, ok := store.Get("running"); !ok {
		t.Error("running record was evicted")
	}
	if _, ok := store.Get("new"); !ok {
		t.Error("newest record was evicted")
	}
}

func TestMemoryStore_NeverEvictsRunning(t *testing.T) {
	store := NewMemoryStore(1)
	base := time.Now()

	store.Update(PollRecord{ID: "a", StartedAt: base})
	store.Update(PollRecord{ID: "b", StartedAt: base})

	if got := len(store.GetAll()); got != 2 {
		t.Errorf("GetAll() = %v items, want 2", got)
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	store := NewMemoryStore(10)

	ch := store.Subscribe()
	if ch == nil {
		t.Fatal("Subscribe() = nil")
	}

	go func() {
		store.Update(PollRecord{ID: "p1", Name: "Test"})
	}()

	select {
	case rec := <-ch:
		if rec.Name != "Test" {
			t.Errorf("received Name = %v, want %v", rec.Name, "Test")
		}
	case <-time.After(1 * time.Second):
		t.Error("Subscribe() channel did not receive update")
	}
}

func TestMemoryStore_MultipleSubscribers(t *testing.T) {
	store := NewMemoryStore(10)

	ch1 := store.Subscribe()
	ch2 := store.Subscribe()
	ch3 := store.Subscribe()

	go func() {
		store.Update(PollRecord{ID: "p1"})
	}()

	received := 0
	timeout := time.After(1 * time.Second)

	for received < 3 {
		select {
		case <-ch1:
			received++
		case <-ch2:
			received++
		case <-ch3:
			received++
		case <-timeout:
			t.Fatalf("Only received %d/3 updates", received)
		}
	}
}

func TestMemoryStore_Unsubscribe(t *testing.T) {
	store := NewMemoryStore(10)

	ch := store.Subscribe()
	store.Unsubscribe(ch)
	store.Unsubscribe(ch) // second call is a no-op

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Unsubscribe() channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Unsubscribe() channel should be closed immediately")
	}
}

func TestMemoryStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	store := NewMemoryStore(10)

	// never read
	_ = store.Subscribe()

	ch2 := store.Subscribe()
	go func() {
		for range ch2 {
		}
	}()

	done := make(chan bool)
	go func() {
		for i := 0; i < 200; i++ {
			store.Update(PollRecord{ID: "p1", Attempts: i})
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Update() blocked on slow subscriber")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(50)

	var wg sync.WaitGroup
	numGoroutines := 10
	numUpdates := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				now := time.Now()
				store.Update(PollRecord{
					ID:         fmt.Sprintf("p-%d-%d", id, j),
					StartedAt:  now,
					FinishedAt: finishedAt(now),
				})
			}
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				_ = store.GetAll()
				_, _ = store.Get("p-0-0")
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := store.Subscribe()
			time.Sleep(10 * time.Millisecond)
			store.Unsubscribe(ch)
		}()
	}

	wg.Wait()

	if got := len(store.GetAll()); got > 50 {
		t.Errorf("GetAll() = %d items, want at most 50", got)
	}
}
