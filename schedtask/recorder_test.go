package schedtask

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"nse-alerts-dashboard/model"
	"nse-alerts-dashboard/notify"
	"nse-alerts-dashboard/realtime"
)

type fakeStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (f *fakeStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = raw
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

type bannerSurface struct {
	mu      sync.Mutex
	banners []Banner
}

func (b *bannerSurface) Publish(event string, payload interface{}) {
	if event != realtime.EventTaskBanner {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.banners = append(b.banners, payload.(Banner))
}

func (b *bannerSurface) last(t *testing.T) Banner {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.banners) == 0 {
		t.Fatal("no banner published")
	}
	return b.banners[len(b.banners)-1]
}

func newTestRecorder(store Store, at time.Time) (*Recorder, *bannerSurface) {
	surface := &bannerSurface{}
	r := NewRecorder(store, surface, notify.New(realtime.NopSurface{}), "fetch_quotes")
	r.now = func() time.Time { return at }
	return r, surface
}

func TestHandleEventPersistsTrackedTask(t *testing.T) {
	store := newFakeStore()
	at := time.Date(2026, 8, 30, 9, 15, 0, 0, time.UTC)
	r, surface := newTestRecorder(store, at)

	r.HandleEvent(context.Background(), model.ScheduledTaskEvent{
		Status:  "completed",
		Task:    "fetch_quotes",
		Message: "Quotes updated",
	})

	banner := surface.last(t)
	if banner.Level != "success" || banner.Message != "Quotes updated" {
		t.Errorf("banner: %+v", banner)
	}

	var rec model.ScheduledTaskRecord
	found, err := store.Get(context.Background(), statusKey, &rec)
	if err != nil || !found {
		t.Fatalf("record not persisted: found=%v err=%v", found, err)
	}
	if rec.Date != "2026-08-30" || rec.Time != "09:15:00" {
		t.Errorf("record stamps: %+v", rec)
	}
}

func TestHandleEventIgnoresOtherTasks(t *testing.T) {
	store := newFakeStore()
	r, surface := newTestRecorder(store, time.Now())

	r.HandleEvent(context.Background(), model.ScheduledTaskEvent{
		Status: "completed",
		Task:   "cleanup_logs",
	})

	surface.mu.Lock()
	defer surface.mu.Unlock()
	if len(surface.banners) != 0 {
		t.Error("untracked task should not touch the banner")
	}
	if len(store.data) != 0 {
		t.Error("untracked task should not be persisted")
	}
}

func TestRestoreSameDayTerminal(t *testing.T) {
	store := newFakeStore()
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	rec := model.ScheduledTaskRecord{
		Status: "completed", Message: "Quotes updated",
		Time: "09:15:00", Date: "2026-08-30",
	}
	if err := store.Set(context.Background(), statusKey, rec, 0); err != nil {
		t.Fatal(err)
	}

	r, surface := newTestRecorder(store, at)
	r.Restore(context.Background())

	banner := surface.last(t)
	if banner.Message != "Quotes updated" || banner.Time != "09:15:00" {
		t.Errorf("restored banner: %+v", banner)
	}
}

func TestRestoreDiscardsStaleDate(t *testing.T) {
	store := newFakeStore()
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	rec := model.ScheduledTaskRecord{Status: "completed", Date: "2026-08-29"}
	if err := store.Set(context.Background(), statusKey, rec, 0); err != nil {
		t.Fatal(err)
	}

	r, surface := newTestRecorder(store, at)
	r.Restore(context.Background())

	banner := surface.last(t)
	if banner.Message != "Waiting for scheduled task..." {
		t.Errorf("stale record should reset to waiting, got %+v", banner)
	}
	if len(store.data) != 0 {
		t.Error("stale record should be cleared from the store")
	}
}

func TestRestoreSkipsRunningStatus(t *testing.T) {
	store := newFakeStore()
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	rec := model.ScheduledTaskRecord{Status: "progress", Date: "2026-08-30", Progress: 40}
	if err := store.Set(context.Background(), statusKey, rec, 0); err != nil {
		t.Fatal(err)
	}

	r, surface := newTestRecorder(store, at)
	r.Restore(context.Background())

	banner := surface.last(t)
	if banner.Message != "Waiting for scheduled task..." {
		t.Errorf("in-flight record should not be restored, got %+v", banner)
	}
}

func TestRestoreEmptyStore(t *testing.T) {
	r, surface := newTestRecorder(newFakeStore(), time.Now())
	r.Restore(context.Background())

	if surface.last(t).Message != "Waiting for scheduled task..." {
		t.Error("empty store should show the waiting banner")
	}
}
