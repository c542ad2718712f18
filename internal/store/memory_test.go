package store

import (
	"errors"
	"testing"
	"time"

	"github.com/modubank/counselbot/internal/models"
)

func TestInMemoryStoreLifecycle(t *testing.T) {
	s := NewInMemoryStore()
	session := models.NewSessionState("s1")

	if err := s.Create(session); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := s.Create(session); err == nil {
		t.Error("duplicate Create succeeded, want error")
	}

	got, err := s.Get("s1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.SessionID != "s1" {
		t.Errorf("Get returned session %q", got.SessionID)
	}

	clone := got.Clone()
	clone.Collected.Set("confirm", true)
	if err := s.Save(clone); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, _ = s.Get("s1")
	if v, _ := got.Collected.Bool("confirm"); !v {
		t.Error("saved state not visible on Get")
	}

	s.Delete("s1")
	if _, err := s.Get("s1"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("Get after Delete = %v, want ErrSessionNotFound", err)
	}
	if err := s.Save(models.NewSessionState("ghost")); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("Save of unknown session = %v, want ErrSessionNotFound", err)
	}
}

func TestInMemoryStoreEvictIdle(t *testing.T) {
	s := NewInMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	if err := s.Create(models.NewSessionState("old")); err != nil {
		t.Fatal(err)
	}

	now = now.Add(20 * time.Minute)
	if err := s.Create(models.NewSessionState("fresh")); err != nil {
		t.Fatal(err)
	}

	if n := s.EvictIdle(30 * time.Minute); n != 0 {
		t.Errorf("EvictIdle evicted %d, want 0", n)
	}
	if n := s.EvictIdle(10 * time.Minute); n != 1 {
		t.Errorf("EvictIdle evicted %d, want 1", n)
	}
	if _, err := s.Get("old"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Error("idle session still retrievable after eviction")
	}
	if _, err := s.Get("fresh"); err != nil {
		t.Errorf("active session evicted: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestInMemoryStoreSaveRefreshesActivity(t *testing.T) {
	s := NewInMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	session := models.NewSessionState("s1")
	if err := s.Create(session); err != nil {
		t.Fatal(err)
	}

	now = now.Add(25 * time.Minute)
	if err := s.Save(session); err != nil {
		t.Fatal(err)
	}

	now = now.Add(10 * time.Minute)
	if n := s.EvictIdle(30 * time.Minute); n != 0 {
		t.Errorf("EvictIdle evicted %d after a recent Save, want 0", n)
	}
}
