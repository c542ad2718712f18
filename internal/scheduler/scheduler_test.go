package scheduler

import (
	"testing"
	"time"

	"github.com/modubank/counselbot/internal/models"
	"github.com/modubank/counselbot/internal/store"
)

func TestAddJobValidatesExpression(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddJob("*/5 * * * *", func() {}); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := s.AddJob("not a cron expr", func() {}); err == nil {
		t.Error("invalid expression accepted")
	}
	// 6-field (seconds) expressions are not part of the configured format.
	if err := s.AddJob("0 */5 * * * *", func() {}); err == nil {
		t.Error("6-field expression accepted")
	}
}

func TestScheduleSessionEviction(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	st := store.NewInMemoryStore()
	if err := st.Create(models.NewSessionState("s1")); err != nil {
		t.Fatal(err)
	}
	if err := s.ScheduleSessionEviction("*/5 * * * *", st, 30*time.Minute); err != nil {
		t.Fatalf("ScheduleSessionEviction error: %v", err)
	}
	if err := s.ScheduleSessionEviction("bogus", st, time.Minute); err == nil {
		t.Error("bogus expression accepted")
	}
}
