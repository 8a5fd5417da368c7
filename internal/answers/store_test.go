package answers

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// fakeClock returns a fixed time and can be advanced between calls.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func openTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s, err := OpenWithClock(t.TempDir(), clock)
	if err != nil {
		t.Fatalf("OpenWithClock failed: %v", err)
	}
	return s, clock
}

func TestLoad_FreshUserIsEmptyNotError(t *testing.T) {
	s, _ := openTestStore(t)

	set, err := s.Load("u1")
	if err != nil {
		t.Fatalf("Load for fresh user failed: %v", err)
	}
	if set.UserID != "u1" {
		t.Errorf("UserID = %q, want %q", set.UserID, "u1")
	}
	if len(set.Answers) != 0 {
		t.Errorf("Answers = %v, want empty", set.Answers)
	}
}

func TestLoad_CorruptFileIsUnavailable(t *testing.T) {
	s, _ := openTestStore(t)

	if err := os.WriteFile(s.path("u1"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	_, err := s.Load("u1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Load corrupt file: err = %v, want ErrUnavailable", err)
	}
}

func TestUpsert_InsertThenUpdate(t *testing.T) {
	s, clock := openTestStore(t)

	first, err := s.Upsert("u1", 3, "original", StatusAnswered)
	if err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}

	clock.Advance(time.Minute)

	second, err := s.Upsert("u1", 3, "revised", StatusAnswered)
	if err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("UpdatedAt did not advance: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}

	set, err := s.Load("u1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(set.Answers) != 1 {
		t.Fatalf("got %d records for question 3, want 1", len(set.Answers))
	}
	if set.Answers[0].Answer != "revised" {
		t.Errorf("Answer = %q, want %q", set.Answers[0].Answer, "revised")
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	s, _ := openTestStore(t)

	if _, err := s.Upsert("u1", 1, "same text", StatusAnswered); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}
	if _, err := s.Upsert("u1", 1, "same text", StatusAnswered); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	set, err := s.Load("u1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	rec, ok := set.Get(1)
	if !ok {
		t.Fatal("record for question 1 missing")
	}
	if rec.Answer != "same text" || rec.Status != StatusAnswered {
		t.Errorf("record = %+v, want answer %q status %q", rec, "same text", StatusAnswered)
	}
}

func TestUpsert_SkipKeepsOtherRecords(t *testing.T) {
	s, _ := openTestStore(t)

	if _, err := s.Upsert("u1", 1, "kept", StatusAnswered); err != nil {
		t.Fatalf("Upsert question 1 failed: %v", err)
	}
	if _, err := s.Upsert("u1", 2, "", StatusSkipped); err != nil {
		t.Fatalf("Upsert question 2 failed: %v", err)
	}

	set, err := s.Load("u1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(set.Answers) != 2 {
		t.Fatalf("got %d records, want 2", len(set.Answers))
	}
	if rec, _ := set.Get(1); rec.Answer != "kept" {
		t.Errorf("question 1 answer = %q, want %q", rec.Answer, "kept")
	}
	if rec, _ := set.Get(2); rec.Status != StatusSkipped {
		t.Errorf("question 2 status = %q, want %q", rec.Status, StatusSkipped)
	}
}

func TestUpsert_InvalidStatus(t *testing.T) {
	s, _ := openTestStore(t)

	if _, err := s.Upsert("u1", 1, "x", Status("pending")); err == nil {
		t.Fatal("Upsert with invalid status succeeded, want error")
	}
}

func TestUpsert_ConcurrentWritersDoNotLoseRecords(t *testing.T) {
	s, _ := openTestStore(t)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(qid int) {
			defer wg.Done()
			_, errs[qid-1] = s.Upsert("u1", qid, "answer", StatusAnswered)
		}(i + 1)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Upsert for question %d failed: %v", i+1, err)
		}
	}

	set, err := s.Load("u1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(set.Answers) != writers {
		t.Fatalf("got %d records after %d concurrent upserts, want %d", len(set.Answers), writers, writers)
	}
	for qid := 1; qid <= writers; qid++ {
		if _, ok := set.Get(qid); !ok {
			t.Errorf("record for question %d was lost", qid)
		}
	}
}

func TestUserIDValidation(t *testing.T) {
	s, _ := openTestStore(t)

	for _, id := range []string{"", "a/b", `a\b`, "..", "."} {
		if _, err := s.Upsert(id, 1, "x", StatusAnswered); !errors.Is(err, ErrInvalidUserID) {
			t.Errorf("Upsert(%q): err = %v, want ErrInvalidUserID", id, err)
		}
		if _, err := s.Load(id); !errors.Is(err, ErrInvalidUserID) {
			t.Errorf("Load(%q): err = %v, want ErrInvalidUserID", id, err)
		}
	}
}

func TestUsers(t *testing.T) {
	s, _ := openTestStore(t)

	if _, err := s.Upsert("bob", 1, "x", StatusAnswered); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := s.Upsert("alice", 1, "y", StatusAnswered); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	// Stray file that is not an answer set.
	if err := os.WriteFile(filepath.Join(s.dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing stray file: %v", err)
	}

	users, err := s.Users()
	if err != nil {
		t.Fatalf("Users failed: %v", err)
	}
	if len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
		t.Errorf("Users() = %v, want [alice bob]", users)
	}
}
