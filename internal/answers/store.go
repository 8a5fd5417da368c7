package answers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Store persists one JSON document per user under dir. All mutations for a
// given user id are serialized through a per-user lock so that overlapping
// read-modify-write cycles cannot lose records. Plain reads skip the lock
// and may observe the state from just before an in-flight write completes.
type Store struct {
	dir   string
	clock Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open creates (if needed) the answer directory and returns a Store.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating answer directory: %v", ErrUnavailable, err)
	}
	return &Store{
		dir:   dir,
		clock: realClock{},
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// OpenWithClock is Open with an injected clock (for tests).
func OpenWithClock(dir string, clock Clock) (*Store, error) {
	s, err := Open(dir)
	if err != nil {
		return nil, err
	}
	s.clock = clock
	return s, nil
}

func (s *Store) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

func (s *Store) path(userID string) string {
	return filepath.Join(s.dir, userID+"-answers.json")
}

// Load returns the user's full answer set. A user with no persisted record
// gets an empty set, not an error; only real I/O or parse failures are
// reported, wrapping ErrUnavailable.
func (s *Store) Load(userID string) (UserAnswerSet, error) {
	if err := validateUserID(userID); err != nil {
		return UserAnswerSet{}, err
	}

	data, err := os.ReadFile(s.path(userID))
	if os.IsNotExist(err) {
		return UserAnswerSet{UserID: userID}, nil
	}
	if err != nil {
		return UserAnswerSet{}, fmt.Errorf("%w: reading answers for %s: %v", ErrUnavailable, userID, err)
	}

	var set UserAnswerSet
	if err := json.Unmarshal(data, &set); err != nil {
		return UserAnswerSet{}, fmt.Errorf("%w: parsing answers for %s: %v", ErrUnavailable, userID, err)
	}
	if set.UserID == "" {
		set.UserID = userID
	}
	return set, nil
}

// Upsert inserts or replaces the record for questionID in the user's set and
// returns the stored record. CreatedAt is preserved for an existing record;
// UpdatedAt always advances. The write replaces the whole set atomically
// (temp file + rename), so a failure partway leaves the previous state on disk.
func (s *Store) Upsert(userID string, questionID int, answer string, status Status) (AnswerRecord, error) {
	if err := validateUserID(userID); err != nil {
		return AnswerRecord{}, err
	}
	if !status.Valid() {
		return AnswerRecord{}, fmt.Errorf("invalid status %q", status)
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	set, err := s.Load(userID)
	if err != nil {
		return AnswerRecord{}, err
	}

	now := s.clock.Now()
	rec := AnswerRecord{
		QuestionID: questionID,
		Answer:     answer,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	replaced := false
	for i, existing := range set.Answers {
		if existing.QuestionID == questionID {
			rec.CreatedAt = existing.CreatedAt
			set.Answers[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		set.Answers = append(set.Answers, rec)
	}
	set.UserID = userID

	if err := s.write(userID, set); err != nil {
		return AnswerRecord{}, err
	}
	return rec, nil
}

func (s *Store) write(userID string, set UserAnswerSet) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding answers for %s: %v", ErrUnavailable, userID, err)
	}

	tmp, err := os.CreateTemp(s.dir, userID+"-answers-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrUnavailable, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing answers for %s: %v", ErrUnavailable, userID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing temp file: %v", ErrUnavailable, err)
	}

	if err := os.Rename(tmpPath, s.path(userID)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: replacing answers for %s: %v", ErrUnavailable, userID, err)
	}
	return nil
}

// Users lists the ids of all users with a persisted answer set, sorted.
func (s *Store) Users() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: listing answer directory: %v", ErrUnavailable, err)
	}

	var users []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, "-answers.json") {
			continue
		}
		users = append(users, strings.TrimSuffix(name, "-answers.json"))
	}
	sort.Strings(users)
	return users, nil
}
