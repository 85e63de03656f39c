package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"orgapi/internal/membership/models"
	id "orgapi/pkg/domain"
	"orgapi/pkg/platform/sentinel"
)

// InMemory is a map-backed applicant store for tests and single-process runs.
// A single mutex serializes every write, and the partial uniqueness rules of
// the PostgreSQL schema are checked under that mutex.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.ApplicantID]*models.Applicant
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[id.ApplicantID]*models.Applicant)}
}

// Create assigns an ID when the record has none and inserts it.
func (s *InMemory) Create(_ context.Context, applicant *models.Applicant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if applicant.ID.IsNil() {
		applicant.ID = id.NewApplicantID()
	}
	if _, exists := s.records[applicant.ID]; exists {
		return sentinel.ErrConflict
	}
	if s.violatesUniqueness(applicant) {
		return sentinel.ErrConflict
	}
	s.records[applicant.ID] = applicant.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, applicantID id.ApplicantID) (*models.Applicant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.records[applicantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return a.Clone(), nil
}

// Execute validates and mutates a copy of the record under the write lock,
// then stores it. The stored record is untouched when validate fails or the
// mutated copy breaks a uniqueness rule.
func (s *InMemory) Execute(_ context.Context, applicantID id.ApplicantID, validate func(*models.Applicant) error, mutate func(*models.Applicant)) (*models.Applicant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[applicantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	if s.violatesUniqueness(working) {
		return nil, sentinel.ErrConflict
	}
	s.records[applicantID] = working
	return working.Clone(), nil
}

func (s *InMemory) DeleteByID(_ context.Context, applicantID id.ApplicantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[applicantID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, applicantID)
	return nil
}

func (s *InMemory) ExistsByEmailAndStatus(_ context.Context, email string, status models.Status, exclude *id.ApplicantID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for recordID, a := range s.records {
		if exclude != nil && recordID == *exclude {
			continue
		}
		if a.Status == status && strings.EqualFold(a.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) ExistsByPersonalNrAndStatus(_ context.Context, personalNr string, status models.Status, exclude *id.ApplicantID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for recordID, a := range s.records {
		if exclude != nil && recordID == *exclude {
			continue
		}
		if a.Status == status && a.PersonalNr == personalNr {
			return true, nil
		}
	}
	return false, nil
}

// ListByStatus returns a newest-first page and the unpaged count.
func (s *InMemory) ListByStatus(_ context.Context, status models.Status, page models.Page) ([]*models.Applicant, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]*models.Applicant, 0)
	for _, a := range s.records {
		if a.Status == status {
			matches = append(matches, a)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID.String() > matches[j].ID.String()
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	total := len(matches)
	start := min(page.Offset(), total)
	end := min(start+page.Size, total)
	out := make([]*models.Applicant, 0, end-start)
	for _, a := range matches[start:end] {
		out = append(out, a.Clone())
	}
	return out, total, nil
}

// DeleteExpiredRejected removes REJECTED records whose deadline is before now.
// The predicate is evaluated under the write lock, so a record reverted to
// PENDING before the sweep acquires the lock survives.
func (s *InMemory) DeleteExpiredRejected(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for recordID, a := range s.records {
		if a.IsPurgeable(now) {
			delete(s.records, recordID)
			purged++
		}
	}
	return purged, nil
}

// violatesUniqueness mirrors the partial unique indexes: one PENDING per
// email, one ACCEPTED per email and one ACCEPTED per personal number.
// Caller must hold the write lock.
func (s *InMemory) violatesUniqueness(candidate *models.Applicant) bool {
	for recordID, other := range s.records {
		if recordID == candidate.ID || other.Status != candidate.Status {
			continue
		}
		switch candidate.Status {
		case models.StatusPending:
			if strings.EqualFold(other.Email, candidate.Email) {
				return true
			}
		case models.StatusAccepted:
			if strings.EqualFold(other.Email, candidate.Email) || other.PersonalNr == candidate.PersonalNr {
				return true
			}
		case models.StatusRejected:
		}
	}
	return false
}
