package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"orgapi/internal/membership/models"
	id "orgapi/pkg/domain"
	dErrors "orgapi/pkg/domain-errors"
	"orgapi/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newApplication(email, personalNr string) *models.Applicant {
	return models.NewApplication(models.PersonalData{
		FirstName:  "Ola",
		LastName:   "Nordmann",
		PersonalNr: personalNr,
		Email:      email,
	}, "REF", 300, s.now)
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	s.Run("assigns an id and round-trips the record", func() {
		a := s.newApplication("a@example.com", "1")
		s.Require().NoError(s.store.Create(s.ctx, a))
		s.False(a.ID.IsNil())

		found, err := s.store.FindByID(s.ctx, a.ID)
		s.Require().NoError(err)
		s.Equal(a.Email, found.Email)
		s.Equal(models.StatusPending, found.Status)
	})

	s.Run("returned records are copies", func() {
		a := s.newApplication("copy@example.com", "2")
		s.Require().NoError(s.store.Create(s.ctx, a))

		found, err := s.store.FindByID(s.ctx, a.ID)
		s.Require().NoError(err)
		found.FirstName = "Mutated"

		again, err := s.store.FindByID(s.ctx, a.ID)
		s.Require().NoError(err)
		s.Equal("Ola", again.FirstName)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.FindByID(s.ctx, id.NewApplicantID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestUniquenessConstraints() {
	s.Run("one pending application per email, case-insensitive", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newApplication("dup@example.com", "10")))
		err := s.store.Create(s.ctx, s.newApplication("DUP@example.com", "11"))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("one accepted member per personal number", func() {
		first := models.NewMember(models.PersonalData{FirstName: "A", LastName: "B", Email: "m1@example.com", PersonalNr: "99"}, "", 0, s.now)
		second := models.NewMember(models.PersonalData{FirstName: "A", LastName: "B", Email: "m2@example.com", PersonalNr: "99"}, "", 0, s.now)
		s.Require().NoError(s.store.Create(s.ctx, first))
		s.ErrorIs(s.store.Create(s.ctx, second), sentinel.ErrConflict)
	})

	s.Run("accepting into an existing member identity conflicts", func() {
		member := models.NewMember(models.PersonalData{FirstName: "A", LastName: "B", Email: "taken@example.com", PersonalNr: "500"}, "", 0, s.now)
		s.Require().NoError(s.store.Create(s.ctx, member))
		pending := s.newApplication("taken@example.com", "501")
		s.Require().NoError(s.store.Create(s.ctx, pending))

		_, err := s.store.Execute(s.ctx, pending.ID,
			func(a *models.Applicant) error { return a.CanAccept() },
			func(a *models.Applicant) { a.ApplyAccept(s.now) },
		)
		s.ErrorIs(err, sentinel.ErrConflict)

		unchanged, err := s.store.FindByID(s.ctx, pending.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, unchanged.Status)
	})

	s.Run("rejected records do not block each other", func() {
		for i := 0; i < 2; i++ {
			a := s.newApplication("again@example.com", "600")
			a.ApplyReject(s.now, time.Hour)
			s.Require().NoError(s.store.Create(s.ctx, a))
		}
	})
}

func (s *InMemoryStoreSuite) TestExecute() {
	s.Run("validation failure leaves record untouched", func() {
		a := s.newApplication("exec@example.com", "20")
		s.Require().NoError(s.store.Create(s.ctx, a))

		_, err := s.store.Execute(s.ctx, a.ID,
			func(a *models.Applicant) error { return a.CanRevert() },
			func(a *models.Applicant) { a.ApplyRevert(s.now) },
		)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("missing record is not found", func() {
		_, err := s.store.Execute(s.ctx, id.NewApplicantID(),
			func(*models.Applicant) error { return nil },
			func(*models.Applicant) {},
		)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("concurrent accepts on one record have exactly one winner", func() {
		a := s.newApplication("race@example.com", "21")
		s.Require().NoError(s.store.Create(s.ctx, a))

		const goroutines = 20
		var wg sync.WaitGroup
		var wins, conflicts atomic.Int32
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.store.Execute(s.ctx, a.ID,
					func(a *models.Applicant) error { return a.CanAccept() },
					func(a *models.Applicant) { a.ApplyAccept(s.now) },
				)
				if err == nil {
					wins.Add(1)
				} else if dErrors.HasCode(err, dErrors.CodeConflict) {
					conflicts.Add(1)
				}
			}()
		}
		wg.Wait()

		s.Equal(int32(1), wins.Load())
		s.Equal(int32(goroutines-1), conflicts.Load())
	})
}

func (s *InMemoryStoreSuite) TestExistsQueries() {
	member := models.NewMember(models.PersonalData{FirstName: "A", LastName: "B", Email: "Exists@Example.com", PersonalNr: "700"}, "", 0, s.now)
	s.Require().NoError(s.store.Create(s.ctx, member))

	exists, err := s.store.ExistsByEmailAndStatus(s.ctx, "exists@example.com", models.StatusAccepted, nil)
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.store.ExistsByEmailAndStatus(s.ctx, "exists@example.com", models.StatusAccepted, &member.ID)
	s.Require().NoError(err)
	s.False(exists, "own id is excluded")

	exists, err = s.store.ExistsByEmailAndStatus(s.ctx, "exists@example.com", models.StatusPending, nil)
	s.Require().NoError(err)
	s.False(exists)

	exists, err = s.store.ExistsByPersonalNrAndStatus(s.ctx, "700", models.StatusAccepted, nil)
	s.Require().NoError(err)
	s.True(exists)
}

func (s *InMemoryStoreSuite) TestListByStatus() {
	for i := 0; i < 5; i++ {
		a := s.newApplication("list"+string(rune('a'+i))+"@example.com", "8"+string(rune('0'+i)))
		a.CreatedAt = s.now.Add(time.Duration(i) * time.Minute)
		s.Require().NoError(s.store.Create(s.ctx, a))
	}

	items, total, err := s.store.ListByStatus(s.ctx, models.StatusPending, models.Page{Number: 0, Size: 2})
	s.Require().NoError(err)
	s.Equal(5, total)
	s.Require().Len(items, 2)
	s.Equal("liste@example.com", items[0].Email, "newest first")

	items, _, err = s.store.ListByStatus(s.ctx, models.StatusPending, models.Page{Number: 2, Size: 2})
	s.Require().NoError(err)
	s.Len(items, 1)

	items, total, err = s.store.ListByStatus(s.ctx, models.StatusAccepted, models.Page{Size: 10})
	s.Require().NoError(err)
	s.Zero(total)
	s.Empty(items)
}

func (s *InMemoryStoreSuite) TestDeleteExpiredRejected() {
	expired := s.newApplication("old@example.com", "30")
	expired.ApplyReject(s.now, 24*time.Hour)
	fresh := s.newApplication("new@example.com", "31")
	fresh.ApplyReject(s.now, 30*24*time.Hour)
	pending := s.newApplication("pending@example.com", "32")
	for _, a := range []*models.Applicant{expired, fresh, pending} {
		s.Require().NoError(s.store.Create(s.ctx, a))
	}

	purged, err := s.store.DeleteExpiredRejected(s.ctx, s.now.Add(48*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, purged)

	purged, err = s.store.DeleteExpiredRejected(s.ctx, s.now.Add(48*time.Hour))
	s.Require().NoError(err)
	s.Zero(purged, "second sweep is a no-op")

	_, err = s.store.FindByID(s.ctx, expired.ID)
	s.True(errors.Is(err, sentinel.ErrNotFound))
	_, err = s.store.FindByID(s.ctx, fresh.ID)
	s.NoError(err)
	_, err = s.store.FindByID(s.ctx, pending.ID)
	s.NoError(err)
}

func (s *InMemoryStoreSuite) TestDeleteExpiredRejectedAtDeadline() {
	a := s.newApplication("edge@example.com", "33")
	a.ApplyReject(s.now, 24*time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, a))

	purged, err := s.store.DeleteExpiredRejected(s.ctx, *a.DeleteAt)
	s.Require().NoError(err)
	s.Zero(purged, "a record is kept on its deadline")

	purged, err = s.store.DeleteExpiredRejected(s.ctx, a.DeleteAt.Add(time.Nanosecond))
	s.Require().NoError(err)
	s.Equal(1, purged)
}

func (s *InMemoryStoreSuite) TestDeleteByID() {
	a := s.newApplication("del@example.com", "40")
	s.Require().NoError(s.store.Create(s.ctx, a))
	s.Require().NoError(s.store.DeleteByID(s.ctx, a.ID))
	s.ErrorIs(s.store.DeleteByID(s.ctx, a.ID), sentinel.ErrNotFound)
}
