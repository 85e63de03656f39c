package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"orgapi/internal/membership/models"
	id "orgapi/pkg/domain"
	"orgapi/pkg/platform/sentinel"
	txcontext "orgapi/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

// PostgreSQL SQLSTATE codes mapped to sentinel errors.
const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

const applicantColumns = `
	id, first_name, last_name, date_of_birth, personal_nr, address, post_code, city, phone, email,
	occupation, payment_reference, payment_amount, status, created_at, updated_at, handled_at, delete_at`

// Migrate creates the applicant table and its partial unique indexes.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply membership schema: %w", err)
	}
	return nil
}

// PostgresStore persists applicant records in PostgreSQL.
// This store is pure I/O: transition rules live on the model and in the service.
// Uniqueness is enforced by partial unique indexes, reported as sentinel.ErrConflict.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// execer uses the transaction carried by ctx when there is one.
func (s *PostgresStore) execer(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFrom(ctx, s.db)
}

func (s *PostgresStore) Create(ctx context.Context, applicant *models.Applicant) error {
	if applicant == nil {
		return fmt.Errorf("applicant is required")
	}
	if applicant.ID.IsNil() {
		applicant.ID = id.NewApplicantID()
	}
	query := `
		INSERT INTO membership_applicants (` + applicantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		applicant.ID.String(),
		applicant.FirstName,
		applicant.LastName,
		dateArg(applicant.DateOfBirth),
		applicant.PersonalNr,
		applicant.Address,
		applicant.PostCode,
		applicant.City,
		applicant.Phone,
		applicant.Email,
		applicant.Occupation,
		applicant.PaymentReference,
		applicant.PaymentAmount,
		string(applicant.Status),
		applicant.CreatedAt,
		applicant.UpdatedAt,
		applicant.HandledAt,
		applicant.DeleteAt,
	)
	if err != nil {
		return mapWriteErr("create applicant", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, applicantID id.ApplicantID) (*models.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM membership_applicants WHERE id = $1`
	applicant, err := scanApplicant(s.execer(ctx).QueryRowContext(ctx, query, applicantID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find applicant by id: %w", err)
	}
	return applicant, nil
}

// Execute locks the row with SELECT ... FOR UPDATE, validates and mutates it,
// and writes it back. It joins the transaction in ctx if there is one,
// otherwise it runs its own.
func (s *PostgresStore) Execute(ctx context.Context, applicantID id.ApplicantID, validate func(*models.Applicant) error, mutate func(*models.Applicant)) (*models.Applicant, error) {
	var (
		applicant *models.Applicant
		opErr     error
	)
	err := txcontext.Run(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		applicant, opErr = s.executeInTx(ctx, tx, applicantID, validate, mutate)
		return opErr
	})
	if opErr != nil {
		return nil, opErr
	}
	if err != nil {
		return nil, mapWriteErr("commit execute", err)
	}
	return applicant, nil
}

func (s *PostgresStore) executeInTx(ctx context.Context, tx *sql.Tx, applicantID id.ApplicantID, validate func(*models.Applicant) error, mutate func(*models.Applicant)) (*models.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM membership_applicants WHERE id = $1 FOR UPDATE`
	applicant, err := scanApplicant(tx.QueryRowContext(ctx, query, applicantID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock applicant: %w", err)
	}

	if err := validate(applicant); err != nil {
		return nil, err
	}
	mutate(applicant)

	update := `
		UPDATE membership_applicants SET
			first_name = $2, last_name = $3, date_of_birth = $4, personal_nr = $5,
			address = $6, post_code = $7, city = $8, phone = $9, email = $10, occupation = $11,
			payment_reference = $12, payment_amount = $13, status = $14,
			updated_at = $15, handled_at = $16, delete_at = $17
		WHERE id = $1
	`
	_, err = tx.ExecContext(ctx, update,
		applicant.ID.String(),
		applicant.FirstName,
		applicant.LastName,
		dateArg(applicant.DateOfBirth),
		applicant.PersonalNr,
		applicant.Address,
		applicant.PostCode,
		applicant.City,
		applicant.Phone,
		applicant.Email,
		applicant.Occupation,
		applicant.PaymentReference,
		applicant.PaymentAmount,
		string(applicant.Status),
		applicant.UpdatedAt,
		applicant.HandledAt,
		applicant.DeleteAt,
	)
	if err != nil {
		return nil, mapWriteErr("update applicant", err)
	}
	return applicant, nil
}

func (s *PostgresStore) DeleteByID(ctx context.Context, applicantID id.ApplicantID) error {
	result, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM membership_applicants WHERE id = $1`, applicantID.String())
	if err != nil {
		return fmt.Errorf("delete applicant: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete applicant rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ExistsByEmailAndStatus(ctx context.Context, email string, status models.Status, exclude *id.ApplicantID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM membership_applicants
			WHERE lower(email) = lower($1) AND status = $2 AND ($3::uuid IS NULL OR id <> $3::uuid)
		)
	`
	var exists bool
	if err := s.execer(ctx).QueryRowContext(ctx, query, email, string(status), excludeArg(exclude)).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists by email and status: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ExistsByPersonalNrAndStatus(ctx context.Context, personalNr string, status models.Status, exclude *id.ApplicantID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM membership_applicants
			WHERE personal_nr = $1 AND status = $2 AND ($3::uuid IS NULL OR id <> $3::uuid)
		)
	`
	var exists bool
	if err := s.execer(ctx).QueryRowContext(ctx, query, personalNr, string(status), excludeArg(exclude)).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists by personal nr and status: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status, page models.Page) ([]*models.Applicant, int, error) {
	db := s.execer(ctx)

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM membership_applicants WHERE status = $1`, string(status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count applicants by status: %w", err)
	}

	query := `
		SELECT ` + applicantColumns + `
		FROM membership_applicants
		WHERE status = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := db.QueryContext(ctx, query, string(status), page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list applicants by status: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Applicant, 0)
	for rows.Next() {
		applicant, err := scanApplicant(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan applicant: %w", err)
		}
		out = append(out, applicant)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate applicants: %w", err)
	}
	return out, total, nil
}

// DeleteExpiredRejected deletes in one statement, so status and deadline are
// evaluated against each row's committed state at delete time.
func (s *PostgresStore) DeleteExpiredRejected(ctx context.Context, now time.Time) (int, error) {
	result, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM membership_applicants WHERE status = 'REJECTED' AND delete_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired rejected: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired rejected rows affected: %w", err)
	}
	return int(rows), nil
}

type applicantRow interface {
	Scan(dest ...any) error
}

func scanApplicant(row applicantRow) (*models.Applicant, error) {
	var (
		a           models.Applicant
		rawID       uuid.UUID
		status      string
		dateOfBirth sql.NullTime
		handledAt   sql.NullTime
		deleteAt    sql.NullTime
	)
	if err := row.Scan(
		&rawID,
		&a.FirstName,
		&a.LastName,
		&dateOfBirth,
		&a.PersonalNr,
		&a.Address,
		&a.PostCode,
		&a.City,
		&a.Phone,
		&a.Email,
		&a.Occupation,
		&a.PaymentReference,
		&a.PaymentAmount,
		&status,
		&a.CreatedAt,
		&a.UpdatedAt,
		&handledAt,
		&deleteAt,
	); err != nil {
		return nil, err
	}
	a.ID = id.ApplicantID(rawID)
	a.Status = models.Status(status)
	if dateOfBirth.Valid {
		a.DateOfBirth = &models.Date{Time: dateOfBirth.Time}
	}
	if handledAt.Valid {
		a.HandledAt = &handledAt.Time
	}
	if deleteAt.Valid {
		a.DeleteAt = &deleteAt.Time
	}
	return &a, nil
}

func dateArg(d *models.Date) any {
	if d == nil {
		return nil
	}
	return d.Time
}

func excludeArg(exclude *id.ApplicantID) any {
	if exclude == nil {
		return nil
	}
	return exclude.String()
}

func mapWriteErr(action string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%s: %w", action, sentinel.ErrConflict)
		case checkViolation:
			return fmt.Errorf("%s: %s: %w", action, pqErr.Constraint, sentinel.ErrInvariantViolation)
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}
