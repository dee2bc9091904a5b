package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vektorkite/internal/profile/models"
	"vektorkite/internal/registration/ports"
	id "vektorkite/pkg/domain"
	"vektorkite/pkg/email"
	"vektorkite/pkg/platform/sentinel"
	txcontext "vektorkite/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Store persists provider profiles in the service_providers table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// CreatePending upserts the profile. Verification columns are left alone on
// conflict so a repeated signup never un-verifies an account.
func (s *Store) CreatePending(ctx context.Context, profile ports.Profile) error {
	var dob any
	if !profile.DateOfBirth.IsZero() {
		dob = profile.DateOfBirth
	}
	query := `
		INSERT INTO service_providers (
			id, email, full_name, phone, date_of_birth, user_type,
			accepted_terms, accepted_privacy, verification_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone,
			date_of_birth = EXCLUDED.date_of_birth,
			user_type = EXCLUDED.user_type,
			accepted_terms = EXCLUDED.accepted_terms,
			accepted_privacy = EXCLUDED.accepted_privacy,
			updated_at = NOW()
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(profile.UserID),
		email.Normalize(profile.Email),
		profile.FullName,
		profile.Phone,
		dob,
		profile.UserType,
		profile.AcceptedTerms,
		profile.AcceptedPrivacy,
		models.StatusPending,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("profile email: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("upsert service provider: %w", err)
	}
	return nil
}

func (s *Store) MarkVerified(ctx context.Context, userID id.UserID, at time.Time) error {
	query := `
		UPDATE service_providers
		SET email_verified = TRUE,
			email_verified_at = $2,
			verification_status = $3,
			updated_at = NOW()
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(userID), at, models.StatusVerified)
	if err != nil {
		return fmt.Errorf("mark service provider verified: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark service provider verified: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, userID id.UserID) (*models.Record, error) {
	query := `
		SELECT id, email, full_name, phone, date_of_birth, user_type,
			accepted_terms, accepted_privacy, email_verified, email_verified_at,
			verification_status, created_at, updated_at
		FROM service_providers
		WHERE id = $1
	`
	var (
		rec        models.Record
		rawID      uuid.UUID
		dob        sql.NullTime
		verifiedAt sql.NullTime
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(userID)).Scan(
		&rawID,
		&rec.Email,
		&rec.FullName,
		&rec.Phone,
		&dob,
		&rec.UserType,
		&rec.AcceptedTerms,
		&rec.AcceptedPrivacy,
		&rec.EmailVerified,
		&verifiedAt,
		&rec.VerificationStatus,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find service provider: %w", err)
	}
	rec.UserID = id.UserID(rawID)
	if dob.Valid {
		rec.DateOfBirth = dob.Time
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		rec.EmailVerifiedAt = &t
	}
	return &rec, nil
}
