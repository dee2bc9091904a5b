package main

import (
	"context"
	"database/sql"
	"time"

	pgprofile "vektorkite/internal/profile/store/postgres"
	"vektorkite/internal/registration/ports"
	id "vektorkite/pkg/domain"
	txcontext "vektorkite/pkg/platform/tx"

	dErrors "vektorkite/pkg/domain-errors"
)

const defaultProfileTxTimeout = 5 * time.Second

// txProfileStore runs every profile write in its own bounded transaction so a
// slow database cannot hold the signup request past the auth call.
type txProfileStore struct {
	db      *sql.DB
	store   *pgprofile.Store
	timeout time.Duration
}

func newTxProfileStore(db *sql.DB) *txProfileStore {
	return &txProfileStore{db: db, store: pgprofile.New(db)}
}

func (t *txProfileStore) CreatePending(ctx context.Context, profile ports.Profile) error {
	return t.runInTx(ctx, func(ctx context.Context) error {
		return t.store.CreatePending(ctx, profile)
	})
}

func (t *txProfileStore) MarkVerified(ctx context.Context, userID id.UserID, at time.Time) error {
	return t.runInTx(ctx, func(ctx context.Context) error {
		return t.store.MarkVerified(ctx, userID, at)
	})
}

func (t *txProfileStore) runInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultProfileTxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}
