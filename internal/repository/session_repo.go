package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SessionRow is one visitor's serialized session
type SessionRow struct {
	ID        string
	Data      []byte
	UpdatedAt time.Time
}

type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// EnsureSchema creates the session table when it does not exist
func (r *SessionRepo) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS storefront_sessions (
			id         TEXT PRIMARY KEY,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS storefront_sessions_updated_at_idx
			ON storefront_sessions (updated_at);
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// Get reads a session without locking it. A missing row returns nil, nil.
func (r *SessionRepo) Get(ctx context.Context, id string) (*SessionRow, error) {
	row := SessionRow{ID: id}

	query := `
		SELECT data, updated_at
		FROM storefront_sessions
		WHERE id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(&row.Data, &row.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetAndLock reads a session row and locks it for the rest of tx. A missing
// row is created with empty data so that the lock still serializes writers.
func (r *SessionRepo) GetAndLock(ctx context.Context, tx *sql.Tx, id string) (*SessionRow, error) {
	row := SessionRow{ID: id}

	query := `
		SELECT data, updated_at
		FROM storefront_sessions
		WHERE id = $1
		FOR UPDATE
	`

	err := tx.QueryRowContext(ctx, query, id).Scan(&row.Data, &row.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			insert := `
				INSERT INTO storefront_sessions (id, data, updated_at)
				VALUES ($1, '{}', NOW())
				ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
				RETURNING data, updated_at
			`

			if err := tx.QueryRowContext(ctx, insert, id).Scan(&row.Data, &row.UpdatedAt); err != nil {
				return nil, err
			}
			return &row, nil
		}
		return nil, err
	}

	return &row, nil
}

// Save writes the session data inside tx
func (r *SessionRepo) Save(ctx context.Context, tx *sql.Tx, id string, data []byte, at time.Time) error {
	query := `
		UPDATE storefront_sessions
		SET data = $2,
		    updated_at = $3
		WHERE id = $1
	`

	_, err := tx.ExecContext(ctx, query, id, data, at)
	return err
}

func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM storefront_sessions WHERE id = $1`, id)
	return err
}

// PurgeBefore deletes sessions last written before cutoff
func (r *SessionRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM storefront_sessions WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// BeginTx starts a transaction on the repo's database
func (r *SessionRepo) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}
