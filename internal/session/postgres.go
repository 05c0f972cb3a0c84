package session

import (
	"context"
	"fmt"
	"time"

	"github.com/Cheertaboi/jewelry-storefront/internal/repository"
)

// PostgresStore keeps sessions in a JSONB table so that every replica sees
// the same carts. Updates lock the row for the length of a transaction.
type PostgresStore struct {
	repo  *repository.SessionRepo
	ttl   time.Duration
	clock func() time.Time
}

func NewPostgresStore(repo *repository.SessionRepo, ttl time.Duration) *PostgresStore {
	return &PostgresStore{repo: repo, ttl: ttl, clock: time.Now}
}

func (s *PostgresStore) expired(row *repository.SessionRow) bool {
	return s.ttl > 0 && !s.clock().Before(row.UpdatedAt.Add(s.ttl))
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*State, error) {
	row, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if row == nil || s.expired(row) {
		return nil, ErrNotFound
	}
	return decode(id, row.Data)
}

func (s *PostgresStore) Update(ctx context.Context, id string, fn func(*State) error) (*State, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin session tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	row, err := s.repo.GetAndLock(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("lock session %s: %w", id, err)
	}

	var data []byte
	if !s.expired(row) {
		data = row.Data
	}
	st, err := decode(id, data)
	if err != nil {
		return nil, err
	}

	fnErr := fn(st)

	st.UpdatedAt = s.clock().UTC()
	b, err := encode(st)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, tx, id, b, st.UpdatedAt); err != nil {
		return nil, fmt.Errorf("save session %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit session %s: %w", id, err)
	}
	committed = true
	return st, fnErr
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	return s.repo.PurgeBefore(ctx, s.clock().Add(-s.ttl))
}

var _ Store = (*PostgresStore)(nil)
