// Package session keeps per-visitor state between requests: the cart and,
// once started, the checkout wizard.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Cheertaboi/jewelry-storefront/internal/cart"
	"github.com/Cheertaboi/jewelry-storefront/internal/checkout"
)

var ErrNotFound = errors.New("session not found")

// State is everything the storefront remembers about one visitor
type State struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId,omitempty"`
	GuestID   string            `json:"guestId,omitempty"`
	Cart      cart.Cart         `json:"cart"`
	Checkout  *checkout.Session `json:"checkout,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func newState(id string) *State {
	return &State{ID: id, Cart: *cart.New()}
}

// Store persists visitor state. Update serializes read-modify-write cycles
// on the same id; the state fn leaves behind is saved even when fn returns
// an error, and that error is returned to the caller.
type Store interface {
	Load(ctx context.Context, id string) (*State, error)
	Update(ctx context.Context, id string, fn func(*State) error) (*State, error)
	Delete(ctx context.Context, id string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

func encode(s *State) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return b, nil
}

func decode(id string, data []byte) (*State, error) {
	s := newState(id)
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	s.ID = id
	if s.Cart.Items == nil {
		s.Cart.Items = cart.New().Items
	}
	return s, nil
}
