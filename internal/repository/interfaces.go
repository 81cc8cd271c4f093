package repository

import (
	"context"
	"errors"

	"secureflow/internal/domain"
)

// HistoryRepository stores the sender's transaction history in insertion order.
type HistoryRepository interface {
	// Snapshot returns a copy of the history, oldest first.
	Snapshot(ctx context.Context) ([]domain.HistoricalTransaction, error)
	GetByID(ctx context.Context, id string) (*domain.HistoricalTransaction, error)
	Append(ctx context.Context, tx *domain.HistoricalTransaction) error
	// Reset replaces the whole history with seed.
	Reset(ctx context.Context, seed []domain.HistoricalTransaction) error
}

// UserRepository holds the single sender profile.
type UserRepository interface {
	Get(ctx context.Context) (*domain.User, error)
	// Debit subtracts amount from the balance and returns the updated profile.
	Debit(ctx context.Context, amount float64) (*domain.User, error)
	// Credit adds amount back, undoing a debit whose transfer was not recorded.
	Credit(ctx context.Context, amount float64) (*domain.User, error)
	// Save replaces the stored profile.
	Save(ctx context.Context, user *domain.User) error
}

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate entry")
	ErrInsufficientFunds = errors.New("insufficient funds")
)
