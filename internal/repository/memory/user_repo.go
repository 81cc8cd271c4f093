package memory

import (
	"context"
	"fmt"
	"sync"

	"secureflow/internal/domain"
	"secureflow/internal/repository"
)

type UserRepository struct {
	mu   sync.RWMutex
	user *domain.User
}

func NewUserRepository(user *domain.User) *UserRepository {
	r := &UserRepository{}
	if user != nil {
		r.user = user.Clone()
	}
	return r
}

func (r *UserRepository) Get(ctx context.Context) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.user == nil {
		return nil, fmt.Errorf("%w: user profile", repository.ErrNotFound)
	}
	return r.user.Clone(), nil
}

func (r *UserRepository) Debit(ctx context.Context, amount float64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.user == nil {
		return nil, fmt.Errorf("%w: user profile", repository.ErrNotFound)
	}
	if r.user.Balance < amount {
		return nil, fmt.Errorf("%w: balance %.2f, requested %.2f",
			repository.ErrInsufficientFunds, r.user.Balance, amount)
	}

	r.user.Balance -= amount
	return r.user.Clone(), nil
}

func (r *UserRepository) Credit(ctx context.Context, amount float64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.user == nil {
		return nil, fmt.Errorf("%w: user profile", repository.ErrNotFound)
	}

	r.user.Balance += amount
	return r.user.Clone(), nil
}

func (r *UserRepository) Save(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.user = user.Clone()
	return nil
}
