package memory

import (
	"context"
	"fmt"
	"sync"

	"secureflow/internal/domain"
	"secureflow/internal/repository"
)

type HistoryRepository struct {
	mu           sync.RWMutex
	transactions []domain.HistoricalTransaction
	index        map[string]int
}

func NewHistoryRepository(seed ...domain.HistoricalTransaction) *HistoryRepository {
	r := &HistoryRepository{}
	r.load(seed)
	return r
}

func (r *HistoryRepository) Snapshot(ctx context.Context) ([]domain.HistoricalTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.HistoricalTransaction, len(r.transactions))
	for i := range r.transactions {
		out[i] = cloneTransaction(r.transactions[i])
	}
	return out, nil
}

func (r *HistoryRepository) GetByID(ctx context.Context, id string) (*domain.HistoricalTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, exists := r.index[id]
	if !exists {
		return nil, fmt.Errorf("%w: transaction %s", repository.ErrNotFound, id)
	}
	tx := cloneTransaction(r.transactions[i])
	return &tx, nil
}

func (r *HistoryRepository) Append(ctx context.Context, tx *domain.HistoricalTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[tx.ID]; exists {
		return fmt.Errorf("%w: transaction %s", repository.ErrDuplicate, tx.ID)
	}

	r.index[tx.ID] = len(r.transactions)
	r.transactions = append(r.transactions, cloneTransaction(*tx))
	return nil
}

func (r *HistoryRepository) Reset(ctx context.Context, seed []domain.HistoricalTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.load(seed)
	return nil
}

func (r *HistoryRepository) load(seed []domain.HistoricalTransaction) {
	r.transactions = make([]domain.HistoricalTransaction, 0, len(seed))
	r.index = make(map[string]int, len(seed))
	for _, tx := range seed {
		r.index[tx.ID] = len(r.transactions)
		r.transactions = append(r.transactions, cloneTransaction(tx))
	}
}

func cloneTransaction(tx domain.HistoricalTransaction) domain.HistoricalTransaction {
	if tx.RiskResult != nil {
		risk := tx.RiskResult.Clone()
		tx.RiskResult = &risk
	}
	return tx
}
