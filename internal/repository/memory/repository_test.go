package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secureflow/internal/domain"
	"secureflow/internal/repository"
)

func testUser() *domain.User {
	return &domain.User{
		ID:              "user-1",
		Name:            "Arjun",
		UPIID:           "arjun@upi",
		Balance:         1000,
		TrustedContacts: []string{"mom@upi"},
	}
}

func TestHistoryRepository_AppendAndSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepository(domain.HistoricalTransaction{ID: "seed", RecipientUPI: "rahul@upi", Amount: 500})

	err := repo.Append(ctx, &domain.HistoricalTransaction{ID: "tx1", RecipientUPI: "mom@upi", Amount: 200})
	require.NoError(t, err)

	snapshot, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)
	assert.Equal(t, "seed", snapshot[0].ID)
	assert.Equal(t, "tx1", snapshot[1].ID)
}

func TestHistoryRepository_AppendDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepository()
	tx := &domain.HistoricalTransaction{ID: "tx1", RecipientUPI: "mom@upi", Amount: 200}

	require.NoError(t, repo.Append(ctx, tx))
	err := repo.Append(ctx, tx)

	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestHistoryRepository_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepository()
	risk := domain.ScoreResult{Score: 40, Reasons: []domain.Reason{{RuleID: domain.RuleNewRecipient, ScoreAdded: 20}}}
	require.NoError(t, repo.Append(ctx, (&domain.HistoricalTransaction{ID: "tx1", Amount: 10}).WithRiskResult(risk)))

	first, _ := repo.Snapshot(ctx)
	first[0].Amount = 999
	first[0].RiskResult.Reasons[0].ScoreAdded = 99

	second, _ := repo.Snapshot(ctx)
	assert.Equal(t, 10.0, second[0].Amount)
	assert.Equal(t, 20, second[0].RiskResult.Reasons[0].ScoreAdded)
}

func TestHistoryRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepository(domain.HistoricalTransaction{ID: "seed", Amount: 500})

	got, err := repo.GetByID(ctx, "seed")
	require.NoError(t, err)
	assert.Equal(t, 500.0, got.Amount)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestHistoryRepository_Reset(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepository()
	require.NoError(t, repo.Append(ctx, &domain.HistoricalTransaction{ID: "tx1"}))

	require.NoError(t, repo.Reset(ctx, []domain.HistoricalTransaction{{ID: "seed"}}))

	snapshot, _ := repo.Snapshot(ctx)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "seed", snapshot[0].ID)
	_, err := repo.GetByID(ctx, "tx1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_Debit(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testUser())

	user, err := repo.Debit(ctx, 250)

	require.NoError(t, err)
	assert.Equal(t, 750.0, user.Balance)
	got, _ := repo.Get(ctx)
	assert.Equal(t, 750.0, got.Balance)
}

func TestUserRepository_DebitInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testUser())

	_, err := repo.Debit(ctx, 1000.01)

	assert.True(t, errors.Is(err, repository.ErrInsufficientFunds))
	got, _ := repo.Get(ctx)
	assert.Equal(t, 1000.0, got.Balance)
}

func TestUserRepository_CreditUndoesDebit(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testUser())

	_, err := repo.Debit(ctx, 300)
	require.NoError(t, err)
	user, err := repo.Credit(ctx, 300)

	require.NoError(t, err)
	assert.Equal(t, 1000.0, user.Balance)

	_, err = NewUserRepository(nil).Credit(ctx, 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testUser())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Debit(ctx, 30)
		}()
	}
	wg.Wait()

	got, _ := repo.Get(ctx)
	assert.InDelta(t, 10.0, got.Balance, 1e-9)
}

func TestUserRepository_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testUser())

	got, _ := repo.Get(ctx)
	got.TrustedContacts[0] = "stranger@upi"

	again, _ := repo.Get(ctx)
	assert.Equal(t, "mom@upi", again.TrustedContacts[0])
}

func TestUserRepository_EmptyProfile(t *testing.T) {
	repo := NewUserRepository(nil)

	_, err := repo.Get(context.Background())

	assert.ErrorIs(t, err, repository.ErrNotFound)
}
