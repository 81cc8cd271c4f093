// Package sqlite is the durable history and profile store backed by an
// embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"secureflow/internal/domain"
	"secureflow/internal/repository"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var (
	_ repository.HistoryRepository = (*Store)(nil)
	_ repository.UserRepository    = (*Store)(nil)
)

// Store implements both repositories over one connection. SQLite allows a
// single writer, so the pool is capped at one connection.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Database ready", slog.String("path", path))
	return s, nil
}

func (s *Store) migrate() error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			s.logger.Debug("No new database migrations to apply")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	s.logger.Info("Database migrations applied")
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const transactionColumns = `id, recipient_upi, recipient_name, amount, remarks, timestamp, status, risk_result, signature`

func (s *Store) Snapshot(ctx context.Context) ([]domain.HistoricalTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	history := make([]domain.HistoricalTransaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return history, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.HistoricalTransaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", repository.ErrNotFound, id)
	}
	return tx, err
}

func (s *Store) Append(ctx context.Context, tx *domain.HistoricalTransaction) error {
	inserted, err := insertTransaction(ctx, s.db, tx)
	if err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("%w: transaction %s", repository.ErrDuplicate, tx.ID)
	}
	return nil
}

func (s *Store) Reset(ctx context.Context, seed []domain.HistoricalTransaction) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		for i := range seed {
			if _, err := insertTransaction(ctx, tx, &seed[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Get(ctx context.Context) (*domain.User, error) {
	return getUser(ctx, s.db)
}

func (s *Store) Debit(ctx context.Context, amount float64) (*domain.User, error) {
	var user *domain.User
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getUser(ctx, tx)
		if err != nil {
			return err
		}
		if current.Balance < amount {
			return fmt.Errorf("%w: balance %.2f, requested %.2f",
				repository.ErrInsufficientFunds, current.Balance, amount)
		}

		current.Balance -= amount
		if _, err := tx.ExecContext(ctx, `UPDATE users SET balance = ? WHERE id = ?`, current.Balance, current.ID); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		user = current
		return nil
	})
	return user, err
}

func (s *Store) Credit(ctx context.Context, amount float64) (*domain.User, error) {
	var user *domain.User
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getUser(ctx, tx)
		if err != nil {
			return err
		}

		current.Balance += amount
		if _, err := tx.ExecContext(ctx, `UPDATE users SET balance = ? WHERE id = ?`, current.Balance, current.ID); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		user = current
		return nil
	})
	return user, err
}

func (s *Store) Save(ctx context.Context, user *domain.User) error {
	contacts, err := json.Marshal(user.TrustedContacts)
	if err != nil {
		return fmt.Errorf("encode trusted contacts: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
			return fmt.Errorf("clear profile: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, name, upi_id, balance, trusted_contacts) VALUES (?, ?, ?, ?, ?)`,
			user.ID, user.Name, user.UPIID, user.Balance, string(contacts))
		if err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func insertTransaction(ctx context.Context, db execer, tx *domain.HistoricalTransaction) (bool, error) {
	var risk sql.NullString
	if tx.RiskResult != nil {
		encoded, err := json.Marshal(tx.RiskResult)
		if err != nil {
			return false, fmt.Errorf("encode risk result: %w", err)
		}
		risk = sql.NullString{String: string(encoded), Valid: true}
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		tx.ID, tx.RecipientUPI, tx.RecipientName, tx.Amount, tx.Remarks,
		tx.Timestamp, string(tx.Status), risk, tx.Signature)
	if err != nil {
		return false, fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}
	return n == 1, nil
}

func scanTransaction(row scanner) (*domain.HistoricalTransaction, error) {
	var (
		tx     domain.HistoricalTransaction
		status string
		risk   sql.NullString
	)

	err := row.Scan(&tx.ID, &tx.RecipientUPI, &tx.RecipientName, &tx.Amount, &tx.Remarks,
		&tx.Timestamp, &status, &risk, &tx.Signature)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	tx.Status = domain.TransactionStatus(status)
	if risk.Valid {
		var result domain.ScoreResult
		if err := json.Unmarshal([]byte(risk.String), &result); err != nil {
			return nil, fmt.Errorf("decode risk result for %s: %w", tx.ID, err)
		}
		tx.RiskResult = &result
	}
	return &tx, nil
}

func getUser(ctx context.Context, db queryer) (*domain.User, error) {
	var (
		user     domain.User
		contacts string
	)

	err := db.QueryRowContext(ctx,
		`SELECT id, name, upi_id, balance, trusted_contacts FROM users LIMIT 1`).
		Scan(&user.ID, &user.Name, &user.UPIID, &user.Balance, &contacts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user profile", repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	if err := json.Unmarshal([]byte(contacts), &user.TrustedContacts); err != nil {
		return nil, fmt.Errorf("decode trusted contacts: %w", err)
	}
	return &user, nil
}
