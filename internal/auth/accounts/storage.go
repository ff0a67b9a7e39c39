package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"chat/infrastructure"
)

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
	ProviderGithub   = "github"
)

// Account is an identity that can sign in. Its id doubles as the user id.
// Password accounts use the normalized email as subject; OAuth accounts use
// the provider's stable user id.
type Account struct {
	ID           string
	Provider     string
	Subject      string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

type Saver interface {
	SaveAccount(ctx context.Context, tx *sql.Tx, account *Account) error
	// SaveAccountIfMissing inserts account unless its identity is taken and
	// returns the account stored for the identity.
	SaveAccountIfMissing(ctx context.Context, tx *sql.Tx, account *Account) (*Account, error)
}

type Provider interface {
	AccountByIdentity(ctx context.Context, provider, subject string) (*Account, error)
}

type PostgresStorage struct {
	db *sql.DB
}

func NewAccountPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// uniqueViolation is the Postgres error code for a unique index conflict.
const uniqueViolation = "23505"

func (s *PostgresStorage) SaveAccount(ctx context.Context, tx *sql.Tx, account *Account) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, provider, subject, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		account.ID, account.Provider, account.Subject, account.Email, account.PasswordHash, account.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return infrastructure.ErrUserAlreadyExists
	}
	return err
}

func (s *PostgresStorage) SaveAccountIfMissing(ctx context.Context, tx *sql.Tx, account *Account) (*Account, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, provider, subject, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, subject) DO NOTHING`,
		account.ID, account.Provider, account.Subject, account.Email, account.PasswordHash, account.CreatedAt)
	if err != nil {
		return nil, err
	}
	return scanAccount(tx.QueryRowContext(ctx, `
		SELECT id, provider, subject, email, password_hash, created_at
		FROM accounts WHERE provider = $1 AND subject = $2`, account.Provider, account.Subject))
}

func (s *PostgresStorage) AccountByIdentity(ctx context.Context, provider, subject string) (*Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, provider, subject, email, password_hash, created_at
		FROM accounts WHERE provider = $1 AND subject = $2`, provider, subject))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Provider, &a.Subject, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, infrastructure.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
