package storage

import (
	"context"
	"database/sql"
	"errors"

	"chat/infrastructure"
	"chat/internal/models"
)

type Saver interface {
	SaveUser(ctx context.Context, tx *sql.Tx, user *models.User) error
	// SaveUserIfMissing inserts user unless a record with the same id exists.
	SaveUserIfMissing(ctx context.Context, tx *sql.Tx, user *models.User) (bool, error)
}

type Provider interface {
	UserByID(ctx context.Context, id string) (*models.User, error)
	Users(ctx context.Context) ([]*models.User, error)
	OnlineUserIDs(ctx context.Context) ([]string, error)
}

type Updater interface {
	LockUser(ctx context.Context, tx *sql.Tx, id string) (*models.User, error)
	UpdateUser(ctx context.Context, tx *sql.Tx, user *models.User) error
}

type PostgresStorage struct {
	db *sql.DB
}

func NewUserPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

const userColumns = `id, email, username, display_name, avatar_url, status, last_seen, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.AvatarURL, &u.Status, &u.LastSeen, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, infrastructure.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStorage) SaveUser(ctx context.Context, tx *sql.Tx, user *models.User) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Email, user.Username, user.DisplayName, user.AvatarURL, user.Status, user.LastSeen, user.CreatedAt)
	return err
}

func (s *PostgresStorage) SaveUserIfMissing(ctx context.Context, tx *sql.Tx, user *models.User) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		user.ID, user.Email, user.Username, user.DisplayName, user.AvatarURL, user.Status, user.LastSeen, user.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *PostgresStorage) UserByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *PostgresStorage) Users(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY display_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStorage) OnlineUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users WHERE status = $1 ORDER BY id`, models.StatusOnline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStorage) LockUser(ctx context.Context, tx *sql.Tx, id string) (*models.User, error) {
	return scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

func (s *PostgresStorage) UpdateUser(ctx context.Context, tx *sql.Tx, user *models.User) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users SET
		email = $2, username = $3, display_name = $4, avatar_url = $5, status = $6, last_seen = $7
		WHERE id = $1`,
		user.ID, user.Email, user.Username, user.DisplayName, user.AvatarURL, user.Status, user.LastSeen)
	return err
}
