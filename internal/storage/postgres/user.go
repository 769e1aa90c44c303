package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"readlater/internal/domain"
)

type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

type userRow struct {
	ID             int64     `db:"id"`
	UniqueID       string    `db:"unique_id"`
	Email          string    `db:"email"`
	PasswordHash   string    `db:"password_hash"`
	SessionToken   string    `db:"session_token"`
	SessionExpires time.Time `db:"session_expires"`
	CreatedAt      time.Time `db:"created_at"`
}

const userColumns = `
	id, unique_id, email, password_hash, session_token, session_expires, created_at`

func (r *userRow) toDomain() domain.User {
	return domain.User{
		ID:             r.ID,
		UniqueID:       r.UniqueID,
		Email:          r.Email,
		PasswordHash:   r.PasswordHash,
		SessionToken:   r.SessionToken,
		SessionExpires: r.SessionExpires,
		CreatedAt:      r.CreatedAt,
	}
}

func (s *UserStore) Create(ctx context.Context, user *domain.User) (int64, error) {
	query := `
		INSERT INTO users (
			unique_id, email, password_hash, session_token, session_expires, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	var id int64
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		user.UniqueID,
		user.Email,
		user.PasswordHash,
		user.SessionToken,
		user.SessionExpires,
		user.CreatedAt,
	).Scan(&id)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return 0, domain.ErrAlreadyExists
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE email = $1`

	var row userRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user := row.toDomain()
	return &user, nil
}

// FindBySession resolves a session token that has not expired yet.
func (s *UserStore) FindBySession(ctx context.Context, token string) (*domain.User, error) {
	query := `SELECT` + userColumns + `
		FROM users
		WHERE session_token = $1 AND session_expires > NOW()`

	var row userRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user := row.toDomain()
	return &user, nil
}

func (s *UserStore) SetSession(ctx context.Context, userID int64, token string, expires time.Time) error {
	result, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE users SET session_token = $1, session_expires = $2 WHERE id = $3`,
		token, expires, userID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
