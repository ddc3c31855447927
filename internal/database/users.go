package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

var ErrUserNotFound = errors.New("user not found")

// User is a staff member or requester known to the service. Role holds the
// raw stored value; callers normalize it.
type User struct {
	ID        string    `json:"id" yaml:"id"`
	Email     string    `json:"email" yaml:"email"`
	Name      string    `json:"name" yaml:"name"`
	Role      string    `json:"role" yaml:"role"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

type UserDirectory struct {
	db *Database
}

func NewUserDirectory(db *Database) *UserDirectory {
	return &UserDirectory{db: db}
}

// Upsert inserts the user or updates its email, name and role.
func (u *UserDirectory) Upsert(ctx context.Context, user User) error {
	_, err := u.db.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, role) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name, role = EXCLUDED.role`,
		user.ID, user.Email, user.Name, user.Role)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", user.ID, err)
	}
	return nil
}

func (u *UserDirectory) GetByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := u.db.pool.QueryRow(ctx,
		`SELECT id, email, name, role, created_at FROM users WHERE email = $1`, email).
		Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// Emails resolves user ids to email addresses. Unknown ids are omitted.
func (u *UserDirectory) Emails(ctx context.Context, ids []string) (map[string]string, error) {
	rows, err := u.db.pool.Query(ctx, `SELECT id, email FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to look up emails: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(ids))
	for rows.Next() {
		var id, email string
		if err := rows.Scan(&id, &email); err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		out[id] = email
	}
	return out, rows.Err()
}
