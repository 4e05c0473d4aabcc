package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jekabolt/delivery-analytics/internal/dependency"
	"github.com/jekabolt/delivery-analytics/internal/entity"
	gerr "github.com/jekabolt/delivery-analytics/internal/errors"
)

// ErrUserNotFound is returned when no portal user has the requested email.
var ErrUserNotFound = fmt.Errorf("user %w", gerr.ErrNotFound)

type userStore struct {
	*SQLStore
}

// Users returns an object implementing dependency.Users interface
func (ms *SQLStore) Users() dependency.Users {
	return &userStore{
		SQLStore: ms,
	}
}

func (us *userStore) GetUserByEmail(ctx context.Context, email string) (*entity.PortalUser, error) {
	query := `
	SELECT id, email, password_hash, role, company_ids, created_at
	FROM portal_user
	WHERE email = :email`
	u, err := QueryNamedOne[entity.PortalUser](ctx, us.db, query, map[string]any{
		"email": email,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("can't get user by email: %w", err)
	}
	return &u, nil
}

// AddUser creates a new portal user and returns its id.
func (us *userStore) AddUser(ctx context.Context, u *entity.PortalUser) (int, error) {
	params := map[string]any{
		"email":        u.Email,
		"passwordHash": u.PasswordHash,
		"role":         string(u.Role),
		"companyIds":   u.CompanyIds,
		"createdAt":    us.Now(),
	}
	insert := `
	INSERT INTO portal_user (email, password_hash, role, company_ids, created_at)
	VALUES (:email, :passwordHash, :role, :companyIds, :createdAt)`

	if us.driver == DriverPostgres {
		query, args, err := bindNamed(us.db, insert+" RETURNING id", params)
		if err != nil {
			return 0, err
		}
		var id int
		if err := us.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
			if IsErrUniqueViolation(err) {
				return 0, fmt.Errorf("user %s already exists: %w", u.Email, err)
			}
			return 0, fmt.Errorf("can't add user: %w", err)
		}
		return id, nil
	}

	query, args, err := bindNamed(us.db, insert, params)
	if err != nil {
		return 0, err
	}
	res, err := us.db.ExecContext(ctx, query, args...)
	if err != nil {
		if IsErrUniqueViolation(err) {
			return 0, fmt.Errorf("user %s already exists: %w", u.Email, err)
		}
		return 0, fmt.Errorf("can't add user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("can't get user id: %w", err)
	}
	return int(id), nil
}
