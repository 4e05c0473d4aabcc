package fixture

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jekabolt/delivery-analytics/internal/dependency"
	"github.com/jekabolt/delivery-analytics/internal/entity"
	gerr "github.com/jekabolt/delivery-analytics/internal/errors"
)

var ErrUserNotFound = fmt.Errorf("user %w", gerr.ErrNotFound)

type fileUser struct {
	Email        string `yaml:"email"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role"`
	CompanyIds   []int  `yaml:"company_ids"`
}

func (u fileUser) user() (*entity.PortalUser, error) {
	if u.Email == "" || u.PasswordHash == "" {
		return nil, fmt.Errorf("email and password_hash are required")
	}
	role := entity.UserRole(u.Role)
	if role != entity.RoleInternal && role != entity.RoleExternal {
		return nil, fmt.Errorf("unknown role %q", u.Role)
	}
	ids := make([]string, len(u.CompanyIds))
	for i, id := range u.CompanyIds {
		ids[i] = strconv.Itoa(id)
	}
	return &entity.PortalUser{
		Email:        strings.ToLower(u.Email),
		PasswordHash: u.PasswordHash,
		Role:         role,
		CompanyIds:   strings.Join(ids, ","),
	}, nil
}

// userList keeps portal users in memory.
type userList struct {
	mu    sync.RWMutex
	users []entity.PortalUser
}

func (l *userList) GetUserByEmail(_ context.Context, email string) (*entity.PortalUser, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, u := range l.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (l *userList) AddUser(_ context.Context, u *entity.PortalUser) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.users {
		if existing.Email == u.Email {
			return 0, fmt.Errorf("user %s already exists", u.Email)
		}
	}
	added := *u
	added.ID = len(l.users) + 1
	added.CreatedAt = time.Now()
	l.users = append(l.users, added)
	return added.ID, nil
}

// Users returns the portal users declared in the fixture.
func (s *Source) Users() dependency.Users {
	return s.users
}
