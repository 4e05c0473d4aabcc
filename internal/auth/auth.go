// Package auth authenticates portal users and scopes analytics requests to
// the companies a user may read.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/jekabolt/delivery-analytics/internal/auth/jwt"
	"github.com/jekabolt/delivery-analytics/internal/dependency"
	"github.com/jekabolt/delivery-analytics/internal/entity"
	gerr "github.com/jekabolt/delivery-analytics/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

// Config contains the configuration for the auth service.
type Config struct {
	JWTSecret  string `mapstructure:"jwt_secret"`
	JWTTTL     string `mapstructure:"jwt_ttl"`
	BcryptCost int    `mapstructure:"bcrypt_cost"`
}

// Auth issues tokens for portal users.
type Auth struct {
	users     dependency.Users
	JwtAuth   *jwtauth.JWTAuth
	jwtTTL    time.Duration
	cost      int
	dummyHash []byte
}

// New creates a new auth service.
func New(c *Config, users dependency.Users) (*Auth, error) {
	if c.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is empty")
	}
	ttl, err := time.ParseDuration(c.JWTTTL)
	if err != nil {
		return nil, fmt.Errorf("bad jwt ttl: %w", err)
	}
	cost := c.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("delivery-analytics"), cost)
	if err != nil {
		return nil, fmt.Errorf("can't prepare password check: %w", err)
	}
	return &Auth{
		users:     users,
		JwtAuth:   jwtauth.New("HS256", []byte(c.JWTSecret), nil),
		jwtTTL:    ttl,
		cost:      cost,
		dummyHash: dummyHash,
	}, nil
}

// Login checks the password of the user and returns a signed token.
func (a *Auth) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := a.users.GetUserByEmail(ctx, email)
	if errors.Is(err, gerr.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
		return "", fmt.Errorf("%w: unknown user", gerr.ErrUnauthorized)
	}
	if err != nil {
		return "", fmt.Errorf("can't get user %s: %w", email, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("%w: wrong password", gerr.ErrUnauthorized)
	}
	companyIds, err := ParseCompanyIds(u.CompanyIds)
	if err != nil {
		return "", fmt.Errorf("user %s: %w", u.Email, err)
	}
	return jwt.NewToken(a.JwtAuth, a.jwtTTL, entity.Principal{
		Email:      u.Email,
		Role:       u.Role,
		CompanyIds: companyIds,
	})
}

// AddUser hashes the password and stores a new portal user.
func (a *Auth) AddUser(ctx context.Context, email, password string, role entity.UserRole, companyIds []int) (int, error) {
	if role != entity.RoleInternal && role != entity.RoleExternal {
		return 0, fmt.Errorf("%w: unknown role %q", gerr.ErrInvalidRequest, role)
	}
	if role == entity.RoleExternal && len(companyIds) == 0 {
		return 0, fmt.Errorf("%w: external users need at least one company", gerr.ErrInvalidRequest)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return 0, fmt.Errorf("can't hash password: %w", err)
	}
	return a.users.AddUser(ctx, &entity.PortalUser{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		Role:         role,
		CompanyIds:   FormatCompanyIds(companyIds),
	})
}

// PrincipalFromContext returns the principal of the token verified by the
// jwtauth middleware.
func PrincipalFromContext(ctx context.Context) (entity.Principal, error) {
	token, _, err := jwtauth.FromContext(ctx)
	if err != nil {
		return entity.Principal{}, fmt.Errorf("%w: %w", gerr.ErrUnauthorized, err)
	}
	p, err := jwt.PrincipalFromToken(token)
	if err != nil {
		return entity.Principal{}, fmt.Errorf("%w: %w", gerr.ErrUnauthorized, err)
	}
	return p, nil
}

// Scope restricts the requested companies to what the principal may read.
// External users get their own companies when none are requested and are
// refused any company outside that set. Internal users keep the request as
// is, so an empty request stays account-wide.
func Scope(p entity.Principal, requested []int) ([]int, error) {
	if p.Role == entity.RoleInternal {
		return requested, nil
	}
	if p.Role != entity.RoleExternal || len(p.CompanyIds) == 0 {
		return nil, fmt.Errorf("%w: no companies assigned", gerr.ErrForbidden)
	}
	if len(requested) == 0 {
		return slices.Clone(p.CompanyIds), nil
	}
	for _, id := range requested {
		if !p.CanAccessCompany(id) {
			return nil, fmt.Errorf("%w: company %d", gerr.ErrForbidden, id)
		}
	}
	return requested, nil
}

// ParseCompanyIds reads the comma separated company list stored with a user.
func ParseCompanyIds(s string) ([]int, error) {
	ids := []int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("bad company id %q", part), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func FormatCompanyIds(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
