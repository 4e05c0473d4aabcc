package entity

import (
	"slices"
	"time"
)

type UserRole string

const (
	// RoleInternal is agency staff with access to every company.
	RoleInternal UserRole = "internal"
	// RoleExternal is a merchant user restricted to its own companies.
	RoleExternal UserRole = "external"
)

// PortalUser represents the portal_user table
type PortalUser struct {
	ID           int       `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         UserRole  `db:"role"`
	CompanyIds   string    `db:"company_ids"`
	CreatedAt    time.Time `db:"created_at"`
}

// Principal is the authenticated caller of an analytics request.
type Principal struct {
	Email      string
	Role       UserRole
	CompanyIds []int
}

// CanAccessCompany reports whether the principal may read data of the company.
func (p Principal) CanAccessCompany(id int) bool {
	if p.Role == RoleInternal {
		return true
	}
	return slices.Contains(p.CompanyIds, id)
}
