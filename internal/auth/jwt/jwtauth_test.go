package jwt

import (
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/jekabolt/delivery-analytics/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	jwtAuth := jwtauth.New("HS256", []byte("secret"), nil)
	p := entity.Principal{
		Email:      "manager@example.com",
		Role:       entity.RoleExternal,
		CompanyIds: []int{3, 4},
	}
	tok, err := NewToken(jwtAuth, time.Hour, p)
	require.NoError(t, err)

	got, err := VerifyToken(jwtAuth, tok)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestToken_Internal(t *testing.T) {
	jwtAuth := jwtauth.New("HS256", []byte("secret"), nil)
	tok, err := NewToken(jwtAuth, time.Hour, entity.Principal{Email: "staff@example.com", Role: entity.RoleInternal})
	require.NoError(t, err)

	got, err := VerifyToken(jwtAuth, tok)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleInternal, got.Role)
	assert.Empty(t, got.CompanyIds)
}

func TestToken_Rejected(t *testing.T) {
	jwtAuth := jwtauth.New("HS256", []byte("secret"), nil)
	p := entity.Principal{Email: "manager@example.com", Role: entity.RoleExternal}

	expired, err := NewToken(jwtAuth, -time.Hour, p)
	require.NoError(t, err)
	_, err = VerifyToken(jwtAuth, expired)
	assert.Error(t, err)

	other := jwtauth.New("HS256", []byte("other"), nil)
	forged, err := NewToken(other, time.Hour, p)
	require.NoError(t, err)
	_, err = VerifyToken(jwtAuth, forged)
	assert.Error(t, err)

	noRole, err := NewToken(jwtAuth, time.Hour, entity.Principal{Email: "x@example.com"})
	require.NoError(t, err)
	_, err = VerifyToken(jwtAuth, noRole)
	assert.Error(t, err)
}
