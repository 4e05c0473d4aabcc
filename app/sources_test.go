package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jekabolt/delivery-analytics/config"
	"github.com/jekabolt/delivery-analytics/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureDoc = `
orders:
  - customer: a
    date: "2025-01-05"
    company: 1
    channel: glovo
    total: "20"
  - customer: a
    date: "2025-01-20"
    company: 1
    channel: ubereats
    total: "10"
users:
  - email: staff@agency.example
    password_hash: "$2a$04$abcdefghijklmnopqrstuu"
    role: internal
`

func TestOpenSources_Fixture(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureDoc), 0o600))

	c := &config.Config{}
	c.Fixture.Path = path
	src, err := OpenSources(ctx, c, time.UTC)
	require.NoError(t, err)
	defer src.Close()

	assert.Nil(t, src.Repository)
	orders, err := src.Orders.FetchCustomerOrders(ctx, entity.OrderFilters{StartDate: "2025-01-01", EndDate: "2025-01-31"})
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	u, err := src.Users.GetUserByEmail(ctx, "staff@agency.example")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleInternal, u.Role)
}

func TestOpenSources_Unconfigured(t *testing.T) {
	_, err := OpenSources(context.Background(), &config.Config{}, time.UTC)
	assert.Error(t, err)
}
