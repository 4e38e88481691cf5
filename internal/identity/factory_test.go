package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/sage_server/config"
	"github.com/qs3c/sage_server/internal/identity"
	"github.com/qs3c/sage_server/internal/repository"
	"github.com/qs3c/sage_server/internal/testutil"
)

func TestFromConfig(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	repo := repository.NewIdentityRepository(db)

	provider, local, err := identity.FromConfig(context.Background(), &config.Config{
		JWT: config.JWTConfig{Secret: "secret", ExpireHours: 1},
	}, repo)
	require.NoError(t, err)
	require.NotNil(t, local)
	assert.Same(t, local, provider)

	_, _, err = identity.FromConfig(context.Background(), &config.Config{
		Identity: config.IdentityConfig{Provider: "ldap"},
	}, repo)
	assert.Error(t, err)
}
