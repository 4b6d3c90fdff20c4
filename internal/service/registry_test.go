package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

func TestRegistryInitializeOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.Registry.Initialize(ctx, testAdmin, "0xtokens"))

	admin, err := f.Registry.Admin(ctx)
	require.NoError(t, err)
	assert.Equal(t, testAdmin, admin)

	done, err := f.Registry.Initialized(ctx)
	require.NoError(t, err)
	assert.True(t, done)

	err = f.Registry.Initialize(ctx, "0xother", "")
	assert.ErrorIs(t, err, domain.ErrAlreadyInitialized)

	// The first admin survives the rejected second init.
	admin, err = f.Registry.Admin(ctx)
	require.NoError(t, err)
	assert.Equal(t, testAdmin, admin)
}

func TestRegistrySetAuthorizationRequiresInit(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	err := f.Registry.SetAuthorization(ctx, proofFor(testAdmin), testAllocator, domain.RoleAllocator, true)
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
}

func TestRegistrySetAuthorizationRequiresAdminProof(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.Registry.Initialize(ctx, testAdmin, ""))

	err := f.Registry.SetAuthorization(ctx, proofFor("0xintruder"), testAllocator, domain.RoleAllocator, true)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	ok, err := f.Registry.IsAuthorizedAllocator(ctx, testAllocator)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistryGrantAndRevoke(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.Registry.Initialize(ctx, testAdmin, ""))

	require.NoError(t, f.Registry.SetAuthorization(ctx, proofFor(testAdmin), testAllocator, domain.RoleAllocator, true))
	ok, err := f.Registry.IsAuthorizedAllocator(ctx, testAllocator)
	require.NoError(t, err)
	assert.True(t, ok)

	// The grant is role-scoped.
	ok, err = f.Registry.IsAuthorizedValuator(ctx, testAllocator)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.Registry.SetAuthorization(ctx, proofFor(testAdmin), testAllocator, domain.RoleAllocator, false))
	ok, err = f.Registry.IsAuthorizedAllocator(ctx, testAllocator)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistryUnknownPrincipalDefaultsFalse(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.Registry.Initialize(ctx, testAdmin, ""))

	ok, err := f.Registry.IsAuthorizedValuator(ctx, "0xstranger")
	require.NoError(t, err)
	assert.False(t, ok)
}
