package services

import (
	"testing"

	"github.com/quillpost/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequirePrincipal(t *testing.T) {
	_, err := RequirePrincipal(nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = RequirePrincipal(&types.Principal{})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	p, err := RequirePrincipal(&types.Principal{UserID: "alice", Name: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", p.UserID)
}

func TestRequireOwnership(t *testing.T) {
	alice := types.Principal{UserID: "alice"}

	assert.NoError(t, RequireOwnership(alice, "alice"))
	assert.ErrorIs(t, RequireOwnership(alice, "bob"), ErrForbidden)
	assert.ErrorIs(t, RequireOwnership(alice, "Alice"), ErrForbidden)
	assert.ErrorIs(t, RequireOwnership(types.Principal{}, ""), ErrForbidden)
}
