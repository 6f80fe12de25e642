package auth

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockKeyRepo struct {
	byHash map[string]*APIKeyInfo
	err    error
}

func (m *mockKeyRepo) FindByHash(_ context.Context, hash string) (*APIKeyInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	info, ok := m.byHash[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return info, nil
}

func TestAuthenticator_Authenticate(t *testing.T) {
	pepper := []byte("pepper")
	hash := Hash(pepper, "secret-key")

	repo := &mockKeyRepo{byHash: map[string]*APIKeyInfo{
		hash:        {ID: "k1", KeyHash: hash, Name: "checkout", Scopes: []string{"checkout"}},
		"corrupted": {ID: "k2", KeyHash: "zz-not-hex"},
	}}
	dbDown := errors.New("db down")

	tests := []struct {
		name    string
		repo    Repository
		key     string
		wantID  string
		wantErr error
	}{
		{name: "valid key", repo: repo, key: "secret-key", wantID: "k1"},
		{name: "empty key", repo: repo, key: "", wantErr: ErrUnauthorized},
		{name: "unknown key", repo: repo, key: "other", wantErr: ErrUnauthorized},
		{name: "repository error", repo: &mockKeyRepo{err: dbDown}, key: "secret-key", wantErr: dbDown},
		{
			name: "stored hash mismatch",
			repo: &mockKeyRepo{byHash: map[string]*APIKeyInfo{
				hash: {ID: "k3", KeyHash: Hash([]byte("other pepper"), "secret-key")},
			}},
			key:     "secret-key",
			wantErr: ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAuthenticator(tt.repo, pepper)

			info, err := a.Authenticate(context.Background(), tt.key)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, info)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, info.ID)
			assert.True(t, info.HasScope("checkout"))
			assert.False(t, info.HasScope("admin"))
		})
	}
}

func TestAuthenticator_RepositoryErrorIsNotUnauthorized(t *testing.T) {
	a := NewAuthenticator(&mockKeyRepo{err: errors.New("connection refused")}, []byte("pepper"))

	_, err := a.Authenticate(context.Background(), "secret-key")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.ErrorContains(t, err, "find api key")
	assert.ErrorContains(t, err, "connection refused")
}

func TestAuthenticator_NotFoundFromRepositoryIsUnauthorized(t *testing.T) {
	a := NewAuthenticator(&mockKeyRepo{err: errors.Wrap(ErrNotFound, "query")}, []byte("pepper"))

	_, err := a.Authenticate(context.Background(), "secret-key")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestHash_DependsOnPepper(t *testing.T) {
	assert.Len(t, Hash([]byte("a"), "key"), 64)
	assert.NotEqual(t, Hash([]byte("a"), "key"), Hash([]byte("b"), "key"))
	assert.Equal(t, Hash([]byte("a"), "key"), Hash([]byte("a"), "key"))
}
