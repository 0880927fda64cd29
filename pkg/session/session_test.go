package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quintagroup/odoorpc/pkg/config"
	"github.com/quintagroup/odoorpc/pkg/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "sessions.yaml"))
	require.NoError(t, err)
	return store
}

func sample() Session {
	return Session{
		Host:     "odoo.example.com",
		Port:     8069,
		Protocol: config.ProtocolJSONRPCSSL,
		Database: "prod",
		Login:    "admin",
		Password: "secret",
	}
}

func TestStoreSaveAndGet(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save("prod", sample()))

	got, err := store.Get("prod")
	require.NoError(t, err)
	assert.Equal(t, sample(), got)

	t.Run("overwrite", func(t *testing.T) {
		changed := sample()
		changed.Login = "other"
		require.NoError(t, store.Save("prod", changed))

		got, err := store.Get("prod")
		require.NoError(t, err)
		assert.Equal(t, "other", got.Login)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := store.Get("missing")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeSession))
	})
}

func TestStoreListAndRemove(t *testing.T) {
	store := newTestStore(t)

	names, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.Save("staging", sample()))
	require.NoError(t, store.Save("prod", sample()))

	names, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"prod", "staging"}, names)

	require.NoError(t, store.Remove("staging"))
	names, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"prod"}, names)

	err = store.Remove("staging")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSession))
}

func TestSessionClientConfig(t *testing.T) {
	cfg := sample().ClientConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "odoo.example.com", cfg.Connection.Host)
	assert.Equal(t, 8069, cfg.Connection.Port)
	assert.Equal(t, config.ProtocolJSONRPCSSL, cfg.Connection.Protocol)
	assert.Equal(t, "prod", cfg.Connection.Database)
	assert.Equal(t, "admin", cfg.Connection.Login)
	assert.Equal(t, "secret", cfg.Connection.Password)
	assert.True(t, cfg.Connection.IsTLS())
}
