package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quintagroup/odoorpc/pkg/errors"
)

func TestNewClientConfigDefaults(t *testing.T) {
	cfg := NewClientConfig("odoo.example.com", 8069)

	assert.Equal(t, "odoo.example.com", cfg.Connection.Host)
	assert.Equal(t, 8069, cfg.Connection.Port)
	assert.Equal(t, ProtocolJSONRPC, cfg.Connection.Protocol)
	assert.Equal(t, 120*time.Second, cfg.Timeouts.Request)
	assert.True(t, cfg.Transport.EnableHTTP2)
	assert.True(t, cfg.Behavior.AutoCommit)
	require.NoError(t, cfg.Validate())
}

func TestClientConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ClientConfig)
		valid  bool
	}{
		{"defaults", func(c *ClientConfig) {}, true},
		{"tls protocol", func(c *ClientConfig) { c.Connection.Protocol = ProtocolJSONRPCSSL }, true},
		{"missing host", func(c *ClientConfig) { c.Connection.Host = "" }, false},
		{"zero port", func(c *ClientConfig) { c.Connection.Port = 0 }, false},
		{"port out of range", func(c *ClientConfig) { c.Connection.Port = 70000 }, false},
		{"unknown protocol", func(c *ClientConfig) { c.Connection.Protocol = "xmlrpc" }, false},
		{"negative timeout", func(c *ClientConfig) { c.Timeouts.Request = -time.Second }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewClientConfig("localhost", 8069)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConnectionBaseURL(t *testing.T) {
	cfg := NewClientConfig("host", 8069)
	assert.Equal(t, "http://host:8069", cfg.Connection.BaseURL())
	assert.False(t, cfg.Connection.IsTLS())

	cfg.Connection.Protocol = ProtocolJSONRPCSSL
	assert.Equal(t, "https://host:8069", cfg.Connection.BaseURL())
	assert.True(t, cfg.Connection.IsTLS())
}

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")

	cfg := NewClientConfig("saved.example.com", 8070)
	cfg.Connection.Database = "prod"
	require.NoError(t, Save(path, cfg))

	var loaded ClientConfig
	require.NoError(t, Load(path, &loaded))
	assert.Equal(t, cfg.Connection, loaded.Connection)
	assert.Equal(t, cfg.Timeouts, loaded.Timeouts)
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("TEST_ODOO_PASSWORD", "s3cret")

	path := filepath.Join(t.TempDir(), "client.yaml")
	content := "connection:\n  host: localhost\n  password: ${TEST_ODOO_PASSWORD}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	var loaded ClientConfig
	require.NoError(t, Load(path, &loaded))
	assert.Equal(t, "s3cret", loaded.Connection.Password)
}

func TestLoadMissingFile(t *testing.T) {
	var loaded ClientConfig
	err := Load(filepath.Join(t.TempDir(), "absent.yaml"), &loaded)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connection: [not a mapping"), 0o600))

	var loaded ClientConfig
	err := Load(path, &loaded)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestLoadKeepsUnbracedDollar(t *testing.T) {
	t.Setenv("TEST_ODOO_HOST", "resolved.example.com")

	path := filepath.Join(t.TempDir(), "client.yaml")
	content := "connection:\n  host: ${TEST_ODOO_HOST}\n  password: pa$s${UNSET_ODOO_VAR}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	var loaded ClientConfig
	require.NoError(t, Load(path, &loaded))
	assert.Equal(t, "resolved.example.com", loaded.Connection.Host)
	// Only the ${VAR} form is a reference; a bare dollar passes through and
	// an unset variable resolves to nothing.
	assert.Equal(t, "pa$s", loaded.Connection.Password)
}
