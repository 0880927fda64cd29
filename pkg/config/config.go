// Package config provides the unified configuration system for the Odoo RPC
// client. It defines a single ClientConfig structure used by the transport,
// the environment layer and the command-line interface.
//
// The configuration is organized into logical sections:
//   - Connection: server endpoint and protocol selection
//   - Timeouts: connection and request timeouts
//   - Transport: HTTP connection pool tuning
//   - Security: TLS settings
//   - Observability: metrics and logging
//   - Behavior: client-side write-buffering policy
//
// Example usage:
//
//	cfg := config.NewClientConfig("localhost", 8069)
//	cfg.Behavior.AutoCommit = false
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"time"
)

// Protocol names accepted by ConnectionConfig.Protocol.
const (
	ProtocolJSONRPC    = "jsonrpc"
	ProtocolJSONRPCSSL = "jsonrpc+ssl"
)

// ClientConfig is the single configuration structure for the whole client.
type ClientConfig struct {
	// Connection identifies the remote server
	Connection ConnectionConfig `yaml:"connection" json:"connection"`

	// Timeouts define various timeout durations
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Transport tunes the underlying HTTP client
	Transport TransportConfig `yaml:"transport" json:"transport"`

	// Security configuration for TLS
	Security SecurityConfig `yaml:"security" json:"security"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`

	// Behavior controls client-side semantics
	Behavior BehaviorConfig `yaml:"behavior" json:"behavior"`
}

// ConnectionConfig identifies the remote Odoo server.
type ConnectionConfig struct {
	// Host is the server host name or address
	Host string `yaml:"host" json:"host"`
	// Port is the server port (8069 by default)
	Port int `yaml:"port" json:"port"`
	// Protocol selects plain or TLS JSON-RPC ("jsonrpc" or "jsonrpc+ssl")
	Protocol string `yaml:"protocol" json:"protocol"`
	// Database is the default database to authenticate against
	Database string `yaml:"database" json:"database"`
	// Login is the default user login
	Login string `yaml:"login" json:"login"`
	// Password is the default user password (use env vars in stored files)
	Password string `yaml:"password" json:"password"`
}

// TimeoutConfig contains all timeout-related settings.
// These prevent operations from hanging indefinitely.
type TimeoutConfig struct {
	// Request timeout for a full RPC round trip
	Request time.Duration `yaml:"request" json:"request"`
	// Connection timeout for establishing connections
	Connection time.Duration `yaml:"connection" json:"connection"`
	// Idle timeout before closing inactive connections
	Idle time.Duration `yaml:"idle" json:"idle"`
	// KeepAlive interval for connection health checks
	KeepAlive time.Duration `yaml:"keep_alive" json:"keep_alive"`
	// TLSHandshake timeout for the TLS handshake
	TLSHandshake time.Duration `yaml:"tls_handshake" json:"tls_handshake"`
	// ResponseHeader timeout for the first response byte
	ResponseHeader time.Duration `yaml:"response_header" json:"response_header"`
}

// TransportConfig tunes the HTTP connection pool.
type TransportConfig struct {
	// MaxIdleConns caps idle connections across all hosts
	MaxIdleConns int `yaml:"max_idle_conns" json:"max_idle_conns"`
	// MaxIdleConnsPerHost caps idle connections per host
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host" json:"max_idle_conns_per_host"`
	// MaxConnsPerHost caps total connections per host
	MaxConnsPerHost int `yaml:"max_conns_per_host" json:"max_conns_per_host"`
	// DisableKeepAlives disables connection reuse
	DisableKeepAlives bool `yaml:"disable_keep_alives" json:"disable_keep_alives"`
	// DisableCompression disables transparent gzip
	DisableCompression bool `yaml:"disable_compression" json:"disable_compression"`
	// EnableHTTP2 enables HTTP/2 support on the transport
	EnableHTTP2 bool `yaml:"enable_http2" json:"enable_http2"`
	// UserAgent overrides the default User-Agent header
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// SecurityConfig contains TLS settings.
type SecurityConfig struct {
	// TLSSkipVerify disables certificate verification (insecure)
	TLSSkipVerify bool `yaml:"tls_skip_verify" json:"tls_skip_verify"`
	// CertificatePath for client certificate
	CertificatePath string `yaml:"certificate_path" json:"certificate_path"`
	// KeyPath for client private key
	KeyPath string `yaml:"key_path" json:"key_path"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// EnableMetrics activates prometheus metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableLogging controls logging output
	EnableLogging bool `yaml:"enable_logging" json:"enable_logging"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// Development enables console-friendly log output
	Development bool `yaml:"development" json:"development"`
}

// BehaviorConfig controls client-side semantics.
type BehaviorConfig struct {
	// AutoCommit writes each field assignment immediately instead of
	// buffering it until Environment.Commit
	AutoCommit bool `yaml:"auto_commit" json:"auto_commit"`
}

// NewClientConfig creates a ClientConfig with production-ready defaults
// for the given server host and port.
func NewClientConfig(host string, port int) *ClientConfig {
	return &ClientConfig{
		Connection: ConnectionConfig{
			Host:     host,
			Port:     port,
			Protocol: ProtocolJSONRPC,
		},
		Timeouts: TimeoutConfig{
			Request:        120 * time.Second,
			Connection:     10 * time.Second,
			Idle:           90 * time.Second,
			KeepAlive:      30 * time.Second,
			TLSHandshake:   10 * time.Second,
			ResponseHeader: 30 * time.Second,
		},
		Transport: TransportConfig{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			MaxConnsPerHost:     10,
			DisableKeepAlives:   false,
			DisableCompression:  false,
			EnableHTTP2:         true,
		},
		Security: SecurityConfig{
			TLSSkipVerify: false,
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			EnableLogging: true,
			LogLevel:      "info",
		},
		Behavior: BehaviorConfig{
			AutoCommit: true,
		},
	}
}

// Validate validates the configuration for correctness.
// It checks required fields and ensures values are within acceptable ranges.
func (c *ClientConfig) Validate() error {
	if c.Connection.Host == "" {
		return fmt.Errorf("connection.host is required")
	}
	if c.Connection.Port <= 0 || c.Connection.Port > 65535 {
		return fmt.Errorf("connection.port must be in (0, 65535]")
	}
	switch c.Connection.Protocol {
	case ProtocolJSONRPC, ProtocolJSONRPCSSL:
	default:
		return fmt.Errorf("connection.protocol must be %q or %q", ProtocolJSONRPC, ProtocolJSONRPCSSL)
	}
	if c.Timeouts.Request < 0 {
		return fmt.Errorf("timeouts.request cannot be negative")
	}
	if c.Transport.MaxIdleConns < 0 {
		return fmt.Errorf("transport.max_idle_conns cannot be negative")
	}
	return nil
}

// BaseURL returns the server base URL derived from the connection section.
func (c *ConnectionConfig) BaseURL() string {
	scheme := "http"
	if c.Protocol == ProtocolJSONRPCSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// IsTLS returns true when the TLS protocol variant is selected.
func (c *ConnectionConfig) IsTLS() bool {
	return c.Protocol == ProtocolJSONRPCSSL
}
