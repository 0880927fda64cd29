// Package jsonrpc implements the JSON-RPC transport used to reach an Odoo
// server. It frames calls in the server's envelope format, maps envelope
// errors to the client error taxonomy and exposes the generic capability
// surface (Execute / ExecuteKw / Call) consumed by the model proxy layer.
package jsonrpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/quintagroup/odoorpc/pkg/config"
	odooerrors "github.com/quintagroup/odoorpc/pkg/errors"
	"github.com/quintagroup/odoorpc/pkg/logger"
	"github.com/quintagroup/odoorpc/pkg/metrics"
)

// JSON-RPC services exposed by the server.
const (
	ServiceCommon = "common"
	ServiceObject = "object"
	ServiceReport = "report"
)

const jsonRPCPath = "/jsonrpc"

// Client is a JSON-RPC client for one Odoo server. After a successful
// Authenticate call it carries the session identity (database, user id,
// password) required by the object and report services.
type Client struct {
	config     *config.ClientConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport
	baseURL    string

	// Session identity, set by Authenticate
	database string
	uid      int64
	password string

	// Request tracking
	requestID      int64
	totalRequests  int64
	failedRequests int64
}

// request is the wire envelope for a call.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int64       `json:"id"`
}

// serviceParams is the params payload for service-routed calls.
type serviceParams struct {
	Service string        `json:"service"`
	Method  string        `json:"method"`
	Args    []interface{} `json:"args"`
}

// response is the wire envelope for a reply.
type response struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Result  gojson.RawMessage `json:"result"`
	Error   *remoteError      `json:"error"`
}

// remoteError is the error member of a reply envelope.
type remoteError struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

// NewClient creates a client for the server described by cfg.
func NewClient(cfg *config.ClientConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, odooerrors.New(odooerrors.ErrorTypeConfig, "configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, odooerrors.Wrap(err, odooerrors.ErrorTypeConfig, "invalid configuration")
	}

	c := &Client{
		config:  cfg,
		logger:  logger.With(zap.String("component", "jsonrpc_client")),
		baseURL: cfg.Connection.BaseURL(),
	}

	c.transport = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeouts.Connection,
			KeepAlive: cfg.Timeouts.KeepAlive,
		}).DialContext,
		MaxIdleConns:          cfg.Transport.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.Transport.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.Transport.MaxConnsPerHost,
		IdleConnTimeout:       cfg.Timeouts.Idle,
		DisableKeepAlives:     cfg.Transport.DisableKeepAlives,
		DisableCompression:    cfg.Transport.DisableCompression,
		TLSHandshakeTimeout:   cfg.Timeouts.TLSHandshake,
		ResponseHeaderTimeout: cfg.Timeouts.ResponseHeader,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Security.TLSSkipVerify, //nolint:gosec // G402: operator-controlled escape hatch
			MinVersion:         tls.VersionTLS12,
		},
	}

	if cfg.Transport.EnableHTTP2 {
		if err := http2.ConfigureTransport(c.transport); err != nil {
			c.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	c.httpClient = &http.Client{
		Transport: c.transport,
		Timeout:   cfg.Timeouts.Request,
	}

	return c, nil
}

// Authenticate logs in against the given database and binds the session
// identity to the client. It returns the authenticated user id.
func (c *Client) Authenticate(ctx context.Context, db, login, password string) (int64, error) {
	result, err := c.CallService(ctx, ServiceCommon, "authenticate",
		db, login, password, map[string]interface{}{})
	if err != nil {
		return 0, err
	}

	// The server answers false (not an error) on bad credentials.
	uid, ok := toInt64(result)
	if !ok || uid <= 0 {
		return 0, odooerrors.Newf(odooerrors.ErrorTypeAuthentication,
			"login %q rejected by database %q", login, db)
	}

	c.database = db
	c.uid = uid
	c.password = password

	c.logger.Info("authenticated",
		zap.String("database", db),
		zap.String("login", login),
		zap.Int64("uid", uid))

	return uid, nil
}

// Version returns the server version information.
func (c *Client) Version(ctx context.Context) (map[string]interface{}, error) {
	result, err := c.CallService(ctx, ServiceCommon, "version")
	if err != nil {
		return nil, err
	}
	info, ok := result.(map[string]interface{})
	if !ok {
		return nil, odooerrors.New(odooerrors.ErrorTypeData, "version reply is not an object")
	}
	return info, nil
}

// Execute invokes a method on a data model with positional arguments only.
func (c *Client) Execute(ctx context.Context, model, method string, args ...interface{}) (interface{}, error) {
	return c.ExecuteKw(ctx, model, method, args, nil)
}

// ExecuteKw invokes a method on a data model with positional and keyword
// arguments through the object service. Authenticate must have succeeded
// before any ExecuteKw call.
func (c *Client) ExecuteKw(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	if c.uid == 0 {
		return nil, odooerrors.New(odooerrors.ErrorTypeAuthentication, "not authenticated")
	}
	if args == nil {
		args = []interface{}{}
	}
	if kwargs == nil {
		kwargs = map[string]interface{}{}
	}
	ctx = logger.WithDatabase(ctx, c.database)
	ctx = logger.WithModel(ctx, model)
	return c.CallService(ctx, ServiceObject, "execute_kw",
		c.database, c.uid, c.password, model, method, args, kwargs)
}

// CallService performs a service-routed call ({service, method, args}) on
// the /jsonrpc endpoint.
func (c *Client) CallService(ctx context.Context, service, method string, args ...interface{}) (interface{}, error) {
	if args == nil {
		args = []interface{}{}
	}
	return c.call(ctx, jsonRPCPath, serviceParams{
		Service: service,
		Method:  method,
		Args:    args,
	}, service, method)
}

// Call performs a raw call against an arbitrary server path with a free-form
// params payload. Used by non-model-centric operations such as report
// rendering.
func (c *Client) Call(ctx context.Context, path string, payload map[string]interface{}) (interface{}, error) {
	service, _ := payload["service"].(string)
	method, _ := payload["method"].(string)
	if service == "" {
		service = "raw"
	}
	if method == "" {
		method = path
	}
	return c.call(ctx, path, payload, service, method)
}

// call frames params into the request envelope, posts it and unwraps the
// reply envelope.
func (c *Client) call(ctx context.Context, path string, params interface{}, service, method string) (interface{}, error) {
	id := atomic.AddInt64(&c.requestID, 1)
	atomic.AddInt64(&c.totalRequests, 1)
	ctx = logger.WithRequestID(ctx, strconv.FormatInt(id, 10))

	body, err := gojson.Marshal(request{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  params,
		ID:      id,
	})
	if err != nil {
		return nil, odooerrors.Wrap(err, odooerrors.ErrorTypeInternal, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, odooerrors.Wrap(err, odooerrors.ErrorTypeInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if ua := c.config.Transport.UserAgent; ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	timer := metrics.NewTimer(service + "." + method)
	if c.config.Observability.EnableMetrics {
		metrics.RPCInFlight.Inc()
		metrics.RPCPayloadBytes.WithLabelValues("request").Observe(float64(len(body)))
	}

	resp, err := c.httpClient.Do(req)

	duration := timer.Stop()
	if c.config.Observability.EnableMetrics {
		metrics.RPCInFlight.Dec()
		metrics.ObserveRPC(service, method, duration, err)
	}

	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		errType := odooerrors.ErrorTypeConnection
		if errors.Is(err, context.DeadlineExceeded) {
			errType = odooerrors.ErrorTypeTimeout
		}
		return nil, odooerrors.Wrap(err, errType, fmt.Sprintf("%s.%s call failed", service, method))
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		return nil, odooerrors.Wrap(err, odooerrors.ErrorTypeConnection, "failed to read reply")
	}
	if c.config.Observability.EnableMetrics {
		metrics.RPCPayloadBytes.WithLabelValues("response").Observe(float64(len(raw)))
	}

	if resp.StatusCode != http.StatusOK {
		atomic.AddInt64(&c.failedRequests, 1)
		return nil, odooerrors.Newf(odooerrors.ErrorTypeRPC, "%s.%s returned HTTP %d",
			service, method, resp.StatusCode).WithDetail("status", resp.StatusCode)
	}

	var reply response
	if err := gojson.Unmarshal(raw, &reply); err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		return nil, odooerrors.Wrap(err, odooerrors.ErrorTypeData, "malformed reply envelope")
	}

	if reply.Error != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		return nil, remoteToError(service, method, reply.Error)
	}

	if reply.Result == nil {
		return nil, odooerrors.Newf(odooerrors.ErrorTypeData,
			"%s.%s reply has no result member", service, method)
	}

	var result interface{}
	if err := gojson.Unmarshal(reply.Result, &result); err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		return nil, odooerrors.Wrap(err, odooerrors.ErrorTypeData, "malformed result payload")
	}

	logger.WithContext(ctx, c.logger).Debug("rpc call completed",
		zap.String("call", timer.Name()),
		zap.Duration("duration", duration))

	return result, nil
}

// remoteToError converts a reply envelope error into the client taxonomy.
// Access errors reported by the server map to the permission type, the rest
// stays a generic RPC error carrying the server diagnostic as details.
func remoteToError(service, method string, re *remoteError) error {
	errType := odooerrors.ErrorTypeRPC
	if name, ok := re.Data["name"].(string); ok {
		switch name {
		case "odoo.exceptions.AccessError", "odoo.exceptions.AccessDenied":
			errType = odooerrors.ErrorTypePermission
		}
	}

	e := odooerrors.Newf(errType, "%s.%s: %s", service, method, re.Message).
		WithDetail("code", re.Code)
	if msg, ok := re.Data["message"].(string); ok && msg != "" {
		e = e.WithDetail("server_message", msg)
	}
	if name, ok := re.Data["name"].(string); ok && name != "" {
		e = e.WithDetail("exception", name)
	}
	return e
}

// Database returns the database bound by Authenticate.
func (c *Client) Database() string { return c.database }

// UID returns the user id bound by Authenticate.
func (c *Client) UID() int64 { return c.uid }

// Password returns the session password. Needed by the report service,
// whose render protocol re-sends credentials in the call payload.
func (c *Client) Password() string { return c.password }

// Stats returns basic request counters.
func (c *Client) Stats() (total, failed int64) {
	return atomic.LoadInt64(&c.totalRequests), atomic.LoadInt64(&c.failedRequests)
}

// Close releases idle transport connections.
func (c *Client) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// toInt64 accepts the numeric shapes the JSON decoder may produce for an id.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
