package model

import "context"

// Transport is the capability surface this layer needs from the RPC client.
// Failures surface as remote-call errors and propagate unchanged; this
// layer never retries and delegates cancellation entirely to the transport.
type Transport interface {
	// Execute invokes a method on a data model with positional arguments.
	Execute(ctx context.Context, model, method string, args ...interface{}) (interface{}, error)
	// ExecuteKw invokes a method on a data model with positional and
	// keyword arguments.
	ExecuteKw(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (interface{}, error)
}
