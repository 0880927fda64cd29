// Package odoorpc provides a Go client for Odoo servers over JSON-RPC.
//
// The client discovers model schemas at runtime and exposes every remote
// model as a generic record proxy, so any model on any server can be
// browsed, searched, edited and committed without code generation.
//
// # Architecture
//
// The client is layered into independent packages:
//
// 1. Transport (pkg/jsonrpc): JSON-RPC envelope framing, authentication,
// connection pooling with HTTP/2 and TLS, error mapping.
//
// 2. Model layer (pkg/model): the Environment with its model-proxy registry
// and dirty-record tracking, schema-driven field descriptors, record sets
// with client-side write buffering, and the command encoding for relational
// field updates.
//
// 3. Services (pkg/report, pkg/session): report listing/rendering and saved
// connection sessions.
//
// 4. Ambient concerns (pkg/config, pkg/logger, pkg/metrics, pkg/errors):
// unified configuration, zap logging, prometheus metrics and the structured
// error taxonomy shared by all layers.
//
// # Quick Start
//
//	import (
//	    "context"
//
//	    "github.com/quintagroup/odoorpc/pkg/config"
//	    "github.com/quintagroup/odoorpc/pkg/jsonrpc"
//	    "github.com/quintagroup/odoorpc/pkg/logger"
//	    "github.com/quintagroup/odoorpc/pkg/model"
//	)
//
//	cfg := config.NewClientConfig("localhost", 8069)
//	client, err := jsonrpc.NewClient(cfg, logger.Get())
//	if err != nil { ... }
//
//	ctx := context.Background()
//	uid, err := client.Authenticate(ctx, "prod", "admin", "secret")
//	if err != nil { ... }
//
//	env := model.NewEnvironment(client, "prod", uid, nil, logger.Get())
//	partners, err := env.Model(ctx, "res.partner")
//	if err != nil { ... }
//
//	rs, err := partners.Browse(ctx, 1)
//	if err != nil { ... }
//	name, _ := rs.String(ctx, "name")
//
// # Write Buffering
//
// Field assignments stage values locally; with auto-commit switched off,
// any number of assignments on one record flush as a single write call:
//
//	env.SetAutoCommit(false)
//	rec.Set(ctx, "name", "Renamed")
//	rec.Set(ctx, "email", "new@example.com")
//	err := env.Commit(ctx) // one write RPC for this record
package odoorpc
