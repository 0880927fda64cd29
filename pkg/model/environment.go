package model

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/quintagroup/odoorpc/pkg/errors"
	"github.com/quintagroup/odoorpc/pkg/metrics"
)

// Model names with a fixed meaning on the server side.
const (
	userModel    = "res.users"
	modelDataRef = "ir.model.data"
)

// RecordRef is the stable identity of one remote row.
type RecordRef struct {
	Model string
	ID    int64
}

// environState is the mutation state shared by an environment and every
// environment derived from it: the model-proxy registry and the dirty set.
// Derived environments are context views over this one object, never
// independent caches.
type environState struct {
	mu sync.Mutex
	// registry maps a model name to its memoized proxy.
	registry map[string]*Model
	// dirty maps a record identity to the record-set handles holding
	// staged values for it.
	dirty map[RecordRef][]*RecordSet
}

// Environment wraps the session identity (database, user id, user context)
// and provides access to model proxies, local write buffering and commit.
//
// The registry, the dirty set and per-record pending buffers are guarded by
// one mutex, but the overall model stays synchronous: every operation that
// can reach the server blocks its caller for the round trip.
type Environment struct {
	rpc        Transport
	db         string
	uid        int64
	context    map[string]interface{}
	logger     *zap.Logger
	autoCommit bool
	state      *environState
}

// NewEnvironment creates an environment for an authenticated session.
// userCtx carries opaque session hints (language, timezone, ...) forwarded
// with every model call; nil means an empty context. Auto-commit starts
// enabled; switch it off to batch assignments until Commit.
func NewEnvironment(rpc Transport, db string, uid int64, userCtx map[string]interface{}, logger *zap.Logger) *Environment {
	if userCtx == nil {
		userCtx = make(map[string]interface{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Environment{
		rpc:        rpc,
		db:         db,
		uid:        uid,
		context:    userCtx,
		autoCommit: true,
		logger:     logger.With(zap.String("component", "environment"), zap.String("database", db)),
		state: &environState{
			registry: make(map[string]*Model),
			dirty:    make(map[RecordRef][]*RecordSet),
		},
	}
}

// DB returns the database this environment is bound to.
func (e *Environment) DB() string {
	return e.db
}

// UID returns the authenticated user id.
func (e *Environment) UID() int64 {
	return e.uid
}

// Context returns the user context. Callers must treat it as read-only;
// derive an environment with WithContext to change it.
func (e *Environment) Context() map[string]interface{} {
	return e.context
}

// Lang returns the language code of the user context, or "" when unset.
func (e *Environment) Lang() string {
	lang, _ := e.context["lang"].(string)
	return lang
}

// AutoCommit reports whether field assignments commit immediately.
func (e *Environment) AutoCommit() bool {
	return e.autoCommit
}

// SetAutoCommit switches between immediate and buffered writes. With
// auto-commit off, N assignments on a record cost one RPC at the next
// Commit instead of N.
func (e *Environment) SetAutoCommit(on bool) {
	e.autoCommit = on
}

// WithContext returns a derived environment with a different user context.
// The derived environment shares the registry and the dirty set with this
// one: staging through either is visible in both. A nil context keeps the
// current one.
func (e *Environment) WithContext(userCtx map[string]interface{}) *Environment {
	if userCtx == nil {
		userCtx = e.context
	}
	return &Environment{
		rpc:        e.rpc,
		db:         e.db,
		uid:        e.uid,
		context:    userCtx,
		logger:     e.logger,
		autoCommit: e.autoCommit,
		state:      e.state,
	}
}

// Model returns the proxy for a model name, generating and memoizing it on
// first access. The first lookup per model blocks on one schema round trip;
// later lookups are local. On failure nothing is cached and the error
// propagates.
func (e *Environment) Model(ctx context.Context, name string) (*Model, error) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()

	if m, ok := e.state.registry[name]; ok {
		return m, nil
	}

	m, err := newModel(ctx, e, name)
	if err != nil {
		return nil, err
	}
	e.state.registry[name] = m
	metrics.RegistrySize.WithLabelValues(e.db).Set(float64(len(e.state.registry)))
	return m, nil
}

// Models returns the sorted names of all memoized proxies.
func (e *Environment) Models() []string {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()

	names := make([]string, 0, len(e.state.registry))
	for name := range e.state.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evict deletes a model's registry entry. The next lookup regenerates the
// proxy with a fresh schema round trip; this is the only supported cache
// invalidation for schema drift.
func (e *Environment) Evict(name string) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()

	delete(e.state.registry, name)
	metrics.RegistrySize.WithLabelValues(e.db).Set(float64(len(e.state.registry)))
}

// Dirty returns the sorted identities of records with staged, uncommitted
// changes.
func (e *Environment) Dirty() []RecordRef {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()

	refs := make([]RecordRef, 0, len(e.state.dirty))
	for ref := range e.state.dirty {
		refs = append(refs, ref)
	}
	sortRefs(refs)
	return refs
}

// IsDirty reports whether a record has staged changes.
func (e *Environment) IsDirty(ref RecordRef) bool {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()

	_, ok := e.state.dirty[ref]
	return ok
}

// markDirty registers a record-set handle holding staged values for ref.
func (e *Environment) markDirty(ref RecordRef, rs *RecordSet) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()

	for _, existing := range e.state.dirty[ref] {
		if existing == rs {
			return
		}
	}
	e.state.dirty[ref] = append(e.state.dirty[ref], rs)
	metrics.DirtyRecords.WithLabelValues(e.db).Set(float64(len(e.state.dirty)))
}

// Commit flushes every staged mutation to the server, batching all of a
// record's staged fields into a single write call. Records are committed
// one by one in a stable order; on the first failure the error propagates
// and the failed record plus every not-yet-attempted record stay dirty.
// The failed record's staged values have already been drained into the
// cache by then, so a later Commit resends only the records that were
// never attempted; the failed write itself must be repeated by assigning
// the fields again. This is a best-effort multi-record commit, not a
// transaction.
func (e *Environment) Commit(ctx context.Context) error {
	// Work over a snapshot: committing a record mutates the dirty set.
	e.state.mu.Lock()
	refs := make([]RecordRef, 0, len(e.state.dirty))
	for ref := range e.state.dirty {
		refs = append(refs, ref)
	}
	sortRefs(refs)
	handles := make(map[RecordRef][]*RecordSet, len(refs))
	for _, ref := range refs {
		handles[ref] = append([]*RecordSet(nil), e.state.dirty[ref]...)
	}
	e.state.mu.Unlock()

	for _, ref := range refs {
		if err := e.commitRecord(ctx, ref, handles[ref]); err != nil {
			return err
		}

		e.state.mu.Lock()
		delete(e.state.dirty, ref)
		metrics.DirtyRecords.WithLabelValues(e.db).Set(float64(len(e.state.dirty)))
		e.state.mu.Unlock()
	}
	return nil
}

// commitRecord pops every staged field value for one record, reconciles the
// authoritative cache through the descriptors and issues exactly one write.
func (e *Environment) commitRecord(ctx context.Context, ref RecordRef, handles []*RecordSet) error {
	values := make(map[string]interface{})
	var m *Model

	for _, rs := range handles {
		m = rs.model
		fields := rs.stagedFields(ref.ID)
		sort.Strings(fields)
		for _, field := range fields {
			value, ok := rs.takeStaged(field, ref.ID)
			if !ok {
				continue
			}
			values[field] = value

			// Reconciliation is delegated to the descriptor: some
			// staged values cannot be cached as-is (command logs of
			// x2many fields resolve into an id snapshot).
			descriptor, err := m.Field(field)
			if err != nil {
				return err
			}
			if err := descriptor.Store(rs.view(ref.ID), value); err != nil {
				return err
			}
		}
	}

	if m == nil || len(values) == 0 {
		return nil
	}

	if err := m.Write(ctx, []int64{ref.ID}, values); err != nil {
		return errors.Wrap(err, errors.ErrorTypeRPC, "commit failed, remaining records still dirty").
			WithDetail("model", ref.Model).
			WithDetail("id", ref.ID)
	}

	e.logger.Debug("record committed",
		zap.String("model", ref.Model),
		zap.Int64("id", ref.ID),
		zap.Int("fields", len(values)))
	return nil
}

// Invalidate discards every staged, uncommitted value without writing.
// Authoritative cached values keep their pre-staging state; local edits
// since the last commit are lost by design.
func (e *Environment) Invalidate() {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()

	for ref, handles := range e.state.dirty {
		for _, rs := range handles {
			view := rs.view(ref.ID)
			view.clearStaged()
		}
	}
	e.state.dirty = make(map[RecordRef][]*RecordSet)
	metrics.DirtyRecords.WithLabelValues(e.db).Set(0)
}

// Ref resolves an external identifier ("module.xml_id") to a record with
// one remote lookup followed by a browse scoped to the resolved model.
func (e *Environment) Ref(ctx context.Context, xmlID string) (*RecordSet, error) {
	result, err := e.rpc.Execute(ctx, modelDataRef, "xmlid_to_res_model_res_id", xmlID, true)
	if err != nil {
		return nil, err
	}
	pair, ok := result.([]interface{})
	if !ok || len(pair) != 2 {
		return nil, errors.Newf(errors.ErrorTypeData,
			"external identifier lookup for %q returned no (model, id) pair", xmlID)
	}
	name, _ := pair[0].(string)
	id, okID := asInt64(pair[1])
	if name == "" || !okID || id == 0 {
		return nil, errors.Newf(errors.ErrorTypeNotFound,
			"external identifier %q does not resolve to a record", xmlID)
	}

	m, err := e.Model(ctx, name)
	if err != nil {
		return nil, err
	}
	return m.Browse(ctx, id)
}

// User returns the record of the authenticated user.
func (e *Environment) User(ctx context.Context) (*RecordSet, error) {
	m, err := e.Model(ctx, userModel)
	if err != nil {
		return nil, err
	}
	return m.Browse(ctx, e.uid)
}

func sortRefs(refs []RecordRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Model != refs[j].Model {
			return refs[i].Model < refs[j].Model
		}
		return refs[i].ID < refs[j].ID
	})
}
