package model

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/quintagroup/odoorpc/pkg/errors"
)

// reservedFieldNames are excluded from generated descriptors to avoid
// collisions with record-set internals.
var reservedFieldNames = map[string]struct{}{
	"id":     {},
	"ids":    {},
	"env":    {},
	"model":  {},
	"fields": {},
}

// Model is the local proxy for one remote data model: its name, the field
// descriptors synthesized from the remote schema, and back-references to the
// owning environment and transport. Proxies are generated once per
// (environment lineage, model name) pair and memoized in the registry.
type Model struct {
	name   string
	env    *Environment
	rpc    Transport
	logger *zap.Logger

	fields map[string]Field
	// syntheticName marks models whose schema lacks a name column; the
	// proxy injects a read-only text descriptor filled from name_get.
	syntheticName bool
}

// newModel discovers the remote schema with one introspection call and
// assembles the proxy. The caller memoizes the result: on any failure
// nothing is cached and the error propagates.
func newModel(ctx context.Context, env *Environment, name string) (*Model, error) {
	m := &Model{
		name:   name,
		env:    env,
		rpc:    env.rpc,
		logger: env.logger.With(zap.String("model", name)),
		fields: make(map[string]Field),
	}

	result, err := m.execute(ctx, "fields_get")
	if err != nil {
		return nil, err
	}
	wire, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData,
			"fields_get reply for %q is not an object", name)
	}

	for fieldName, raw := range wire {
		if _, reserved := reservedFieldNames[fieldName]; reserved {
			continue
		}
		data, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeData,
				"schema of field %q on %q is not an object", fieldName, name)
		}
		field, err := generateField(fieldName, fieldSchemaFromWire(data))
		if err != nil {
			return nil, err
		}
		m.fields[fieldName] = field
	}

	// Models without a name column still get a display field, read-only
	// and filled from name_get.
	if _, ok := m.fields["name"]; !ok {
		field, err := generateField("name", FieldSchema{
			Type:     "text",
			Label:    "Name",
			ReadOnly: true,
		})
		if err != nil {
			return nil, err
		}
		m.fields["name"] = field
		m.syntheticName = true
	}

	m.logger.Debug("model proxy generated", zap.Int("fields", len(m.fields)))
	return m, nil
}

// Name returns the remote model name.
func (m *Model) Name() string {
	return m.name
}

// Env returns the owning environment.
func (m *Model) Env() *Environment {
	return m.env
}

// Field returns the descriptor for one field name.
func (m *Model) Field(name string) (Field, error) {
	field, ok := m.fields[name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound,
			"model %q has no field %q", m.name, name)
	}
	return field, nil
}

// FieldNames returns the sorted names of all generated descriptors.
func (m *Model) FieldNames() []string {
	names := make([]string, 0, len(m.fields))
	for name := range m.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fields returns a copy of the descriptor mapping.
func (m *Model) Fields() map[string]Field {
	out := make(map[string]Field, len(m.fields))
	for name, field := range m.fields {
		out[name] = field
	}
	return out
}

// execute invokes a model method with the environment's user context.
func (m *Model) execute(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	return m.rpc.ExecuteKw(ctx, m.name, method, args, map[string]interface{}{
		"context": m.env.Context(),
	})
}

// newRecordSet builds a lazy record set: the authoritative cache is primed
// by one batched read on first field access.
func (m *Model) newRecordSet(ids ...int64) *RecordSet {
	return &RecordSet{
		model:         m,
		ids:           append([]int64(nil), ids...),
		values:        make(map[string]map[int64]interface{}),
		valuesToWrite: make(map[string]map[int64]interface{}),
	}
}

// Browse returns a record set over the given ids with its cache primed by
// one batched read.
func (m *Model) Browse(ctx context.Context, ids ...int64) (*RecordSet, error) {
	rs := m.newRecordSet(ids...)
	if err := rs.prime(ctx); err != nil {
		return nil, err
	}
	return rs, nil
}

// SearchOptions tunes pagination and ordering of Search.
type SearchOptions struct {
	Offset int
	Limit  int
	Order  string
}

// Search returns the ids of the records matching the condition. A nil
// condition matches everything. At most one SearchOptions value is honored.
func (m *Model) Search(ctx context.Context, cond *Condition, opts ...SearchOptions) ([]int64, error) {
	kwargs := map[string]interface{}{
		"context": m.env.Context(),
	}
	if len(opts) > 0 {
		opt := opts[0]
		if opt.Offset > 0 {
			kwargs["offset"] = opt.Offset
		}
		if opt.Limit > 0 {
			kwargs["limit"] = opt.Limit
		}
		if opt.Order != "" {
			kwargs["order"] = opt.Order
		}
	}
	result, err := m.rpc.ExecuteKw(ctx, m.name, "search", []interface{}{cond.Domain()}, kwargs)
	if err != nil {
		return nil, err
	}
	ids := relatedIDs(result)
	if ids == nil && result != nil {
		if _, isList := result.([]interface{}); !isList {
			return nil, errors.Newf(errors.ErrorTypeData,
				"search reply for %q is not an id list", m.name)
		}
	}
	return ids, nil
}

// SearchCount returns the number of records matching the condition.
func (m *Model) SearchCount(ctx context.Context, cond *Condition) (int64, error) {
	result, err := m.execute(ctx, "search_count", cond.Domain())
	if err != nil {
		return 0, err
	}
	n, ok := asInt64(result)
	if !ok {
		return 0, errors.Newf(errors.ErrorTypeData,
			"search_count reply for %q is not a number", m.name)
	}
	return n, nil
}

// Read fetches raw field values for the given ids. A nil field list reads
// every stored field.
func (m *Model) Read(ctx context.Context, ids []int64, fieldNames []string) ([]map[string]interface{}, error) {
	if fieldNames == nil {
		fieldNames = []string{}
	}
	result, err := m.execute(ctx, "read", idList(ids), fieldNames)
	if err != nil {
		return nil, err
	}
	rows, ok := result.([]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData, "read reply for %q is not a list", m.name)
	}
	out := make([]map[string]interface{}, 0, len(rows))
	for _, raw := range rows {
		row, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeData,
				"read reply row for %q is not an object", m.name)
		}
		out = append(out, row)
	}
	return out, nil
}

// Create inserts one record and returns a primed record set for it.
func (m *Model) Create(ctx context.Context, values map[string]interface{}) (*RecordSet, error) {
	result, err := m.execute(ctx, "create", wireValues(values))
	if err != nil {
		return nil, err
	}
	id, ok := asInt64(result)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData, "create reply for %q is not an id", m.name)
	}
	return m.Browse(ctx, id)
}

// Write updates the given records in one call.
func (m *Model) Write(ctx context.Context, ids []int64, values map[string]interface{}) error {
	_, err := m.execute(ctx, "write", idList(ids), wireValues(values))
	return err
}

// Unlink deletes the given records.
func (m *Model) Unlink(ctx context.Context, ids []int64) error {
	_, err := m.execute(ctx, "unlink", idList(ids))
	return err
}

// nameGet fetches display names for the given ids.
func (m *Model) nameGet(ctx context.Context, ids []int64) (map[int64]string, error) {
	result, err := m.execute(ctx, "name_get", idList(ids))
	if err != nil {
		return nil, err
	}
	pairs, ok := result.([]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData, "name_get reply for %q is not a list", m.name)
	}
	out := make(map[int64]string, len(pairs))
	for _, raw := range pairs {
		pair, ok := raw.([]interface{})
		if !ok || len(pair) != 2 {
			continue
		}
		id, ok := asInt64(pair[0])
		if !ok {
			continue
		}
		name, _ := pair[1].(string)
		out[id] = name
	}
	return out, nil
}

// wireValues converts staged command sequences into wire tuples; scalar
// values pass through unchanged.
func wireValues(values map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for name, value := range values {
		if commands, ok := value.([]Command); ok {
			out[name] = encodeCommands(commands)
			continue
		}
		if command, ok := value.(Command); ok {
			out[name] = encodeCommands([]Command{command})
			continue
		}
		out[name] = value
	}
	return out
}

// idList widens ids for JSON encoding.
func idList(ids []int64) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
