package model

import (
	"context"
	"time"

	"github.com/quintagroup/odoorpc/pkg/errors"
)

// RecordSet is a client-side handle to zero or more rows of one remote
// model. All record sets of a model share that model proxy's field
// descriptors; views derived from one record set share its value caches.
//
// The authoritative cache holds the last values confirmed by the server.
// Field assignments never touch it: they stage values into the pending
// buffer, and only a commit reconciles staged values into the cache. Readers
// therefore see either the pre-commit or the fully committed value, never a
// partial one.
type RecordSet struct {
	model  *Model
	ids    []int64
	primed bool

	// values is the authoritative cache: field name -> record id -> value.
	values map[string]map[int64]interface{}
	// valuesToWrite is the pending buffer with the same shape.
	valuesToWrite map[string]map[int64]interface{}
}

// Model returns the owning model proxy.
func (rs *RecordSet) Model() *Model {
	return rs.model
}

// IDs returns the record ids in this set.
func (rs *RecordSet) IDs() []int64 {
	return append([]int64(nil), rs.ids...)
}

// ID returns the first record id, or 0 for an empty set.
func (rs *RecordSet) ID() int64 {
	if len(rs.ids) == 0 {
		return 0
	}
	return rs.ids[0]
}

// Len returns the number of records in the set.
func (rs *RecordSet) Len() int {
	return len(rs.ids)
}

// IsEmpty reports whether the set holds no records.
func (rs *RecordSet) IsEmpty() bool {
	return len(rs.ids) == 0
}

// EnsureOne fails unless the set holds exactly one record.
func (rs *RecordSet) EnsureOne() error {
	if len(rs.ids) != 1 {
		return errors.Newf(errors.ErrorTypeValidation,
			"expected exactly one %s record, got %d", rs.model.name, len(rs.ids))
	}
	return nil
}

// At returns a single-record view of the i-th record. Views share the
// underlying caches, so staging through a view is visible on the parent.
func (rs *RecordSet) At(i int) *RecordSet {
	return rs.view(rs.ids[i])
}

// First returns a single-record view of the first record.
func (rs *RecordSet) First() *RecordSet {
	if len(rs.ids) == 0 {
		return rs
	}
	return rs.view(rs.ids[0])
}

// Records returns one single-record view per record in the set.
func (rs *RecordSet) Records() []*RecordSet {
	out := make([]*RecordSet, len(rs.ids))
	for i, id := range rs.ids {
		out[i] = rs.view(id)
	}
	return out
}

// view builds a single-record alias sharing the value caches.
func (rs *RecordSet) view(id int64) *RecordSet {
	return &RecordSet{
		model:         rs.model,
		ids:           []int64{id},
		primed:        rs.primed,
		values:        rs.values,
		valuesToWrite: rs.valuesToWrite,
	}
}

// prime populates the authoritative cache with one batched read. It runs at
// most once per record set; empty sets never hit the server.
func (rs *RecordSet) prime(ctx context.Context) error {
	if rs.primed || len(rs.ids) == 0 {
		return nil
	}

	rows, err := rs.model.Read(ctx, rs.ids, nil)
	if err != nil {
		return err
	}
	for _, row := range rows {
		id, ok := asInt64(row["id"])
		if !ok {
			return errors.New(errors.ErrorTypeData, "read reply row lacks an id")
		}
		for name := range rs.model.fields {
			if value, ok := row[name]; ok {
				rs.cacheSetFor(name, id, value)
			}
		}
	}

	// A synthetic name descriptor has no server-side column; fill it from
	// the display-name endpoint instead.
	if rs.model.syntheticName {
		if err := rs.primeNames(ctx); err != nil {
			return err
		}
	}

	rs.primed = true
	return nil
}

// primeNames fills the synthetic name field from name_get pairs.
func (rs *RecordSet) primeNames(ctx context.Context) error {
	pairs, err := rs.model.nameGet(ctx, rs.ids)
	if err != nil {
		return err
	}
	for id, name := range pairs {
		rs.cacheSetFor("name", id, name)
	}
	return nil
}

// Get reads one field through its descriptor. The first access on an
// unprimed set blocks on a read round trip; relational kinds may addition-
// ally block on schema discovery for the related model.
func (rs *RecordSet) Get(ctx context.Context, field string) (interface{}, error) {
	f, err := rs.model.Field(field)
	if err != nil {
		return nil, err
	}
	if err := rs.prime(ctx); err != nil {
		return nil, err
	}
	return f.Read(ctx, rs)
}

// Set stages one field value through its descriptor and marks the records
// dirty in the environment. No RPC is issued unless the environment runs in
// auto-commit mode, in which case the staged value is committed immediately.
func (rs *RecordSet) Set(ctx context.Context, field string, value interface{}) error {
	if len(rs.ids) == 0 {
		return errors.Newf(errors.ErrorTypeValidation,
			"cannot assign %q on an empty %s record set", field, rs.model.name)
	}
	f, err := rs.model.Field(field)
	if err != nil {
		return err
	}
	if err := f.Write(rs, value); err != nil {
		return err
	}
	if rs.model.env.AutoCommit() {
		return rs.model.env.Commit(ctx)
	}
	return nil
}

// String reads a field and returns it as a string.
func (rs *RecordSet) String(ctx context.Context, field string) (string, error) {
	value, err := rs.Get(ctx, field)
	if err != nil {
		return "", err
	}
	s, ok := value.(string)
	if !ok {
		return "", errors.Newf(errors.ErrorTypeValidation, "field %q is not text", field)
	}
	return s, nil
}

// Int reads a field and returns it as an int64.
func (rs *RecordSet) Int(ctx context.Context, field string) (int64, error) {
	value, err := rs.Get(ctx, field)
	if err != nil {
		return 0, err
	}
	n, ok := value.(int64)
	if !ok {
		return 0, errors.Newf(errors.ErrorTypeValidation, "field %q is not an integer", field)
	}
	return n, nil
}

// Float reads a field and returns it as a float64.
func (rs *RecordSet) Float(ctx context.Context, field string) (float64, error) {
	value, err := rs.Get(ctx, field)
	if err != nil {
		return 0, err
	}
	n, ok := value.(float64)
	if !ok {
		return 0, errors.Newf(errors.ErrorTypeValidation, "field %q is not a float", field)
	}
	return n, nil
}

// Bool reads a field and returns it as a bool.
func (rs *RecordSet) Bool(ctx context.Context, field string) (bool, error) {
	value, err := rs.Get(ctx, field)
	if err != nil {
		return false, err
	}
	b, ok := value.(bool)
	if !ok {
		return false, errors.Newf(errors.ErrorTypeValidation, "field %q is not a boolean", field)
	}
	return b, nil
}

// Time reads a date or datetime field.
func (rs *RecordSet) Time(ctx context.Context, field string) (time.Time, error) {
	value, err := rs.Get(ctx, field)
	if err != nil {
		return time.Time{}, err
	}
	t, ok := value.(time.Time)
	if !ok {
		return time.Time{}, errors.Newf(errors.ErrorTypeValidation, "field %q is not a date", field)
	}
	return t, nil
}

// Related reads a relational field and returns the related record set. A
// nil set means an unset many-to-one value.
func (rs *RecordSet) Related(ctx context.Context, field string) (*RecordSet, error) {
	value, err := rs.Get(ctx, field)
	if err != nil {
		return nil, err
	}
	related, ok := value.(*RecordSet)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeValidation, "field %q is not relational", field)
	}
	return related, nil
}

// Write pushes values straight to the server for every record in the set,
// bypassing the staging buffer.
func (rs *RecordSet) Write(ctx context.Context, values map[string]interface{}) error {
	return rs.model.Write(ctx, rs.ids, values)
}

// Unlink deletes every record in the set on the server.
func (rs *RecordSet) Unlink(ctx context.Context) error {
	return rs.model.Unlink(ctx, rs.ids)
}

// cacheGet returns the authoritative cached value of a field for the first
// record.
func (rs *RecordSet) cacheGet(field string) (interface{}, error) {
	if len(rs.ids) == 0 {
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"cannot read %q on an empty %s record set", field, rs.model.name)
	}
	return rs.values[field][rs.ids[0]], nil
}

// cacheSet stores the authoritative value of a field for the first record.
func (rs *RecordSet) cacheSet(field string, value interface{}) {
	if len(rs.ids) == 0 {
		return
	}
	rs.cacheSetFor(field, rs.ids[0], value)
}

func (rs *RecordSet) cacheSetFor(field string, id int64, value interface{}) {
	byID, ok := rs.values[field]
	if !ok {
		byID = make(map[int64]interface{})
		rs.values[field] = byID
	}
	byID[id] = value
}

// stage buffers a value for every record in the set and registers the
// records in the environment's dirty set.
func (rs *RecordSet) stage(field string, value interface{}) {
	byID, ok := rs.valuesToWrite[field]
	if !ok {
		byID = make(map[int64]interface{})
		rs.valuesToWrite[field] = byID
	}
	for _, id := range rs.ids {
		byID[id] = value
		rs.model.env.markDirty(RecordRef{Model: rs.model.name, ID: id}, rs)
	}
}

// staged returns the pending value of a field for the first record.
func (rs *RecordSet) staged(field string) (interface{}, bool) {
	if len(rs.ids) == 0 {
		return nil, false
	}
	value, ok := rs.valuesToWrite[field][rs.ids[0]]
	return value, ok
}

// takeStaged pops the pending value of a field for one record id.
func (rs *RecordSet) takeStaged(field string, id int64) (interface{}, bool) {
	byID, ok := rs.valuesToWrite[field]
	if !ok {
		return nil, false
	}
	value, ok := byID[id]
	if ok {
		delete(byID, id)
	}
	return value, ok
}

// clearStaged drops every pending value of this set's records.
func (rs *RecordSet) clearStaged() {
	for field, byID := range rs.valuesToWrite {
		for _, id := range rs.ids {
			delete(byID, id)
		}
		if len(byID) == 0 {
			delete(rs.valuesToWrite, field)
		}
	}
}

// stagedFields lists the fields with a pending value for one record id.
func (rs *RecordSet) stagedFields(id int64) []string {
	var out []string
	for field, byID := range rs.valuesToWrite {
		if _, ok := byID[id]; ok {
			out = append(out, field)
		}
	}
	return out
}
