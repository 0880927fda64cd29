package model

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/quintagroup/odoorpc/pkg/errors"
)

// FieldKind is the local categorization of a remote field type.
type FieldKind string

const (
	KindChar      FieldKind = "char"
	KindText      FieldKind = "text"
	KindInteger   FieldKind = "integer"
	KindFloat     FieldKind = "float"
	KindBoolean   FieldKind = "boolean"
	KindDate      FieldKind = "date"
	KindDatetime  FieldKind = "datetime"
	KindSelection FieldKind = "selection"
	KindBinary    FieldKind = "binary"
	KindMany2one  FieldKind = "many2one"
	KindOne2many  FieldKind = "one2many"
	KindMany2many FieldKind = "many2many"
)

// Wire formats for date and datetime values.
const (
	DateFormat     = "2006-01-02"
	DatetimeFormat = "2006-01-02 15:04:05"
)

// Field is the per-field behavior object of a model proxy. Read returns a
// kind-appropriate local value, Write validates and stages a value into the
// record's pending buffer without issuing any RPC, and Store reconciles a
// staged value into the authoritative cache during commit.
type Field interface {
	Name() string
	Kind() FieldKind
	Label() string
	ReadOnly() bool
	Required() bool
	// Relation returns the related model name for relational kinds,
	// empty otherwise.
	Relation() string

	Read(ctx context.Context, rs *RecordSet) (interface{}, error)
	Write(rs *RecordSet, value interface{}) error
	Store(rs *RecordSet, value interface{}) error
}

// SelectionOption is one allowed value of a selection field.
type SelectionOption struct {
	Value string
	Label string
}

// FieldSchema is the decoded wire-level description of one field, as
// returned by the schema introspection call.
type FieldSchema struct {
	Type      string
	Label     string
	Help      string
	ReadOnly  bool
	Required  bool
	Relation  string
	Selection []SelectionOption
}

// fieldSchemaFromWire decodes one fields_get entry. Unknown keys are
// ignored so remote schema evolution cannot break proxy generation.
func fieldSchemaFromWire(data map[string]interface{}) FieldSchema {
	s := FieldSchema{}
	if v, ok := data["type"].(string); ok {
		s.Type = v
	}
	if v, ok := data["string"].(string); ok {
		s.Label = v
	}
	if v, ok := data["help"].(string); ok {
		s.Help = v
	}
	s.ReadOnly = truthy(data["readonly"])
	s.Required = truthy(data["required"])
	if v, ok := data["relation"].(string); ok {
		s.Relation = v
	}
	if pairs, ok := data["selection"].([]interface{}); ok {
		for _, p := range pairs {
			pair, ok := p.([]interface{})
			if !ok || len(pair) != 2 {
				continue
			}
			value, _ := pair[0].(string)
			label, _ := pair[1].(string)
			s.Selection = append(s.Selection, SelectionOption{Value: value, Label: label})
		}
	}
	return s
}

// generateField produces the field descriptor for one schema entry. The
// factory is pure and deterministic. Unknown wire types fall back to a text
// descriptor; only a relational type without a relation target is rejected.
func generateField(name string, schema FieldSchema) (Field, error) {
	if name == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "field name must not be empty")
	}

	base := baseField{
		name:     name,
		label:    schema.Label,
		readOnly: schema.ReadOnly,
		required: schema.Required,
	}

	switch schema.Type {
	case "char", "text", "html":
		base.kind = KindChar
		if schema.Type != "char" {
			base.kind = KindText
		}
		return &textField{baseField: base}, nil
	case "integer":
		base.kind = KindInteger
		return &integerField{baseField: base}, nil
	case "float", "monetary":
		base.kind = KindFloat
		return &floatField{baseField: base}, nil
	case "boolean":
		base.kind = KindBoolean
		return &booleanField{baseField: base}, nil
	case "date":
		base.kind = KindDate
		return &dateField{baseField: base, layout: DateFormat}, nil
	case "datetime":
		base.kind = KindDatetime
		return &dateField{baseField: base, layout: DatetimeFormat}, nil
	case "selection":
		base.kind = KindSelection
		return &selectionField{baseField: base, options: schema.Selection}, nil
	case "binary":
		base.kind = KindBinary
		return &binaryField{baseField: base}, nil
	case "many2one":
		if schema.Relation == "" {
			return nil, errors.Newf(errors.ErrorTypeData,
				"relational field %q has no relation target", name)
		}
		base.kind = KindMany2one
		base.relation = schema.Relation
		return &many2oneField{baseField: base}, nil
	case "one2many", "many2many":
		if schema.Relation == "" {
			return nil, errors.Newf(errors.ErrorTypeData,
				"relational field %q has no relation target", name)
		}
		base.kind = KindOne2many
		if schema.Type == "many2many" {
			base.kind = KindMany2many
		}
		base.relation = schema.Relation
		return &x2manyField{baseField: base}, nil
	default:
		// Fail closed: schema evolution on the server must not break
		// proxy generation.
		base.kind = KindText
		return &textField{baseField: base}, nil
	}
}

// baseField carries the metadata shared by all descriptor kinds.
type baseField struct {
	name     string
	kind     FieldKind
	label    string
	readOnly bool
	required bool
	relation string
}

func (f *baseField) Name() string     { return f.name }
func (f *baseField) Kind() FieldKind  { return f.kind }
func (f *baseField) Label() string    { return f.label }
func (f *baseField) ReadOnly() bool   { return f.readOnly }
func (f *baseField) Required() bool   { return f.required }
func (f *baseField) Relation() string { return f.relation }

// checkWritable rejects writes to read-only descriptors.
func (f *baseField) checkWritable() error {
	if f.readOnly {
		return errors.Newf(errors.ErrorTypeValidation, "field %q is read-only", f.name)
	}
	return nil
}

// store is the default reconciliation: the staged value becomes the
// authoritative cached value as-is.
func (f *baseField) store(rs *RecordSet, value interface{}) error {
	rs.cacheSet(f.name, value)
	return nil
}

// textField covers char, text, html and unknown wire types.
type textField struct {
	baseField
}

func (f *textField) Read(_ context.Context, rs *RecordSet) (interface{}, error) {
	value, err := rs.cacheGet(f.name)
	if err != nil {
		return nil, err
	}
	s, _ := value.(string) // false means unset
	return s, nil
}

func (f *textField) Write(rs *RecordSet, value interface{}) error {
	if err := f.checkWritable(); err != nil {
		return err
	}
	switch v := value.(type) {
	case nil:
		rs.stage(f.name, false)
	case string:
		rs.stage(f.name, v)
	default:
		return errors.Newf(errors.ErrorTypeValidation, "field %q expects a string", f.name)
	}
	return nil
}

func (f *textField) Store(rs *RecordSet, value interface{}) error {
	return f.store(rs, value)
}

type integerField struct {
	baseField
}

func (f *integerField) Read(_ context.Context, rs *RecordSet) (interface{}, error) {
	value, err := rs.cacheGet(f.name)
	if err != nil {
		return nil, err
	}
	n, _ := asInt64(value)
	return n, nil
}

func (f *integerField) Write(rs *RecordSet, value interface{}) error {
	if err := f.checkWritable(); err != nil {
		return err
	}
	n, ok := asInt64(value)
	if !ok {
		return errors.Newf(errors.ErrorTypeValidation, "field %q expects an integer", f.name)
	}
	rs.stage(f.name, n)
	return nil
}

func (f *integerField) Store(rs *RecordSet, value interface{}) error {
	return f.store(rs, value)
}

type floatField struct {
	baseField
}

func (f *floatField) Read(_ context.Context, rs *RecordSet) (interface{}, error) {
	value, err := rs.cacheGet(f.name)
	if err != nil {
		return nil, err
	}
	n, _ := asFloat64(value)
	return n, nil
}

func (f *floatField) Write(rs *RecordSet, value interface{}) error {
	if err := f.checkWritable(); err != nil {
		return err
	}
	n, ok := asFloat64(value)
	if !ok {
		return errors.Newf(errors.ErrorTypeValidation, "field %q expects a number", f.name)
	}
	rs.stage(f.name, n)
	return nil
}

func (f *floatField) Store(rs *RecordSet, value interface{}) error {
	return f.store(rs, value)
}

type booleanField struct {
	baseField
}

func (f *booleanField) Read(_ context.Context, rs *RecordSet) (interface{}, error) {
	value, err := rs.cacheGet(f.name)
	if err != nil {
		return nil, err
	}
	b, _ := value.(bool)
	return b, nil
}

func (f *booleanField) Write(rs *RecordSet, value interface{}) error {
	if err := f.checkWritable(); err != nil {
		return err
	}
	b, ok := value.(bool)
	if !ok {
		return errors.Newf(errors.ErrorTypeValidation, "field %q expects a boolean", f.name)
	}
	rs.stage(f.name, b)
	return nil
}

func (f *booleanField) Store(rs *RecordSet, value interface{}) error {
	return f.store(rs, value)
}

// dateField covers both date and datetime kinds; layout selects the wire
// format.
type dateField struct {
	baseField
	layout string
}

func (f *dateField) Read(_ context.Context, rs *RecordSet) (interface{}, error) {
	value, err := rs.cacheGet(f.name)
	if err != nil {
		return nil, err
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(f.layout, s)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData,
			"field "+f.name+" holds an unparseable date")
	}
	return t, nil
}

func (f *dateField) Write(rs *RecordSet, value interface{}) error {
	if err := f.checkWritable(); err != nil {
		return err
	}
	switch v := value.(type) {
	case nil:
		rs.stage(f.name, false)
	case time.Time:
		if v.IsZero() {
			rs.stage(f.name, false)
			return nil
		}
		rs.stage(f.name, v.Format(f.layout))
	case string:
		if _, err := time.Parse(f.layout, v); err != nil {
			return errors.Newf(errors.ErrorTypeValidation,
				"field %q expects the %q layout", f.name, f.layout)
		}
		rs.stage(f.name, v)
	default:
		return errors.Newf(errors.ErrorTypeValidation, "field %q expects a time value", f.name)
	}
	return nil
}

func (f *dateField) Store(rs *RecordSet, value interface{}) error {
	return f.store(rs, value)
}

type selectionField struct {
	baseField
	options []SelectionOption
}

func (f *selectionField) Read(_ context.Context, rs *RecordSet) (interface{}, error) {
	value, err := rs.cacheGet(f.name)
	if err != nil {
		return nil, err
	}
	s, _ := value.(string)
	return s, nil
}

func (f *selectionField) Write(rs *RecordSet, value interface{}) error {
	if err := f.checkWritable(); err != nil {
		return err
	}
	switch v := value.(type) {
	case nil:
		rs.stage(f.name, false)
		return nil
	case string:
		if len(f.options) > 0 && !f.allowed(v) {
			return errors.Newf(errors.ErrorTypeValidation,
				"value %q is not a valid selection for field %q", v, f.name)
		}
		rs.stage(f.name, v)
		return nil
	default:
		return errors.Newf(errors.ErrorTypeValidation, "field %q expects a string", f.name)
	}
}

func (f *selectionField) allowed(value string) bool {
	for _, o := range f.options {
		if o.Value == value {
			return true
		}
	}
	return false
}

func (f *selectionField) Store(rs *RecordSet, value interface{}) error {
	return f.store(rs, value)
}

// binaryField transports payloads base64-encoded on the wire and exposes
// raw bytes locally.
type binaryField struct {
	baseField
}

func (f *binaryField) Read(_ context.Context, rs *RecordSet) (interface{}, error) {
	value, err := rs.cacheGet(f.name)
	if err != nil {
		return nil, err
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return []byte(nil), nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData,
			"field "+f.name+" holds invalid base64 data")
	}
	return raw, nil
}

func (f *binaryField) Write(rs *RecordSet, value interface{}) error {
	if err := f.checkWritable(); err != nil {
		return err
	}
	switch v := value.(type) {
	case nil:
		rs.stage(f.name, false)
	case []byte:
		rs.stage(f.name, base64.StdEncoding.EncodeToString(v))
	case string:
		if _, err := base64.StdEncoding.DecodeString(v); err != nil {
			return errors.Newf(errors.ErrorTypeValidation,
				"field %q expects base64 data", f.name)
		}
		rs.stage(f.name, v)
	default:
		return errors.Newf(errors.ErrorTypeValidation, "field %q expects bytes", f.name)
	}
	return nil
}

func (f *binaryField) Store(rs *RecordSet, value interface{}) error {
	return f.store(rs, value)
}

// many2oneField reads as a single-record set of the related model and
// writes a single related id.
type many2oneField struct {
	baseField
}

func (f *many2oneField) Read(ctx context.Context, rs *RecordSet) (interface{}, error) {
	value, err := rs.cacheGet(f.name)
	if err != nil {
		return nil, err
	}
	id, ok := relatedID(value)
	if !ok {
		return (*RecordSet)(nil), nil
	}
	related, err := rs.model.env.Model(ctx, f.relation)
	if err != nil {
		return nil, err
	}
	return related.newRecordSet(id), nil
}

// DisplayName returns the denormalized display value the server ships with
// many-to-one reads, avoiding an extra round trip for display purposes.
func (f *many2oneField) DisplayName(rs *RecordSet) (string, error) {
	value, err := rs.cacheGet(f.name)
	if err != nil {
		return "", err
	}
	if pair, ok := value.([]interface{}); ok && len(pair) == 2 {
		name, _ := pair[1].(string)
		return name, nil
	}
	return "", nil
}

func (f *many2oneField) Write(rs *RecordSet, value interface{}) error {
	if err := f.checkWritable(); err != nil {
		return err
	}
	switch v := value.(type) {
	case nil:
		rs.stage(f.name, false)
		return nil
	case *RecordSet:
		if v == nil {
			rs.stage(f.name, false)
			return nil
		}
		if err := v.EnsureOne(); err != nil {
			return err
		}
		if v.model.name != f.relation {
			return errors.Newf(errors.ErrorTypeValidation,
				"field %q expects a %q record, got %q", f.name, f.relation, v.model.name)
		}
		rs.stage(f.name, v.ID())
		return nil
	default:
		id, ok := asInt64(value)
		if !ok {
			return errors.Newf(errors.ErrorTypeValidation,
				"field %q expects a record id", f.name)
		}
		rs.stage(f.name, id)
		return nil
	}
}

func (f *many2oneField) Store(rs *RecordSet, value interface{}) error {
	return f.store(rs, value)
}

// x2manyField covers one2many and many2many. Assignments stage a command
// sequence; reads return a record set over the cached related ids.
type x2manyField struct {
	baseField
}

func (f *x2manyField) Read(ctx context.Context, rs *RecordSet) (interface{}, error) {
	value, err := rs.cacheGet(f.name)
	if err != nil {
		return nil, err
	}
	related, err := rs.model.env.Model(ctx, f.relation)
	if err != nil {
		return nil, err
	}
	return related.newRecordSet(relatedIDs(value)...), nil
}

func (f *x2manyField) Write(rs *RecordSet, value interface{}) error {
	if err := f.checkWritable(); err != nil {
		return err
	}
	commands, err := f.normalize(value)
	if err != nil {
		return err
	}
	for _, c := range commands {
		if err := c.validate(); err != nil {
			return err
		}
	}

	// Consecutive assignments to the same field accumulate one ordered
	// command sequence.
	if staged, ok := rs.staged(f.name); ok {
		if prev, ok := staged.([]Command); ok {
			commands = append(append([]Command(nil), prev...), commands...)
		}
	}
	rs.stage(f.name, commands)
	return nil
}

// normalize converts the accepted assignment shapes into a command
// sequence. A plain id list becomes a single replace-all command.
func (f *x2manyField) normalize(value interface{}) ([]Command, error) {
	switch v := value.(type) {
	case nil:
		return []Command{CmdClear()}, nil
	case Command:
		return []Command{v}, nil
	case []Command:
		return v, nil
	case []int64:
		return []Command{CmdReplace(v)}, nil
	case []int:
		ids := make([]int64, len(v))
		for i, id := range v {
			ids[i] = int64(id)
		}
		return []Command{CmdReplace(ids)}, nil
	case *RecordSet:
		if v == nil {
			return []Command{CmdClear()}, nil
		}
		if v.model.name != f.relation {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"field %q expects %q records, got %q", f.name, f.relation, v.model.name)
		}
		return []Command{CmdReplace(v.IDs())}, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation,
			"field %q expects commands, ids or a record set", f.name)
	}
}

// Store resolves the staged command sequence into a refreshed snapshot of
// related ids; the command log is discarded with the staging buffer.
func (f *x2manyField) Store(rs *RecordSet, value interface{}) error {
	commands, ok := value.([]Command)
	if !ok {
		return errors.Newf(errors.ErrorTypeInternal,
			"field %q staged a non-command value", f.name)
	}
	current, err := rs.cacheGet(f.name)
	if err != nil {
		return err
	}
	rs.cacheSet(f.name, applyCommands(relatedIDs(current), commands))
	return nil
}

// truthy interprets the mixed bool/number flags of the wire schema.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return false
	}
}

// asInt64 accepts the integer shapes the JSON decoder and callers produce.
func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// asFloat64 accepts the numeric shapes the JSON decoder and callers produce.
func asFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// relatedID decodes the cached shapes of a many-to-one value: false, a bare
// id, or an (id, display name) pair.
func relatedID(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case []interface{}:
		if len(t) == 0 {
			return 0, false
		}
		return asInt64(t[0])
	default:
		id, ok := asInt64(v)
		if !ok || id == 0 {
			return 0, false
		}
		return id, true
	}
}

// relatedIDs decodes the cached shapes of an x2many value.
func relatedIDs(v interface{}) []int64 {
	switch t := v.(type) {
	case []int64:
		return append([]int64(nil), t...)
	case []interface{}:
		ids := make([]int64, 0, len(t))
		for _, item := range t {
			if id, ok := asInt64(item); ok {
				ids = append(ids, id)
			}
		}
		return ids
	default:
		return nil
	}
}
