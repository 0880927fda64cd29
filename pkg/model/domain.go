package model

// Condition is a search filter over a model, combinable with And/Or/Not.
// It encodes into the server's prefix-notation domain format.
type Condition struct {
	field    string
	operator string
	value    interface{}
	logic    string // "&", "|" or "!" for combined conditions
	children []*Condition
}

// term builds a leaf condition.
func term(field, operator string, value interface{}) *Condition {
	return &Condition{field: field, operator: operator, value: value}
}

// Eq matches records whose field equals value.
func Eq(field string, value interface{}) *Condition { return term(field, "=", value) }

// NotEq matches records whose field differs from value.
func NotEq(field string, value interface{}) *Condition { return term(field, "!=", value) }

// Gt matches records whose field is greater than value.
func Gt(field string, value interface{}) *Condition { return term(field, ">", value) }

// Gte matches records whose field is greater than or equal to value.
func Gte(field string, value interface{}) *Condition { return term(field, ">=", value) }

// Lt matches records whose field is less than value.
func Lt(field string, value interface{}) *Condition { return term(field, "<", value) }

// Lte matches records whose field is less than or equal to value.
func Lte(field string, value interface{}) *Condition { return term(field, "<=", value) }

// Like matches records whose field matches the pattern, case sensitive.
func Like(field string, pattern string) *Condition { return term(field, "like", pattern) }

// ILike matches records whose field matches the pattern, case insensitive.
func ILike(field string, pattern string) *Condition { return term(field, "ilike", pattern) }

// In matches records whose field is one of the given values.
func In(field string, values []interface{}) *Condition { return term(field, "in", values) }

// And combines this condition with others; all must match.
func (c *Condition) And(conditions ...*Condition) *Condition {
	return &Condition{logic: "&", children: append([]*Condition{c}, conditions...)}
}

// Or combines this condition with others; any may match.
func (c *Condition) Or(conditions ...*Condition) *Condition {
	return &Condition{logic: "|", children: append([]*Condition{c}, conditions...)}
}

// Not negates this condition.
func (c *Condition) Not() *Condition {
	return &Condition{logic: "!", children: []*Condition{c}}
}

// Domain encodes the condition into the wire domain. A nil condition
// yields the empty domain matching every record.
func (c *Condition) Domain() []interface{} {
	if c == nil {
		return []interface{}{}
	}
	return c.wire()
}

func (c *Condition) wire() []interface{} {
	if c.logic == "" {
		return []interface{}{[]interface{}{c.field, c.operator, c.value}}
	}
	var out []interface{}
	if c.logic == "!" {
		out = append(out, c.logic)
		return append(out, c.children[0].wire()...)
	}
	// Prefix notation: n children need n-1 operators.
	for i := 0; i < len(c.children)-1; i++ {
		out = append(out, c.logic)
	}
	for _, child := range c.children {
		out = append(out, child.wire()...)
	}
	return out
}
