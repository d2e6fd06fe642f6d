package catalog

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"comlake-node/types"

	jsoniter "github.com/json-iterator/go"
)

// Predicate selects dataset revisions. Predicates compile to SQL in which
// every caller supplied value, extra attribute names included, is a bind
// parameter; only whitelisted column names are written into the statement.
type Predicate interface {
	appendSQL(w *whereBuilder) error
}

type Op string

const (
	OpEq   Op = "="
	OpNe   Op = "!="
	OpLt   Op = "<"
	OpLe   Op = "<="
	OpGt   Op = ">"
	OpGe   Op = ">="
	OpLike Op = "like"
)

func (op Op) sql() (string, bool) {
	switch op {
	case OpEq:
		return "=", true
	case OpNe:
		return "<>", true
	case OpLt, OpLe, OpGt, OpGe:
		return string(op), true
	case OpLike:
		return "LIKE", true
	default:
		return "", false
	}
}

// MatchAll selects every revision.
type MatchAll struct{}

// Compare tests a field against a value. Fields outside the fixed set
// address keys of the extra attributes.
type Compare struct {
	Field string
	Op    Op
	Value interface{}
}

// IsNull holds when a nullable field is unset or an extra key is absent.
type IsNull struct {
	Field string
}

// HasTopic holds when Topic is in the revision's topic set.
type HasTopic struct {
	Topic string
}

type And []Predicate

type Or []Predicate

type Not struct {
	Predicate Predicate
}

type whereBuilder struct {
	impl Implementation
	sql  strings.Builder
	args []interface{}
}

func (w *whereBuilder) write(s string) {
	w.sql.WriteString(s)
}

func (w *whereBuilder) bind(v interface{}) {
	w.sql.WriteByte('?')
	w.args = append(w.args, v)
}

// compileWhere renders p as a WHERE clause body plus its arguments.
func compileWhere(impl Implementation, p Predicate) (string, []interface{}, error) {
	if p == nil {
		p = MatchAll{}
	}
	w := &whereBuilder{impl: impl}
	if err := p.appendSQL(w); err != nil {
		return "", nil, err
	}
	return w.sql.String(), w.args, nil
}

func (MatchAll) appendSQL(w *whereBuilder) error {
	w.write("(1 = 1)")
	return nil
}

func (c Compare) appendSQL(w *whereBuilder) error {
	op, ok := c.Op.sql()
	if !ok {
		return types.Wrapf(types.ErrQuery, "unknown operator %q", c.Op)
	}

	switch c.Field {
	case types.FieldId, types.FieldParent:
		if c.Op == OpLike {
			return types.Wrapf(types.ErrQuery, "%s does not support like", c.Field)
		}
		n, err := integerValue(c.Value)
		if err != nil {
			return types.Wrapf(types.ErrQuery, "%s: %v", c.Field, err)
		}
		w.write("(" + c.Field + " " + op + " ")
		w.bind(n)
		w.write(")")
		return nil
	case types.FieldFile, types.FieldDescription, types.FieldSource:
		s, ok := c.Value.(string)
		if !ok {
			return types.Wrapf(types.ErrQuery, "%s compares against strings only", c.Field)
		}
		w.write("(" + c.Field + " " + op + " ")
		w.bind(s)
		w.write(")")
		return nil
	case types.FieldTopics:
		return types.Wrapf(types.ErrQuery, "topics is a set, test membership instead")
	}

	if c.Value == nil {
		return types.Wrapf(types.ErrQuery, "compare %s against null with a null test", c.Field)
	}
	key, err := extraKey(w.impl, c.Field)
	if err != nil {
		return err
	}

	if c.Op == OpLike {
		s, ok := c.Value.(string)
		if !ok {
			return types.Wrapf(types.ErrQuery, "like needs a string pattern")
		}
		if w.impl == Postgres {
			w.write("((extra ->> CAST(")
			w.bind(key)
			w.write(" AS TEXT)) LIKE ")
		} else {
			w.write("(json_extract(extra, ")
			w.bind(key)
			w.write(") LIKE ")
		}
		w.bind(s)
		w.write(")")
		return nil
	}

	encoded, err := jsoniter.MarshalToString(c.Value)
	if err != nil {
		return types.Wrapf(types.ErrQuery, "%s: %v", c.Field, err)
	}
	if w.impl == Postgres {
		w.write("((extra -> CAST(")
		w.bind(key)
		w.write(" AS TEXT)) " + op + " CAST(")
		w.bind(encoded)
		w.write(" AS JSONB))")
	} else {
		w.write("(json_extract(extra, ")
		w.bind(key)
		w.write(") " + op + " json_extract(")
		w.bind(encoded)
		w.write(", '$'))")
	}
	return nil
}

func (n IsNull) appendSQL(w *whereBuilder) error {
	switch n.Field {
	case types.FieldId, types.FieldFile, types.FieldDescription, types.FieldSource, types.FieldParent:
		w.write("(" + n.Field + " IS NULL)")
		return nil
	case types.FieldTopics:
		return types.Wrapf(types.ErrQuery, "topics is never null")
	}

	key, err := extraKey(w.impl, n.Field)
	if err != nil {
		return err
	}
	if w.impl == Postgres {
		w.write("(COALESCE(extra -> CAST(")
		w.bind(key)
		w.write(" AS TEXT), 'null'::jsonb) = 'null'::jsonb)")
	} else {
		w.write("(json_extract(extra, ")
		w.bind(key)
		w.write(") IS NULL)")
	}
	return nil
}

func (h HasTopic) appendSQL(w *whereBuilder) error {
	if w.impl == Postgres {
		w.write("(topics @> jsonb_build_array(CAST(")
		w.bind(h.Topic)
		w.write(" AS TEXT)))")
	} else {
		w.write("(EXISTS (SELECT 1 FROM json_each(dataset.topics) WHERE json_each.value = ")
		w.bind(h.Topic)
		w.write("))")
	}
	return nil
}

func (a And) appendSQL(w *whereBuilder) error {
	return appendJoined(w, a, " AND ", "(1 = 1)")
}

func (o Or) appendSQL(w *whereBuilder) error {
	return appendJoined(w, o, " OR ", "(1 = 0)")
}

func appendJoined(w *whereBuilder, ps []Predicate, sep string, empty string) error {
	if len(ps) == 0 {
		w.write(empty)
		return nil
	}
	w.write("(")
	for i, p := range ps {
		if p == nil {
			return types.Wrapf(types.ErrQuery, "empty operand")
		}
		if i > 0 {
			w.write(sep)
		}
		if err := p.appendSQL(w); err != nil {
			return err
		}
	}
	w.write(")")
	return nil
}

func (n Not) appendSQL(w *whereBuilder) error {
	if n.Predicate == nil {
		return types.Wrapf(types.ErrQuery, "not needs an operand")
	}
	w.write("(NOT ")
	if err := n.Predicate.appendSQL(w); err != nil {
		return err
	}
	w.write(")")
	return nil
}

// extraKey is the bind value addressing an extra attribute: the bare key for
// postgres json operators, a quoted JSON path for sqlite json_extract.
func extraKey(impl Implementation, field string) (string, error) {
	if field == "" {
		return "", types.Wrapf(types.ErrQuery, "empty field name")
	}
	if impl == Postgres {
		return field, nil
	}
	if strings.ContainsAny(field, "\"\\") {
		return "", types.Wrapf(types.ErrQuery, "unsupported character in field %q", field)
	}
	return `$."` + field + `"`, nil
}

func integerValue(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		return strconv.ParseInt(n.String(), 10, 64)
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return 0, strconv.ErrSyntax
		}
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, strconv.ErrSyntax
	}
}
