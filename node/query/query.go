package query

import (
	"bytes"
	"encoding/json"
	"strings"

	"comlake-node/node/catalog"
	"comlake-node/types"

	logging "github.com/ipfs/go-log/v2"
	jsoniter "github.com/json-iterator/go"
)

var log = logging.Logger("query")

var codec = jsoniter.Config{
	UseNumber: true,
}.Froze()

// Translate converts a JSON query document into a catalog predicate.
//
//	["and", q...]  ["or", q...]  ["not", q]
//	[op, field, value]        op one of = != < <= > >= like
//	["=", field, null]        field is unset
//	["has", "topics", topic]  topic membership
//	["all"] or true           every revision
func Translate(doc []byte) (catalog.Predicate, error) {
	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 {
		return nil, types.Wrapf(types.ErrQuery, "empty query")
	}

	var node interface{}
	if err := codec.Unmarshal(doc, &node); err != nil {
		return nil, types.Wrapf(types.ErrQuery, "invalid json: %v", err)
	}
	p, err := translate(node)
	if err != nil {
		log.Debugf("rejected query %s: %v", doc, err)
		return nil, err
	}
	return p, nil
}

func translate(node interface{}) (catalog.Predicate, error) {
	if b, ok := node.(bool); ok {
		if !b {
			return catalog.Or{}, nil
		}
		return catalog.MatchAll{}, nil
	}

	list, ok := node.([]interface{})
	if !ok || len(list) == 0 {
		return nil, types.Wrapf(types.ErrQuery, "a query is a non-empty array, got %v", node)
	}
	head, ok := list[0].(string)
	if !ok {
		return nil, types.Wrapf(types.ErrQuery, "operator must be a string, got %v", list[0])
	}
	head = strings.ToLower(head)
	args := list[1:]

	switch head {
	case "all":
		if len(args) != 0 {
			return nil, types.Wrapf(types.ErrQuery, "all takes no operands")
		}
		return catalog.MatchAll{}, nil
	case "and", "or":
		ps := make([]catalog.Predicate, 0, len(args))
		for _, a := range args {
			p, err := translate(a)
			if err != nil {
				return nil, err
			}
			ps = append(ps, p)
		}
		if head == "and" {
			return catalog.And(ps), nil
		}
		return catalog.Or(ps), nil
	case "not":
		if len(args) != 1 {
			return nil, types.Wrapf(types.ErrQuery, "not takes one operand")
		}
		p, err := translate(args[0])
		if err != nil {
			return nil, err
		}
		return catalog.Not{Predicate: p}, nil
	case "has":
		field, value, err := fieldValue(head, args)
		if err != nil {
			return nil, err
		}
		topic, ok := value.(string)
		if field != types.FieldTopics || !ok {
			return nil, types.Wrapf(types.ErrQuery, `has expects ["has", "topics", <string>]`)
		}
		return catalog.HasTopic{Topic: topic}, nil
	}

	op := catalog.Op(head)
	switch op {
	case catalog.OpEq, catalog.OpNe, catalog.OpLt, catalog.OpLe, catalog.OpGt, catalog.OpGe, catalog.OpLike:
	default:
		return nil, types.Wrapf(types.ErrQuery, "unknown operator %q", head)
	}

	field, value, err := fieldValue(head, args)
	if err != nil {
		return nil, err
	}
	if value == nil {
		switch op {
		case catalog.OpEq:
			return catalog.IsNull{Field: field}, nil
		case catalog.OpNe:
			return catalog.Not{Predicate: catalog.IsNull{Field: field}}, nil
		default:
			return nil, types.Wrapf(types.ErrQuery, "%s against null", head)
		}
	}
	switch value.(type) {
	case string, json.Number, bool:
	default:
		return nil, types.Wrapf(types.ErrQuery, "%s compares against a scalar", field)
	}
	return catalog.Compare{Field: field, Op: op, Value: value}, nil
}

func fieldValue(head string, args []interface{}) (string, interface{}, error) {
	if len(args) != 2 {
		return "", nil, types.Wrapf(types.ErrQuery, "%s takes a field and a value", head)
	}
	field, ok := args[0].(string)
	if !ok || field == "" {
		return "", nil, types.Wrapf(types.ErrQuery, "%s: field must be a non-empty string", head)
	}
	return field, args[1], nil
}
