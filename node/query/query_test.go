package query

import (
	"encoding/json"
	"testing"

	"comlake-node/node/catalog"
	"comlake-node/types"

	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	cases := []struct {
		doc  string
		want catalog.Predicate
	}{
		{`true`, catalog.MatchAll{}},
		{`false`, catalog.Or{}},
		{`["all"]`, catalog.MatchAll{}},
		{`["=", "source", "web"]`, catalog.Compare{Field: "source", Op: catalog.OpEq, Value: "web"}},
		{`["LIKE", "file", "bafy%"]`, catalog.Compare{Field: "file", Op: catalog.OpLike, Value: "bafy%"}},
		{`[">=", "rows", 10]`, catalog.Compare{Field: "rows", Op: catalog.OpGe, Value: json.Number("10")}},
		{`["=", "parent", null]`, catalog.IsNull{Field: "parent"}},
		{`["!=", "lang", null]`, catalog.Not{Predicate: catalog.IsNull{Field: "lang"}}},
		{`["has", "topics", "climate"]`, catalog.HasTopic{Topic: "climate"}},
		{
			`["and", ["has", "topics", "a"], ["or", ["=", "lang", "en"], ["not", ["<", "id", 3]]]]`,
			catalog.And{
				catalog.HasTopic{Topic: "a"},
				catalog.Or{
					catalog.Compare{Field: "lang", Op: catalog.OpEq, Value: "en"},
					catalog.Not{Predicate: catalog.Compare{Field: "id", Op: catalog.OpLt, Value: json.Number("3")}},
				},
			},
		},
		{`["and"]`, catalog.And{}},
	}
	for _, tc := range cases {
		t.Run(tc.doc, func(t *testing.T) {
			p, err := Translate([]byte(tc.doc))
			require.NoError(t, err)
			require.Equal(t, tc.want, p)
		})
	}
}

func TestTranslateMalformed(t *testing.T) {
	for _, doc := range []string{
		``,
		`   `,
		`{"source": "web"}`,
		`[]`,
		`[1, 2]`,
		`["all", 1]`,
		`["xor", true, false]`,
		`["not"]`,
		`["not", true, true]`,
		`["=", "source"]`,
		`["=", "", "web"]`,
		`["=", 3, "web"]`,
		`["<", "rows", null]`,
		`["=", "lang", ["en"]]`,
		`["=", "lang", {"en": 1}]`,
		`["has", "source", "web"]`,
		`["has", "topics", 3]`,
		`["and", ["=", "a"]]`,
		`"source = 'web'"`,
		`[`,
	} {
		_, err := Translate([]byte(doc))
		require.ErrorIs(t, err, types.ErrQuery, doc)
	}
}
