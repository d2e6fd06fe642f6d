package types

import (
	"sort"
	"strconv"
)

// DirectoryType is the content type recorded for directory-shaped content.
const DirectoryType = "inode/directory"

const (
	FieldId          = "id"
	FieldFile        = "file"
	FieldDescription = "description"
	FieldSource      = "source"
	FieldTopics      = "topics"
	FieldParent      = "parent"
)

// FixedFields are the first-class attributes of a dataset record. Extra
// attributes never use these names.
var FixedFields = []string{FieldId, FieldFile, FieldDescription, FieldSource, FieldTopics, FieldParent}

func IsFixedField(name string) bool {
	for _, f := range FixedFields {
		if f == name {
			return true
		}
	}
	return false
}

type Content struct {
	Cid  string
	Type string
}

// DatasetRevision is one immutable version of a dataset's metadata.
type DatasetRevision struct {
	Id          int64
	File        string
	Description *string
	Source      *string
	Topics      []string
	Extra       map[string]interface{}
	Parent      *int64
}

// Fields holds the values supplied for a new revision. Nil members are
// inherited from the parent revision, or left empty on a root.
type Fields struct {
	File        *string
	Description *string
	Source      *string
	Topics      []string
	Extra       map[string]interface{}
}

// Record is the flat boundary shape of a revision: the fixed fields are
// always present and every extra attribute is merged alongside them.
type Record map[string]interface{}

func (r *DatasetRevision) Record() Record {
	rec := make(Record, len(r.Extra)+len(FixedFields))
	for k, v := range r.Extra {
		rec[k] = v
	}

	rec[FieldId] = strconv.FormatInt(r.Id, 10)
	rec[FieldFile] = r.File
	rec[FieldDescription] = nullableString(r.Description)
	rec[FieldSource] = nullableString(r.Source)
	rec[FieldTopics] = NormalizeTopics(r.Topics)
	if r.Parent != nil {
		rec[FieldParent] = strconv.FormatInt(*r.Parent, 10)
	} else {
		rec[FieldParent] = nil
	}
	return rec
}

// NormalizeTopics collapses duplicates and sorts, so a topic set has exactly
// one stored and serialized form.
func NormalizeTopics(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func StringPtr(s string) *string {
	return &s
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
