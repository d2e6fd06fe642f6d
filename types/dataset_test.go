package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordMergesExtra(t *testing.T) {
	parent := int64(7)
	rev := DatasetRevision{
		Id:          12,
		File:        "bafyCID1",
		Description: StringPtr("d"),
		Topics:      []string{"b", "a", "b"},
		Extra:       map[string]interface{}{"lang": "en"},
		Parent:      &parent,
	}

	rec := rev.Record()
	require.Equal(t, "12", rec["id"])
	require.Equal(t, "bafyCID1", rec["file"])
	require.Equal(t, "d", rec["description"])
	require.Nil(t, rec["source"])
	require.Contains(t, rec, "source")
	require.Equal(t, []string{"a", "b"}, rec["topics"])
	require.Equal(t, "7", rec["parent"])
	require.Equal(t, "en", rec["lang"])
}

func TestRecordRootHasNullParent(t *testing.T) {
	rev := DatasetRevision{Id: 1, File: "bafyCID1"}
	rec := rev.Record()
	require.Contains(t, rec, "parent")
	require.Nil(t, rec["parent"])
	require.Equal(t, []string{}, rec["topics"])
}

func TestMissingMetadataIsValidation(t *testing.T) {
	var err error = &MissingMetadataError{Missing: []string{"source", "topics"}}
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "missing metadata: source, topics", err.Error())
}

func TestWrappedKind(t *testing.T) {
	err := Wrapf(ErrNotFound, "dataset %d", 3)
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrDatabase)
}
