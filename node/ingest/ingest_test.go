package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"comlake-node/node/catalog"
	"comlake-node/store"
	"comlake-node/types"
	"comlake-node/utils"

	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *catalog.CatalogSvc) {
	t.Helper()

	backend := store.NewLocalBackend("")
	require.NoError(t, backend.Open())
	t.Cleanup(func() { _ = backend.Close() })

	cat, err := catalog.Open(context.Background(), catalog.Config{
		Driver: "sqlite3",
		Conn:   filepath.Join(t.TempDir(), "catalog.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	return NewOrchestrator(store.NewStoreManager([]store.StoreBackend{backend}), cat), cat
}

func sampleMetadata(length int) map[string]interface{} {
	return map[string]interface{}{
		"length": length,
		"type":   "text/csv",
		"name":   "weather.csv",
		"source": "noaa",
		"topics": []string{"climate", "weather"},
		"lang":   "en",
	}
}

func TestIngestRoot(t *testing.T) {
	ctx := context.Background()
	o, cat := newTestOrchestrator(t)

	payload := []byte("a,b\n1,2\n")
	out, err := o.Ingest(ctx, Request{Metadata: sampleMetadata(len(payload)), Payload: bytes.NewReader(payload)})
	require.NoError(t, err)

	expected, err := utils.CalculateCid(payload)
	require.NoError(t, err)
	require.Equal(t, expected.String(), out.Cid)
	require.Equal(t, "1", out.Id)

	revs, err := cat.Search(ctx, catalog.MatchAll{})
	require.NoError(t, err)
	require.Len(t, revs, 1)
	rec := revs[0].Record()
	require.Equal(t, out.Cid, rec["file"])
	require.Equal(t, "noaa", rec["source"])
	require.Equal(t, []string{"climate", "weather"}, rec["topics"])
	require.Equal(t, "weather.csv", rec["name"])
	require.Equal(t, json.Number("8"), rec["length"])
	require.Equal(t, "en", rec["lang"])
	require.Nil(t, rec["description"])
	require.Nil(t, rec["parent"])

	r, err := o.Fetch(ctx, out.Cid)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func TestIngestSameBytesTwice(t *testing.T) {
	ctx := context.Background()
	o, cat := newTestOrchestrator(t)

	payload := []byte("same")
	first, err := o.Ingest(ctx, Request{Metadata: sampleMetadata(len(payload)), Payload: bytes.NewReader(payload)})
	require.NoError(t, err)
	second, err := o.Ingest(ctx, Request{Metadata: sampleMetadata(len(payload)), Payload: bytes.NewReader(payload)})
	require.NoError(t, err)

	require.Equal(t, first.Cid, second.Cid)
	require.NotEqual(t, first.Id, second.Id)

	revs, err := cat.Search(ctx, catalog.Compare{Field: "file", Op: catalog.OpEq, Value: first.Cid})
	require.NoError(t, err)
	require.Len(t, revs, 2)
}

func TestIngestReportsEveryMissingField(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	md := sampleMetadata(3)
	delete(md, "source")
	delete(md, "topics")
	_, err := o.Ingest(context.Background(), Request{Metadata: md, Payload: bytes.NewReader([]byte("abc"))})
	require.ErrorIs(t, err, types.ErrValidation)

	var missing *types.MissingMetadataError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []string{"source", "topics"}, missing.Missing)

	_, err = o.Ingest(context.Background(), Request{Metadata: map[string]interface{}{}, Payload: bytes.NewReader([]byte("abc"))})
	require.ErrorAs(t, err, &missing)
	require.Equal(t, RequiredFields, missing.Missing)
}

func TestIngestInvalidValues(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	for name, mutate := range map[string]func(map[string]interface{}){
		"negative length": func(md map[string]interface{}) { md["length"] = -1 },
		"text length":     func(md map[string]interface{}) { md["length"] = "three" },
		"numeric source":  func(md map[string]interface{}) { md["source"] = 7 },
		"topic string":    func(md map[string]interface{}) { md["topics"] = "climate" },
		"bad parent":      func(md map[string]interface{}) { md["parent"] = "root" },
	} {
		md := sampleMetadata(3)
		mutate(md)
		_, err := o.Ingest(context.Background(), Request{Metadata: md, Payload: bytes.NewReader([]byte("abc"))})
		require.ErrorIs(t, err, types.ErrValidation, name)
	}
}

func TestIngestEmptyPayload(t *testing.T) {
	o, cat := newTestOrchestrator(t)

	_, err := o.Ingest(context.Background(), Request{Metadata: sampleMetadata(0), Payload: bytes.NewReader(nil)})
	require.ErrorIs(t, err, types.ErrEmptyInput)

	_, err = o.Ingest(context.Background(), Request{Metadata: sampleMetadata(0)})
	require.ErrorIs(t, err, types.ErrEmptyInput)

	revs, err := cat.Search(context.Background(), catalog.MatchAll{})
	require.NoError(t, err)
	require.Empty(t, revs)
}

func TestIngestLengthMismatch(t *testing.T) {
	o, cat := newTestOrchestrator(t)

	_, err := o.Ingest(context.Background(), Request{Metadata: sampleMetadata(10), Payload: bytes.NewReader([]byte("abc"))})
	require.ErrorIs(t, err, types.ErrValidation)

	revs, err := cat.Search(context.Background(), catalog.MatchAll{})
	require.NoError(t, err)
	require.Empty(t, revs)
}

func TestIngestRevision(t *testing.T) {
	ctx := context.Background()
	o, cat := newTestOrchestrator(t)

	root, err := o.Ingest(ctx, Request{Metadata: sampleMetadata(2), Payload: bytes.NewReader([]byte("v1"))})
	require.NoError(t, err)

	md := sampleMetadata(2)
	md["parent"] = root.Id
	md["description"] = "second cut"
	md["id"] = "99"
	md["cid"] = "bafyfake"
	child, err := o.Ingest(ctx, Request{Metadata: md, Payload: bytes.NewReader([]byte("v2"))})
	require.NoError(t, err)
	require.Equal(t, "2", child.Id)

	revs, err := cat.Lineage(ctx, 2)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	require.Equal(t, child.Cid, revs[0].File)
	require.Equal(t, "second cut", *revs[0].Description)
	require.Equal(t, root.Cid, revs[1].File)
	require.NotContains(t, revs[0].Extra, "cid")

	records, err := o.Lineage(ctx, child.Id)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "1", records[0]["parent"])

	md = sampleMetadata(2)
	md["parent"] = "42"
	_, err = o.Ingest(ctx, Request{Metadata: md, Payload: bytes.NewReader([]byte("v3"))})
	require.ErrorIs(t, err, types.ErrNotFound)
}

type recordingCatalog struct {
	catalog.CatalogSvcApi
	contentTypes map[string]string
}

func (r *recordingCatalog) RegisterContent(ctx context.Context, c string, contentType string) error {
	r.contentTypes[c] = contentType
	return r.CatalogSvcApi.RegisterContent(ctx, c, contentType)
}

func TestIngestDirectory(t *testing.T) {
	ctx := context.Background()
	o, cat := newTestOrchestrator(t)
	recorder := &recordingCatalog{CatalogSvcApi: cat, contentTypes: make(map[string]string)}
	o.catalog = recorder

	md := sampleMetadata(5)
	md["type"] = "multipart/form-data"
	out, err := o.Ingest(ctx, Request{Metadata: md, Entries: []store.DirEntry{
		{Path: "a.csv", Content: bytes.NewReader([]byte("ab"))},
		{Path: "sub/b.csv", Content: bytes.NewReader([]byte("cde"))},
	}})
	require.NoError(t, err)
	require.Equal(t, types.DirectoryType, recorder.contentTypes[out.Cid])

	records, err := o.Find(ctx, []byte(`["=", "file", "`+out.Cid+`"]`))
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = o.Ingest(ctx, Request{Metadata: sampleMetadata(0), Entries: []store.DirEntry{}})
	require.ErrorIs(t, err, types.ErrEmptyInput)
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t)

	_, err := o.Ingest(ctx, Request{Metadata: sampleMetadata(1), Payload: bytes.NewReader([]byte("x"))})
	require.NoError(t, err)
	md := sampleMetadata(1)
	md["topics"] = []interface{}{"ocean"}
	_, err = o.Ingest(ctx, Request{Metadata: md, Payload: bytes.NewReader([]byte("y"))})
	require.NoError(t, err)

	records, err := o.Find(ctx, []byte(`["has", "topics", "ocean"]`))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "2", records[0]["id"])

	records, err = o.Find(ctx, []byte(`true`))
	require.NoError(t, err)
	require.Len(t, records, 2)

	_, err = o.Find(ctx, []byte(`["source", "=", "noaa"]`))
	require.ErrorIs(t, err, types.ErrQuery)
}

func TestFetchMiss(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	c, err := utils.CalculateCid([]byte("never stored"))
	require.NoError(t, err)
	_, err = o.Fetch(context.Background(), c.String())
	require.ErrorIs(t, err, types.ErrNotFound)

	_, err = o.Fetch(context.Background(), "not-a-cid")
	require.ErrorIs(t, err, types.ErrValidation)
}
