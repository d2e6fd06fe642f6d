package ingest

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"comlake-node/node/catalog"
	"comlake-node/node/query"
	"comlake-node/store"
	"comlake-node/types"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("ingest")

const (
	FieldLength = "length"
	FieldType   = "type"
	FieldName   = "name"
)

// RequiredFields must be present on every ingestion request, in the order
// they are reported when missing.
var RequiredFields = []string{FieldLength, FieldType, FieldName, types.FieldSource, types.FieldTopics}

// keys a caller cannot set through metadata
var reservedKeys = map[string]struct{}{
	"cid":           {},
	types.FieldId:   {},
	types.FieldFile: {},
}

// Request is one ingestion: mapped metadata plus either a single payload or a
// set of directory entries.
type Request struct {
	Metadata map[string]interface{}
	Payload  io.Reader
	Entries  []store.DirEntry
}

func (r *Request) isDirectory() bool {
	return r.Entries != nil
}

type Outcome struct {
	Cid string `json:"cid"`
	Id  string `json:"id"`
}

type IngestSvcApi interface {
	Ingest(ctx context.Context, req Request) (*Outcome, error)
	Fetch(ctx context.Context, c string) (io.ReadCloser, error)
	Find(ctx context.Context, doc []byte) ([]types.Record, error)
	Lineage(ctx context.Context, id string) ([]types.Record, error)
}

// Orchestrator drives a request through validation, content storage and
// cataloging. Steps are not retried and earlier effects are not undone: a
// stored but uncataloged object is left for a later ingestion to reference.
type Orchestrator struct {
	contents store.ContentStore
	catalog  catalog.CatalogSvcApi
}

var _ IngestSvcApi = (*Orchestrator)(nil)

func NewOrchestrator(contents store.ContentStore, cat catalog.CatalogSvcApi) *Orchestrator {
	return &Orchestrator{
		contents: contents,
		catalog:  cat,
	}
}

type metadata struct {
	length      int64
	contentType string
	source      string
	topics      []string
	description *string
	parent      *int64
	extra       map[string]interface{}
}

func (o *Orchestrator) Ingest(ctx context.Context, req Request) (*Outcome, error) {
	md, err := validate(req.Metadata)
	if err != nil {
		return nil, err
	}
	if req.isDirectory() {
		md.contentType = types.DirectoryType
	}

	c, size, err := o.storeContent(ctx, req)
	if err != nil {
		return nil, err
	}
	if size != md.length {
		log.Warnf("length mismatch for %v: declared %d, received %d", c, md.length, size)
		return nil, types.Wrapf(types.ErrValidation, "declared length %d, received %d bytes", md.length, size)
	}

	if err := o.catalog.RegisterContent(ctx, c.String(), md.contentType); err != nil {
		return nil, err
	}

	file := c.String()
	fields := types.Fields{
		File:        &file,
		Description: md.description,
		Source:      &md.source,
		Topics:      md.topics,
		Extra:       md.extra,
	}
	var id int64
	if md.parent != nil {
		id, err = o.catalog.InsertRevision(ctx, *md.parent, fields)
	} else {
		id, err = o.catalog.InsertRoot(ctx, fields)
	}
	if err != nil {
		return nil, err
	}

	log.Infof("ingested %v as revision %d", c, id)
	return &Outcome{Cid: file, Id: strconv.FormatInt(id, 10)}, nil
}

func (o *Orchestrator) storeContent(ctx context.Context, req Request) (cid.Cid, int64, error) {
	if req.isDirectory() {
		counted := make([]store.DirEntry, len(req.Entries))
		counters := make([]*countingReader, len(req.Entries))
		for i, e := range req.Entries {
			counters[i] = &countingReader{r: e.Content}
			counted[i] = store.DirEntry{Path: e.Path, Content: counters[i]}
		}
		c, err := o.contents.PutDirectory(ctx, counted)
		if err != nil {
			return cid.Undef, 0, err
		}
		var size int64
		for _, cr := range counters {
			size += cr.n
		}
		return c, size, nil
	}

	if req.Payload == nil {
		return cid.Undef, 0, types.ErrEmptyInput
	}
	cr := &countingReader{r: req.Payload}
	c, err := o.contents.Put(ctx, cr)
	if err != nil {
		return cid.Undef, 0, err
	}
	return c, cr.n, nil
}

// Fetch returns the stored bytes of c.
func (o *Orchestrator) Fetch(ctx context.Context, c string) (io.ReadCloser, error) {
	parsed, err := cid.Decode(strings.TrimSpace(c))
	if err != nil {
		return nil, types.Wrapf(types.ErrValidation, "invalid cid %q: %v", c, err)
	}
	return o.contents.Get(ctx, parsed)
}

// Find translates a query document and returns the matching records.
func (o *Orchestrator) Find(ctx context.Context, doc []byte) ([]types.Record, error) {
	p, err := query.Translate(doc)
	if err != nil {
		return nil, err
	}
	revs, err := o.catalog.Search(ctx, p)
	if err != nil {
		return nil, err
	}
	return records(revs), nil
}

func (o *Orchestrator) Lineage(ctx context.Context, id string) ([]types.Record, error) {
	n, err := catalog.ParseId(id)
	if err != nil {
		return nil, err
	}
	revs, err := o.catalog.Lineage(ctx, n)
	if err != nil {
		return nil, err
	}
	return records(revs), nil
}

func records(revs []types.DatasetRevision) []types.Record {
	out := make([]types.Record, 0, len(revs))
	for i := range revs {
		out = append(out, revs[i].Record())
	}
	return out
}

// validate checks the required fields, reporting all absent ones together,
// and splits the remaining metadata into fixed fields and extra attributes.
func validate(in map[string]interface{}) (*metadata, error) {
	var missing []string
	for _, f := range RequiredFields {
		if v, ok := in[f]; !ok || v == nil {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &types.MissingMetadataError{Missing: missing}
	}

	md := &metadata{extra: make(map[string]interface{})}
	var err error
	if md.length, err = lengthValue(in[FieldLength]); err != nil {
		return nil, err
	}
	if md.contentType, err = stringValue(FieldType, in[FieldType]); err != nil {
		return nil, err
	}
	name, err := stringValue(FieldName, in[FieldName])
	if err != nil {
		return nil, err
	}
	if md.source, err = stringValue(types.FieldSource, in[types.FieldSource]); err != nil {
		return nil, err
	}
	if md.topics, err = topicsValue(in[types.FieldTopics]); err != nil {
		return nil, err
	}

	md.extra[FieldName] = name
	md.extra[FieldLength] = md.length

	for k, v := range in {
		if _, ok := reservedKeys[k]; ok {
			log.Debugf("ignoring reserved metadata key %s", k)
			continue
		}
		switch k {
		case FieldLength, FieldType, FieldName, types.FieldSource, types.FieldTopics:
		case types.FieldDescription:
			if v == nil {
				continue
			}
			d, err := stringValue(k, v)
			if err != nil {
				return nil, err
			}
			md.description = &d
		case types.FieldParent:
			if v == nil {
				continue
			}
			p, err := parentValue(v)
			if err != nil {
				return nil, err
			}
			md.parent = &p
		default:
			md.extra[k] = v
		}
	}
	return md, nil
}

func stringValue(field string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", types.Wrapf(types.ErrValidation, "%s must be a string", field)
	}
	return s, nil
}

func lengthValue(v interface{}) (int64, error) {
	var n int64
	switch l := v.(type) {
	case int:
		n = int64(l)
	case int64:
		n = l
	case json.Number:
		parsed, err := l.Int64()
		if err != nil {
			return 0, types.Wrapf(types.ErrValidation, "length %q is not an integer", l)
		}
		n = parsed
	case float64:
		if l != math.Trunc(l) || l > math.MaxInt64 {
			return 0, types.Wrapf(types.ErrValidation, "length %v is not an integer", l)
		}
		n = int64(l)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(l), 10, 64)
		if err != nil {
			return 0, types.Wrapf(types.ErrValidation, "length %q is not an integer", l)
		}
		n = parsed
	default:
		return 0, types.Wrapf(types.ErrValidation, "length must be an integer")
	}
	if n < 0 {
		return 0, types.Wrapf(types.ErrValidation, "length %d is negative", n)
	}
	return n, nil
}

func topicsValue(v interface{}) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return types.NormalizeTopics(t), nil
	case []interface{}:
		topics := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, types.Wrapf(types.ErrValidation, "topics must be strings")
			}
			topics = append(topics, s)
		}
		return types.NormalizeTopics(topics), nil
	default:
		return nil, types.Wrapf(types.ErrValidation, "topics must be a list of strings")
	}
}

func parentValue(v interface{}) (int64, error) {
	switch p := v.(type) {
	case int64:
		return p, nil
	case int:
		return int64(p), nil
	case json.Number:
		return catalog.ParseId(p.String())
	case string:
		return catalog.ParseId(p)
	default:
		return 0, types.Wrapf(types.ErrValidation, "parent must be a revision id")
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	if c.r == nil {
		return 0, io.EOF
	}
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
