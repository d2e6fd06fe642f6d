package catalog

import (
	"bytes"
	"context"
	"database/sql"
	"strings"

	"comlake-node/types"

	logging "github.com/ipfs/go-log/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/zeebo/errs"
	"golang.org/x/xerrors"
)

var log = logging.Logger("catalog")

var codec = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

const datasetColumns = "dataset.id, dataset.file, dataset.description, dataset.source, dataset.topics, dataset.extra, dataset.parent"

type CatalogSvcApi interface {
	RegisterContent(ctx context.Context, cid string, contentType string) error
	InsertRoot(ctx context.Context, fields types.Fields) (int64, error)
	InsertRevision(ctx context.Context, parent int64, fields types.Fields) (int64, error)
	Search(ctx context.Context, p Predicate) ([]types.DatasetRevision, error)
	Lineage(ctx context.Context, id int64) ([]types.DatasetRevision, error)
	Clear(ctx context.Context) error
}

type Config struct {
	Driver       string
	Conn         string
	MaxOpenConns int
}

// CatalogSvc records content entries and dataset revisions in a relational
// database. It is safe for concurrent use.
type CatalogSvc struct {
	db   *sql.DB
	impl Implementation
}

var _ CatalogSvcApi = (*CatalogSvc)(nil)

// Open connects to the configured database and creates the schema when it is
// missing.
func Open(ctx context.Context, cfg Config) (*CatalogSvc, error) {
	impl := ImplementationForDriver(cfg.Driver)
	if impl == Unknown {
		return nil, types.Wrapf(types.ErrInvalidParameters, "unsupported catalog driver %q", cfg.Driver)
	}
	if cfg.Conn == "" {
		return nil, types.Wrapf(types.ErrInvalidParameters, "empty catalog connection")
	}

	dsn := cfg.Conn
	if impl == Sqlite {
		dsn = sqliteDSN(cfg.Conn)
	}
	db, err := sql.Open(impl.Driver(), dsn)
	if err != nil {
		return nil, types.Wrap(types.ErrDatabase, err)
	}

	maxOpen := cfg.MaxOpenConns
	if impl == Sqlite && maxOpen <= 0 {
		// a single writer connection keeps sqlite from returning SQLITE_BUSY
		maxOpen = 1
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}

	cs := New(db, impl)
	if err := cs.migrate(ctx); err != nil {
		return nil, errs.Combine(err, db.Close())
	}
	log.Infof("catalog opened, driver=%s", impl)
	return cs, nil
}

// New wraps an already opened database handle.
func New(db *sql.DB, impl Implementation) *CatalogSvc {
	return &CatalogSvc{
		db:   db,
		impl: impl,
	}
}

func (cs *CatalogSvc) Implementation() Implementation {
	return cs.impl
}

func (cs *CatalogSvc) migrate(ctx context.Context) error {
	if err := cs.db.PingContext(ctx); err != nil {
		return types.Wrap(types.ErrDatabase, err)
	}
	if _, err := cs.db.ExecContext(ctx, cs.impl.schema()); err != nil {
		return types.Wrapf(types.ErrDatabase, "create tables: %v", err)
	}
	return nil
}

func (cs *CatalogSvc) Close() error {
	return cs.db.Close()
}

// RegisterContent records that cid exists with the given type. Registering a
// cid again is a no-op and keeps the first type.
func (cs *CatalogSvc) RegisterContent(ctx context.Context, cid string, contentType string) error {
	if cid == "" {
		return types.Wrapf(types.ErrValidation, "empty cid")
	}

	_, err := cs.db.ExecContext(ctx, cs.impl.Rebind(
		`INSERT INTO content (cid, type) VALUES (?, ?) ON CONFLICT (cid) DO NOTHING`),
		cid, contentType)
	if err != nil {
		return types.Wrap(types.ErrDatabase, err)
	}
	log.Debugf("registered content %s type=%s", cid, contentType)
	return nil
}

func (cs *CatalogSvc) InsertRoot(ctx context.Context, fields types.Fields) (int64, error) {
	if fields.File == nil || *fields.File == "" {
		return 0, types.Wrapf(types.ErrValidation, "a root revision needs a file")
	}
	topics, extra, err := encodeFields(fields)
	if err != nil {
		return 0, err
	}
	if topics == nil {
		topics = "[]"
	}
	if extra == nil {
		extra = "{}"
	}

	var id int64
	err = cs.db.QueryRowContext(ctx, cs.impl.Rebind(
		`INSERT INTO dataset (file, description, source, topics, extra, parent)
		VALUES (?, ?, ?, ?, ?, NULL) RETURNING id`),
		*fields.File, nullString(fields.Description), nullString(fields.Source), topics, extra,
	).Scan(&id)
	if err != nil {
		return 0, types.Wrap(types.ErrDatabase, err)
	}
	log.Debugf("inserted root revision %d", id)
	return id, nil
}

// InsertRevision creates a child of parent. Fields left nil are copied from
// the parent row by the same statement that writes the child, so concurrent
// revisions of one parent each see a complete parent.
func (cs *CatalogSvc) InsertRevision(ctx context.Context, parent int64, fields types.Fields) (int64, error) {
	if fields.File != nil && *fields.File == "" {
		return 0, types.Wrapf(types.ErrValidation, "empty file")
	}
	topics, extra, err := encodeFields(fields)
	if err != nil {
		return 0, err
	}

	var file interface{}
	if fields.File != nil {
		file = *fields.File
	}

	var id int64
	err = cs.db.QueryRowContext(ctx, cs.impl.Rebind(
		`INSERT INTO dataset (file, description, source, topics, extra, parent)
		SELECT COALESCE(?, file), COALESCE(?, description), COALESCE(?, source),
			COALESCE(?, topics), COALESCE(?, extra), id
		FROM dataset WHERE id = ? RETURNING id`),
		file, nullString(fields.Description), nullString(fields.Source), topics, extra, parent,
	).Scan(&id)
	if xerrors.Is(err, sql.ErrNoRows) {
		return 0, types.Wrapf(types.ErrNotFound, "parent revision %d", parent)
	}
	if err != nil {
		return 0, types.Wrap(types.ErrDatabase, err)
	}
	log.Debugf("inserted revision %d of %d", id, parent)
	return id, nil
}

// Search returns every revision matching p in creation order.
func (cs *CatalogSvc) Search(ctx context.Context, p Predicate) ([]types.DatasetRevision, error) {
	where, args, err := compileWhere(cs.impl, p)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + datasetColumns + " FROM dataset WHERE " + where + " ORDER BY dataset.id"
	return cs.queryRevisions(ctx, cs.impl.Rebind(query), args...)
}

// Lineage returns the revision id followed by its ancestors up to the root.
func (cs *CatalogSvc) Lineage(ctx context.Context, id int64) ([]types.DatasetRevision, error) {
	query := `WITH RECURSIVE lineage (id, depth) AS (
			SELECT id, 0 FROM dataset WHERE id = ?
			UNION ALL
			SELECT dataset.parent, lineage.depth + 1
			FROM dataset JOIN lineage ON dataset.id = lineage.id
			WHERE dataset.parent IS NOT NULL
		)
		SELECT ` + datasetColumns + `
		FROM dataset JOIN lineage ON dataset.id = lineage.id
		ORDER BY lineage.depth`

	revisions, err := cs.queryRevisions(ctx, cs.impl.Rebind(query), id)
	if err != nil {
		return nil, err
	}
	if len(revisions) == 0 {
		return nil, types.Wrapf(types.ErrNotFound, "revision %d", id)
	}
	return revisions, nil
}

// Clear removes every content entry and revision and resets the id sequence.
func (cs *CatalogSvc) Clear(ctx context.Context) error {
	err := withTx(ctx, cs.db, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range cs.impl.clearStatements() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return types.Wrap(types.ErrDatabase, err)
	}
	log.Warn("catalog cleared")
	return nil
}

func (cs *CatalogSvc) queryRevisions(ctx context.Context, query string, args ...interface{}) (_ []types.DatasetRevision, err error) {
	rows, err := cs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.Wrap(types.ErrDatabase, err)
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	revisions := make([]types.DatasetRevision, 0)
	for rows.Next() {
		var (
			rev         types.DatasetRevision
			description sql.NullString
			source      sql.NullString
			topics      []byte
			extra       []byte
			parent      sql.NullInt64
		)
		if err := rows.Scan(&rev.Id, &rev.File, &description, &source, &topics, &extra, &parent); err != nil {
			return nil, types.Wrap(types.ErrDatabase, err)
		}
		if description.Valid {
			rev.Description = types.StringPtr(description.String)
		}
		if source.Valid {
			rev.Source = types.StringPtr(source.String)
		}
		if parent.Valid {
			p := parent.Int64
			rev.Parent = &p
		}
		if err := decodeColumns(&rev, topics, extra); err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, types.Wrap(types.ErrDatabase, err)
	}
	return revisions, nil
}

// encodeFields serializes the topic set and extra attributes, returning nil
// for the members that are to be inherited.
func encodeFields(fields types.Fields) (topics interface{}, extra interface{}, err error) {
	for k := range fields.Extra {
		if k == "" || types.IsFixedField(k) {
			return nil, nil, types.Wrapf(types.ErrValidation, "extra attribute %q collides with a fixed field", k)
		}
	}

	if fields.Topics != nil {
		s, err := codec.MarshalToString(types.NormalizeTopics(fields.Topics))
		if err != nil {
			return nil, nil, types.Wrap(types.ErrValidation, err)
		}
		topics = s
	}
	if fields.Extra != nil {
		s, err := codec.MarshalToString(fields.Extra)
		if err != nil {
			return nil, nil, types.Wrapf(types.ErrValidation, "extra attributes: %v", err)
		}
		extra = s
	}
	return topics, extra, nil
}

func decodeColumns(rev *types.DatasetRevision, topics, extra []byte) error {
	rev.Topics = make([]string, 0)
	if len(bytes.TrimSpace(topics)) > 0 {
		if err := codec.Unmarshal(topics, &rev.Topics); err != nil {
			return types.Wrapf(types.ErrDatabase, "revision %d topics: %v", rev.Id, err)
		}
	}
	rev.Extra = make(map[string]interface{})
	if len(bytes.TrimSpace(extra)) > 0 {
		if err := codec.Unmarshal(extra, &rev.Extra); err != nil {
			return types.Wrapf(types.ErrDatabase, "revision %d extra: %v", rev.Id, err)
		}
	}
	return nil
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// ParseId parses the decimal form of a revision id.
func ParseId(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, types.Wrapf(types.ErrValidation, "empty revision id")
	}
	id, err := integerValue(s)
	if err != nil {
		return 0, types.Wrapf(types.ErrValidation, "revision id %q", s)
	}
	return id, nil
}
