package node

import (
	"context"
	"io"

	"comlake-node/node/cache"
	"comlake-node/node/catalog"
	"comlake-node/node/config"
	"comlake-node/node/gateway"
	"comlake-node/node/ingest"
	"comlake-node/node/repo"
	"comlake-node/store"
	"comlake-node/types"

	logging "github.com/ipfs/go-log/v2"
	"github.com/zeebo/errs"
)

var log = logging.Logger("node")

// Node wires the catalog, the content stores and the optional content cache
// for one repo. The http gateway is only started by StartGateway.
type Node struct {
	cfg  *config.Node
	repo *repo.Repo

	catalog  *catalog.CatalogSvc
	contents *store.StoreManager
	cacheSvc cache.CacheSvcApi
	ingest   *ingest.Orchestrator
	gateway  *gateway.HttpGateway

	stopFuncs []StopFunc
}

var _ ingest.IngestSvcApi = (*Node)(nil)

func NewNode(ctx context.Context, r *repo.Repo) (*Node, error) {
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:  cfg,
		repo: r,
	}
	if err := n.open(ctx); err != nil {
		return nil, errs.Combine(err, n.Stop(ctx))
	}
	return n, nil
}

func (n *Node) open(ctx context.Context) error {
	cfg := n.cfg

	catalogCfg := catalog.Config{
		Driver:       cfg.Catalog.Driver,
		Conn:         cfg.Catalog.Conn,
		MaxOpenConns: cfg.Catalog.MaxOpenConns,
	}
	if catalog.ImplementationForDriver(cfg.Catalog.Driver) == catalog.Sqlite {
		catalogCfg.Conn = n.repo.Resolve(cfg.Catalog.Conn)
	}
	cat, err := catalog.Open(ctx, catalogCfg)
	if err != nil {
		return err
	}
	n.catalog = cat
	n.stopFuncs = append(n.stopFuncs, func(_ context.Context) error {
		return cat.Close()
	})

	if len(cfg.Storage.Backends) == 0 {
		return types.Wrapf(types.ErrInvalidConfig, "no content backend configured")
	}
	backends := make([]store.StoreBackend, 0, len(cfg.Storage.Backends))
	for _, b := range cfg.Storage.Backends {
		backend, err := store.NewBackend(b.Conn, n.repo.Path(), cfg.Storage.Timeout)
		if err != nil {
			return err
		}
		backends = append(backends, backend)
	}
	contents := store.NewStoreManager(backends)
	if err := contents.Open(); err != nil {
		return err
	}
	n.contents = contents
	n.stopFuncs = append(n.stopFuncs, func(_ context.Context) error {
		return contents.Close()
	})

	if cfg.Cache.EnableCache {
		cacheSvc, err := cache.NewCacheSvc(cache.Options{
			Type:          cfg.Cache.Type,
			Capacity:      cfg.Cache.CacheCapacity,
			RedisConn:     cfg.Cache.RedisConn,
			RedisPassword: cfg.Cache.RedisPassword,
			RedisPoolSize: cfg.Cache.RedisPoolSize,
		})
		if err != nil {
			return err
		}
		n.cacheSvc = cacheSvc
		n.stopFuncs = append(n.stopFuncs, func(_ context.Context) error {
			return cacheSvc.Close()
		})
	}

	n.ingest = ingest.NewOrchestrator(contents, cat)
	log.Infof("node opened at %s with %d content backend(s)", n.repo.Path(), len(backends))
	return nil
}

// StartGateway serves the http gateway on the configured address.
func (n *Node) StartGateway() error {
	if n.gateway != nil {
		return types.Wrapf(types.ErrInvalidParameters, "gateway already started")
	}
	g, err := gateway.StartHttpGateway(&n.cfg.Gateway, n, n.cacheSvc, n.cfg.Cache.ContentLimit)
	if err != nil {
		return err
	}
	n.gateway = g
	n.stopFuncs = append(n.stopFuncs, g.Stop)
	return nil
}

func (n *Node) Config() *config.Node {
	return n.cfg
}

// Stop releases the components in reverse start order.
func (n *Node) Stop(ctx context.Context) error {
	var group errs.Group
	for i := len(n.stopFuncs) - 1; i >= 0; i-- {
		group.Add(n.stopFuncs[i](ctx))
	}
	n.stopFuncs = nil
	if err := group.Err(); err != nil {
		return err
	}
	log.Info("node stopped")
	return nil
}

func (n *Node) Ingest(ctx context.Context, req ingest.Request) (*ingest.Outcome, error) {
	return n.ingest.Ingest(ctx, req)
}

func (n *Node) Fetch(ctx context.Context, c string) (io.ReadCloser, error) {
	return n.ingest.Fetch(ctx, c)
}

func (n *Node) Find(ctx context.Context, doc []byte) ([]types.Record, error) {
	return n.ingest.Find(ctx, doc)
}

func (n *Node) Lineage(ctx context.Context, id string) ([]types.Record, error) {
	return n.ingest.Lineage(ctx, id)
}

// Clear empties the catalog. Stored content is kept.
func (n *Node) Clear(ctx context.Context) error {
	return n.catalog.Clear(ctx)
}
