package gateway

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"comlake-node/node/cache"
	"comlake-node/node/config"
	"comlake-node/node/ingest"
	"comlake-node/store"
	"comlake-node/types"

	logging "github.com/ipfs/go-log/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/xerrors"
)

var log = logging.Logger("gateway")

type HttpGateway struct {
	Cfg    *config.Gateway
	Server *echo.Echo

	svc          ingest.IngestSvcApi
	cacheSvc     cache.CacheSvcApi
	contentLimit int64
}

// NewHttpGateway builds the router without listening. cacheSvc may be nil.
func NewHttpGateway(cfg *config.Gateway, svc ingest.IngestSvcApi, cacheSvc cache.CacheSvcApi, contentLimit int) *HttpGateway {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsonSerializer{}

	if cfg.EnableLog {
		// Middleware
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	g := &HttpGateway{
		Cfg:          cfg,
		Server:       e,
		svc:          svc,
		cacheSvc:     cacheSvc,
		contentLimit: int64(contentLimit),
	}

	e.GET("/test", test)
	e.POST("/add", g.add)
	e.POST("/find", g.find)
	e.GET("/get/:cid", g.get)
	e.GET("/lineage/:id", g.lineage)

	return g
}

func StartHttpGateway(cfg *config.Gateway, svc ingest.IngestSvcApi, cacheSvc cache.CacheSvcApi, contentLimit int) (*HttpGateway, error) {
	g := NewHttpGateway(cfg, svc, cacheSvc, contentLimit)
	log.Infof("start http gateway at %s", cfg.ListenAddress)

	go func() {
		err := g.Server.Start(cfg.ListenAddress)
		if err != nil {
			if xerrors.Is(err, http.ErrServerClosed) {
				log.Info("stopping http gateway...")
			} else {
				log.Error(err.Error())
			}
		}
	}()
	return g, nil
}

func (g *HttpGateway) Stop(ctx context.Context) error {
	return g.Server.Shutdown(ctx)
}

func test(c echo.Context) error {
	return c.String(http.StatusOK, "Accessible")
}

func (g *HttpGateway) requestContext(ec echo.Context) (context.Context, context.CancelFunc) {
	ctx := ec.Request().Context()
	if g.Cfg.Timeout > 0 {
		return context.WithTimeout(ctx, g.Cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func (g *HttpGateway) add(ec echo.Context) error {
	ctx, cancel := g.requestContext(ec)
	defer cancel()

	req := ec.Request()
	md := metadataFromHeaders(req.Header, req.ContentLength)
	request := ingest.Request{Metadata: md, Payload: req.Body}

	mediaType, params, err := mime.ParseMediaType(req.Header.Get(echo.HeaderContentType))
	if err == nil && strings.HasPrefix(mediaType, "multipart/") {
		entries, size, err := readDirectory(multipart.NewReader(req.Body, params["boundary"]))
		if err != nil {
			return g.fail(ec, err)
		}
		md[ingest.FieldLength] = size
		request.Payload = nil
		request.Entries = entries
	}

	outcome, err := g.svc.Ingest(ctx, request)
	if err != nil {
		return g.fail(ec, err)
	}
	return ec.JSON(http.StatusOK, outcome)
}

// readDirectory buffers every file part of a multipart body as a directory
// entry named by the part's filename.
func readDirectory(mr *multipart.Reader) ([]store.DirEntry, int64, error) {
	entries := make([]store.DirEntry, 0)
	var size int64
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, types.Wrapf(types.ErrValidation, "multipart body: %v", err)
		}

		name := entryName(part)
		if name == "" {
			_ = part.Close()
			continue
		}
		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, 0, types.Wrapf(types.ErrValidation, "multipart part %s: %v", name, err)
		}
		size += int64(len(data))
		entries = append(entries, store.DirEntry{Path: name, Content: bytes.NewReader(data)})
	}
	return entries, size, nil
}

// entryName keeps the directories of the filename, which Part.FileName
// strips.
func entryName(part *multipart.Part) string {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return ""
	}
	return params["filename"]
}

func (g *HttpGateway) find(ec echo.Context) error {
	ctx, cancel := g.requestContext(ec)
	defer cancel()

	doc, err := io.ReadAll(ec.Request().Body)
	if err != nil {
		return g.fail(ec, types.Wrapf(types.ErrQuery, "read query: %v", err))
	}
	records, err := g.svc.Find(ctx, doc)
	if err != nil {
		return g.fail(ec, err)
	}
	return ec.JSON(http.StatusOK, records)
}

func (g *HttpGateway) lineage(ec echo.Context) error {
	ctx, cancel := g.requestContext(ec)
	defer cancel()

	records, err := g.svc.Lineage(ctx, ec.Param("id"))
	if err != nil {
		return g.fail(ec, err)
	}
	return ec.JSON(http.StatusOK, records)
}

func (g *HttpGateway) get(ec echo.Context) error {
	ctx, cancel := g.requestContext(ec)
	defer cancel()

	key := ec.Param("cid")
	if g.cacheSvc != nil {
		if data, ok := g.cacheSvc.Get(key); ok {
			log.Debugf("cache hit %s", key)
			return ec.Blob(http.StatusOK, echo.MIMEOctetStream, data)
		}
	}

	reader, err := g.svc.Fetch(ctx, key)
	if err != nil {
		return g.fail(ec, err)
	}
	defer reader.Close()

	if g.cacheSvc == nil {
		return ec.Stream(http.StatusOK, echo.MIMEOctetStream, reader)
	}

	head, err := io.ReadAll(io.LimitReader(reader, g.contentLimit+1))
	if err != nil {
		return g.fail(ec, types.Wrap(types.ErrStorageUnavailable, err))
	}
	if int64(len(head)) <= g.contentLimit {
		g.cacheSvc.Put(key, head)
		return ec.Blob(http.StatusOK, echo.MIMEOctetStream, head)
	}
	return ec.Stream(http.StatusOK, echo.MIMEOctetStream, io.MultiReader(bytes.NewReader(head), reader))
}

func (g *HttpGateway) fail(ec echo.Context, err error) error {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("%s %s: %v", ec.Request().Method, ec.Request().URL.Path, err)
	} else {
		log.Debugf("%s %s: %v", ec.Request().Method, ec.Request().URL.Path, err)
	}
	return ec.JSON(status, ErrorBody(err))
}
