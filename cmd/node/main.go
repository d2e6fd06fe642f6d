package main

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"comlake-node/build"
	cliutil "comlake-node/cmd"
	"comlake-node/node"
	"comlake-node/node/ingest"
	"comlake-node/node/repo"
	"comlake-node/store"
	"comlake-node/types"

	"github.com/common-nighthawk/go-figure"
	logging "github.com/ipfs/go-log/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli/v2"
	"github.com/zeebo/errs"
	"golang.org/x/xerrors"
)

var log = logging.Logger("node")

const (
	FlagStorageRepo        = "repo"
	FlagStorageDefaultRepo = "~/.comlake-node"
)

var FlagRepo = &cli.StringFlag{
	Name:    FlagStorageRepo,
	Usage:   "repo directory for comlake node",
	EnvVars: []string{"COMLAKE_NODE_PATH"},
	Value:   FlagStorageDefaultRepo,
}

func before(_ *cli.Context) error {
	level := "INFO"
	if cliutil.IsVeryVerbose {
		level = "DEBUG"
	}
	for _, s := range cliutil.Subsystems {
		_ = logging.SetLogLevel(s, level)
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:                 cliutil.APP_NAME_NODE,
		Usage:                "Command line for comlake dataset catalog node",
		EnableBashCompletion: true,
		Version:              build.UserVersion(),
		Before:               before,
		Flags: []cli.Flag{
			FlagRepo,
			cliutil.FlagVeryVerbose,
		},
		Commands: []*cli.Command{
			initCmd,
			runCmd,
			addCmd,
			findCmd,
			getCmd,
			lineageCmd,
			cleanCmd,
		},
	}
	app.Setup()

	if err := app.Run(os.Args); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

var initCmd = &cli.Command{
	Name:  "init",
	Usage: "initialize a comlake node repo",
	Action: func(cctx *cli.Context) error {
		r, err := repo.NewRepo(cctx.String(FlagStorageRepo))
		if err != nil {
			return err
		}
		exist, err := r.Exists()
		if err != nil {
			return err
		}
		if exist {
			return xerrors.Errorf("repo at '%s' is already initialized", r.Path())
		}
		if err := r.Init(); err != nil {
			return err
		}
		fmt.Printf("repo initialized at %s\n", r.Path())
		return nil
	},
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "start node",
	Action: func(cctx *cli.Context) error {
		myFigure := figure.NewFigure("ComLake", "", true)
		myFigure.Print()

		// closed by nothing yet, signals drive the shutdown
		shutdownChan := make(chan struct{})
		ctx := cctx.Context

		snode, err := openNode(cctx)
		if err != nil {
			return err
		}
		if snode.Config().Gateway.Enable {
			if err := snode.StartGateway(); err != nil {
				return errs.Combine(err, snode.Stop(ctx))
			}
		} else {
			log.Warn("http gateway is disabled")
		}

		finishCh := node.MonitorShutdown(
			shutdownChan,
			node.ShutdownHandler{Component: "comlake node", StopFunc: snode.Stop},
		)
		<-finishCh
		return nil
	},
}

var addCmd = &cli.Command{
	Name:      "add",
	Usage:     "store a file or directory and catalog it",
	ArgsUsage: "<path>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "name",
			Usage: "dataset name, defaults to the base name of path",
		},
		&cli.StringFlag{
			Name:  "type",
			Usage: "content type",
			Value: "application/octet-stream",
		},
		&cli.StringFlag{
			Name:     "source",
			Usage:    "where the data came from",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:  "topic",
			Usage: "topic tag, may be repeated",
		},
		&cli.StringFlag{
			Name:  "description",
			Usage: "free form description",
		},
		&cli.StringFlag{
			Name:  "parent",
			Usage: "revision id this dataset revises",
		},
		&cli.StringSliceFlag{
			Name:  "extra",
			Usage: "extra attribute as key=value, may be repeated",
		},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.Errorf("add takes exactly one path")
		}
		p := cctx.Args().First()

		md, err := addMetadata(cctx, p)
		if err != nil {
			return err
		}

		req, closer, err := addRequest(p, md)
		if err != nil {
			return err
		}
		defer closer()

		snode, err := openNode(cctx)
		if err != nil {
			return err
		}
		defer snode.Stop(cctx.Context)

		out, err := snode.Ingest(cctx.Context, req)
		if err != nil {
			return err
		}
		return printJson(out)
	},
}

var findCmd = &cli.Command{
	Name:      "find",
	Usage:     "search the catalog with a query document",
	ArgsUsage: "<query>",
	Description: `query is a JSON document, for example
   '["and", ["has", "topics", "weather"], [">=", "length", 1024]]'
   true or ["all"] matches every revision.`,
	Action: func(cctx *cli.Context) error {
		doc := "true"
		if cctx.NArg() > 0 {
			doc = cctx.Args().First()
		}

		snode, err := openNode(cctx)
		if err != nil {
			return err
		}
		defer snode.Stop(cctx.Context)

		records, err := snode.Find(cctx.Context, []byte(doc))
		if err != nil {
			return err
		}
		return printJson(records)
	},
}

var getCmd = &cli.Command{
	Name:      "get",
	Usage:     "fetch content by cid",
	ArgsUsage: "<cid>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "file to write to, stdout when empty",
		},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.Errorf("get takes exactly one cid")
		}

		snode, err := openNode(cctx)
		if err != nil {
			return err
		}
		defer snode.Stop(cctx.Context)

		reader, err := snode.Fetch(cctx.Context, cctx.Args().First())
		if err != nil {
			return err
		}
		defer reader.Close()

		var w io.Writer = os.Stdout
		if output := cctx.String("output"); output != "" {
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		_, err = io.Copy(w, reader)
		return err
	},
}

var lineageCmd = &cli.Command{
	Name:      "lineage",
	Usage:     "show a revision and its ancestors",
	ArgsUsage: "<id>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.Errorf("lineage takes exactly one revision id")
		}

		snode, err := openNode(cctx)
		if err != nil {
			return err
		}
		defer snode.Stop(cctx.Context)

		records, err := snode.Lineage(cctx.Context, cctx.Args().First())
		if err != nil {
			return err
		}
		return printJson(records)
	},
}

var cleanCmd = &cli.Command{
	Name:  "clean",
	Usage: "remove every catalog entry, stored content is kept",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "really-do-it",
			Usage: "confirm the catalog is to be cleared",
		},
	},
	Action: func(cctx *cli.Context) error {
		if !cctx.Bool("really-do-it") {
			return xerrors.Errorf("pass --really-do-it to clear the catalog")
		}

		snode, err := openNode(cctx)
		if err != nil {
			return err
		}
		defer snode.Stop(cctx.Context)

		if err := snode.Clear(cctx.Context); err != nil {
			return err
		}
		fmt.Println("catalog cleared")
		return nil
	},
}

func openNode(cctx *cli.Context) (*node.Node, error) {
	r, err := repo.NewRepo(cctx.String(FlagStorageRepo))
	if err != nil {
		return nil, err
	}
	exist, err := r.Exists()
	if err != nil {
		return nil, err
	}
	if !exist {
		return nil, xerrors.Errorf("repo at '%s' is not initialized, run 'comlake-node init' to set it up", r.Path())
	}
	return node.NewNode(cctx.Context, r)
}

func addMetadata(cctx *cli.Context, p string) (map[string]interface{}, error) {
	name := cctx.String("name")
	if name == "" {
		name = filepath.Base(p)
	}
	topics := cctx.StringSlice("topic")
	if topics == nil {
		topics = []string{}
	}
	md := map[string]interface{}{
		ingest.FieldName:  name,
		ingest.FieldType:  cctx.String("type"),
		types.FieldSource: cctx.String("source"),
		types.FieldTopics: topics,
	}
	if cctx.IsSet("description") {
		md[types.FieldDescription] = cctx.String("description")
	}
	if cctx.IsSet("parent") {
		md[types.FieldParent] = cctx.String("parent")
	}
	for _, kv := range cctx.StringSlice("extra") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, types.Wrapf(types.ErrInvalidParameters, "extra attribute %q is not key=value", kv)
		}
		md[strings.ToLower(k)] = v
	}
	return md, nil
}

// addRequest opens p for ingestion. A directory is walked into entries with
// slash separated paths relative to p.
func addRequest(p string, md map[string]interface{}) (ingest.Request, func(), error) {
	info, err := os.Stat(p)
	if err != nil {
		return ingest.Request{}, nil, err
	}

	if !info.IsDir() {
		f, err := os.Open(p)
		if err != nil {
			return ingest.Request{}, nil, err
		}
		md[ingest.FieldLength] = info.Size()
		return ingest.Request{Metadata: md, Payload: f}, func() { _ = f.Close() }, nil
	}

	var (
		entries []store.DirEntry
		length  int64
	)
	err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(p, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		length += int64(len(data))
		entries = append(entries, store.DirEntry{Path: filepath.ToSlash(rel), Content: bytes.NewReader(data)})
		return nil
	})
	if err != nil {
		return ingest.Request{}, nil, err
	}
	if entries == nil {
		entries = []store.DirEntry{}
	}
	md[ingest.FieldLength] = length
	return ingest.Request{Metadata: md, Entries: entries}, func() {}, nil
}

func printJson(v interface{}) error {
	data, err := jsoniter.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
