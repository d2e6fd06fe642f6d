package repo

import (
	"os"
	"path/filepath"

	"comlake-node/node/config"
	"comlake-node/types"

	logging "github.com/ipfs/go-log/v2"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/xerrors"
)

var log = logging.Logger("repo")

const (
	fsConfig = "config.toml"
)

// Repo is the node's home directory: config.toml plus any relative catalog
// or content store paths the config names.
type Repo struct {
	path       string
	configPath string
}

func NewRepo(path string) (*Repo, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, types.Wrap(types.ErrInvalidRepoPath, err)
	}
	if path == "" {
		return nil, types.Wrapf(types.ErrInvalidRepoPath, "empty repo path")
	}

	return &Repo{
		path:       path,
		configPath: filepath.Join(path, fsConfig),
	}, nil
}

func (r *Repo) Path() string {
	return r.path
}

func (r *Repo) Exists() (bool, error) {
	_, err := os.Stat(r.configPath)
	notexist := os.IsNotExist(err)
	if notexist {
		err = nil
	}
	return !notexist, err
}

// Init creates the repo directory and a commented default config. An
// existing config is left untouched.
func (r *Repo) Init() error {
	exist, err := r.Exists()
	if err != nil {
		return err
	}
	if exist {
		log.Infof("repo at '%s' already initialized", r.path)
		return nil
	}

	log.Infof("Initializing repo at '%s'", r.path)
	err = os.MkdirAll(r.path, 0755) //nolint: gosec
	if err != nil && !os.IsExist(err) {
		return types.Wrap(types.ErrCreateDirFailed, err)
	}

	if err := r.initConfig(); err != nil {
		return xerrors.Errorf("init config: %w", err)
	}
	return nil
}

func (r *Repo) Config() (*config.Node, error) {
	return config.LoadNode(r.configPath)
}

// Resolve makes a relative path absolute inside the repo.
func (r *Repo) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return r.join(p)
}

func (r *Repo) initConfig() error {
	c, err := os.Create(r.configPath)
	if err != nil {
		return err
	}

	comm, err := config.ConfigUpdate(config.DefaultNode(), config.DefaultNode(), true)
	if err != nil {
		_ = c.Close()
		return xerrors.Errorf("load default: %w", err)
	}
	_, err = c.Write(comm)
	if err != nil {
		_ = c.Close()
		return xerrors.Errorf("write config: %w", err)
	}

	if err := c.Close(); err != nil {
		return xerrors.Errorf("close config: %w", err)
	}
	return nil
}

// join joins path elements with fsr.path
func (fsr *Repo) join(paths ...string) string {
	return filepath.Join(append([]string{fsr.path}, paths...)...)
}
