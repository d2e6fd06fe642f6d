package types

import (
	"strings"

	"cosmossdk.io/errors"
)

var (
	ModuleCatalog = "catalog"

	ErrValidation         = errors.Register(ModuleCatalog, 20000, "invalid metadata")
	ErrEmptyInput         = errors.Register(ModuleCatalog, 20001, "empty data")
	ErrStorageUnavailable = errors.Register(ModuleCatalog, 20002, "content store unavailable")
	ErrNotFound           = errors.Register(ModuleCatalog, 20003, "not found")
	ErrQuery              = errors.Register(ModuleCatalog, 20004, "malformed query")
	ErrDatabase           = errors.Register(ModuleCatalog, 20005, "catalog database failure")
)

var (
	ModuleNode = "node"

	ErrInvalidConfig       = errors.Register(ModuleNode, 21000, "invalid config")
	ErrDecodeConfigFailed  = errors.Register(ModuleNode, 21001, "failed to decode the config")
	ErrEncodeConfigFailed  = errors.Register(ModuleNode, 21002, "failed to encode the config")
	ErrInvalidRepoPath     = errors.Register(ModuleNode, 21003, "invalid repo path")
	ErrCreateDirFailed     = errors.Register(ModuleNode, 21004, "failed to create the directory")
	ErrOpenDataStoreFailed = errors.Register(ModuleNode, 21005, "failed to open the datastore")
	ErrInvalidParameters   = errors.Register(ModuleNode, 21006, "invalid parameters")
)

func Wrap(err0 error, err1 error) error {
	return errors.Wrapf(err0, "due to %v", err1)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// MissingMetadataError reports every required metadata field absent from an
// ingestion request.
type MissingMetadataError struct {
	Missing []string
}

func (e *MissingMetadataError) Error() string {
	return "missing metadata: " + strings.Join(e.Missing, ", ")
}

func (e *MissingMetadataError) Unwrap() error {
	return ErrValidation
}
