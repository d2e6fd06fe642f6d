package cliutil

import (
	"github.com/urfave/cli/v2"
)

const APP_NAME_NODE = "comlake-node"

// IsVeryVerbose is a global var signalling if the CLI is running in very
// verbose mode or not (default: false).
var IsVeryVerbose bool

// FlagVeryVerbose enables very verbose mode, which is useful when debugging
// the CLI itself. It should be included as a flag on the top-level command
// (e.g. comlake-node -vv).
var FlagVeryVerbose = &cli.BoolFlag{
	Name:        "vv",
	Usage:       "enables very verbose mode, useful for debugging the CLI",
	Destination: &IsVeryVerbose,
}

// Subsystems lists the named loggers of the node.
var Subsystems = []string{"cache", "catalog", "gateway", "ingest", "node", "query", "repo", "store"}
