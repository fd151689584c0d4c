// Package cmd implements the command-line interface of the dkvs socket client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value store operations (get, set, has, del) and the bench load test
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as environment variable DKVS_<FLAG> (e.g. DKVS_BOOTSTRAP_URLS),
// variables are read from .env and .env.local as well.
//
// See dkvs -help for a list of all commands.
package cmd
