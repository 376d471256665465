// Package cmd implements the command-line interface of kvcopy. It provides
// commands for copying keys between key-value stores and for verifying that
// two stores hold the same keys.
//
// The package is organized into several subpackages:
//
//   - cp: The copy command
//   - verify: The verify command (compares without writing)
//   - util: Shared utilities for flags, configuration and endpoint urls (internal use)
//
// All flags can also be set via environment variables in the format
// KVCOPY_<FLAG> (e.g. KVCOPY_LOG_LEVEL=debug), .env and .env.local files are loaded.
//
// See kvcopy -help for a list of all commands.
package cmd
