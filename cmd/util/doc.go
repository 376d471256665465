// Package util contains the helpers shared by the kvcopy commands: flag
// setup, configuration loading (flags, KVCOPY_ environment variables and .env
// files) and the parsing of endpoint urls.
package util
