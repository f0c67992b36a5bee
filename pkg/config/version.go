// Package config holds build information about the binary.
package config

// Version is the version of the tool, set at build time with
// -ldflags "-X github.com/nspcc-dev/binrec/pkg/config.Version=...".
var Version string
