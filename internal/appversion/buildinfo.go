// Package appversion exposes the ferry build version.
package appversion

// version is stamped by the release build via -ldflags "-X"; local builds
// report "dev".
var version = "dev" //nolint:gochecknoglobals // the ldflags target must be a package-level var

// String reports the version baked into this binary.
func String() string {
	return version
}
