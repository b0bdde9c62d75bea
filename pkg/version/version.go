package version

// Version is the current release version, overridden at build time via
// -ldflags "-X wikimap/pkg/version.Version=...".
var Version = "0.3.0-dev"
