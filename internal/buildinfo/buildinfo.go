// Package buildinfo holds the version string reported by the collector's
// GET /version status endpoint and logged at startup by both
// binaries, the way moby/moby's dockerversion package exposes a
// linker-settable Version for its own CLI/daemon.
package buildinfo

// Version is overridden at link time with -ldflags "-X rlog/internal/buildinfo.Version=...".
var Version = "dev"
