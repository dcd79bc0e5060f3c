package version

// Set via -ldflags "-X .../internal/version.Version=..." at release time;
// the defaults identify an unstamped development build.
var (
	Version = "v0.4.0"
	Commit  = "unknown"
	BuiltAt = "unknown"
)

// Info returns the bare version string.
func Info() string {
	return Version
}

// FullInfo returns version, commit and build timestamp in one line, for
// startup logging.
func FullInfo() string {
	return "version=" + Version + " commit=" + Commit + " built_at=" + BuiltAt
}
