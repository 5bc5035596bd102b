// Package version carries the build identity stamped in by the linker.
package version

var (
	// Version is the release version, "dev" for unstamped builds.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String renders the build identity for --version output.
func String() string {
	return Version + " (" + GitSHA + ", " + BuildTime + ")"
}
