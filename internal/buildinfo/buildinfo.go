// Package buildinfo holds version metadata set at link time:
//
//	go build -ldflags "-X github.com/modoterra/rawlog/internal/buildinfo.Version=v0.3.0"
package buildinfo

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String formats the metadata for version output.
func String(binary string) string {
	return binary + " " + Version + " (" + Commit + ") built " + Date
}
