package app

// Build information set with -ldflags "-X github.com/hyperifyio/speakloud/internal/app.BuildVersion=...".
var (
	BuildVersion = "0.0.0-dev"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

// UserAgentVersion is the version string reported to remote services.
func UserAgentVersion() string {
	return "speakloud/" + BuildVersion
}
