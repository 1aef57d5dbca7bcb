package version

// Version is the library version reported in the User-Agent header.
var Version = "v0.3.1"

// UserAgent is the User-Agent sent to Wikimedia endpoints, which ask clients to identify
// themselves with a name, version and contact URL.
func UserAgent() string {
	return "wikientity/" + Version + " (https://github.com/wikientity/wikientity)"
}
