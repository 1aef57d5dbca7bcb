package version

import (
	"regexp"
	"strings"
	"testing"
)

func TestVersion_IsSemver(t *testing.T) {
	if !regexp.MustCompile(`^v\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`).MatchString(Version) {
		t.Errorf("Version = %q, want vMAJOR.MINOR.PATCH", Version)
	}
}

func TestUserAgent(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    string
	}{
		{name: "Release", version: "v1.2.3", want: "wikientity/v1.2.3 (https://"},
		{name: "Prerelease", version: "v0.4.0-rc.1", want: "wikientity/v0.4.0-rc.1 ("},
	}

	prev := Version
	t.Cleanup(func() { Version = prev })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version = tt.version
			ua := UserAgent()
			if !strings.HasPrefix(ua, tt.want) {
				t.Errorf("UserAgent() = %q, want prefix %q", ua, tt.want)
			}
			if !strings.HasSuffix(ua, ")") {
				t.Errorf("UserAgent() = %q, want a contact URL in parentheses", ua)
			}
		})
	}
}
