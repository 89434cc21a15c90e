package updater

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ParseVersion parses a version string into a semver.Version.
// Handles formats: "v1.2.3", "1.2.3", "1.2", "v1.2.3-beta.1"
func ParseVersion(s string) (*semver.Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty version string")
	}
	v, err := semver.NewVersion(strings.TrimPrefix(s, "v"))
	if err != nil {
		return nil, fmt.Errorf("invalid version format %q: %w", s, err)
	}
	return v, nil
}

// IsNewer reports whether target is newer than current. Unparseable versions
// are never considered newer.
func IsNewer(current, target string) bool {
	c, err := ParseVersion(current)
	if err != nil {
		return false
	}
	t, err := ParseVersion(target)
	if err != nil {
		return false
	}
	return c.LessThan(t)
}
