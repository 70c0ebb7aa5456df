// Package capability detects the Asterisk version and gates ARI methods
// that the detected server does not support.
package capability

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed Asterisk version.
type Version struct {
	Major int
	Minor int
	Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// AtLeast reports whether v is other or newer.
func (v Version) AtLeast(other Version) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor > other.Minor
	}
	return v.Patch >= other.Patch
}

// ParseVersion parses an Asterisk version string such as "18.9.0". Cert
// and git builds ("16.8-cert1", "GIT-18-abc123") resolve to their numeric
// prefix where one exists.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "GIT-")
	if s == "" {
		return Version{}, fmt.Errorf("empty version string")
	}

	parts := strings.SplitN(s, ".", 3)
	var v Version
	var err error
	v.Major, err = parseComponent(parts[0])
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
	}
	if len(parts) > 1 {
		if v.Minor, err = parseComponent(parts[1]); err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
	}
	if len(parts) > 2 {
		if v.Patch, err = parseComponent(parts[2]); err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
	}
	return v, nil
}

// parseComponent reads the leading digits of one version component,
// tolerating suffixes like "8-cert1".
func parseComponent(s string) (int, error) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("no numeric component in %q", s)
	}
	return strconv.Atoi(s[:end])
}

// UnsupportedError reports a method invoked against a server version that
// does not implement it.
type UnsupportedError struct {
	Method  string
	Version Version
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("ari: method %s is not supported by Asterisk %s", e.Method, e.Version)
}

// methodMinimums lists the minimum Asterisk version per gated method.
// Methods absent from the table are available on every supported version.
var methodMinimums = map[string]Version{
	"channels.create":          {Major: 14},
	"channels.dial":            {Major: 14},
	"channels.externalMedia":   {Major: 16},
	"channels.move":            {Major: 17},
	"bridges.setVideoSource":   {Major: 14},
	"bridges.clearVideoSource": {Major: 14},
	"applications.filter":      {Major: 13},
}

// Set is the feature-flag view of one detected server version.
type Set struct {
	version Version
}

// FromVersion builds the capability set for a detected version.
func FromVersion(v Version) *Set {
	return &Set{version: v}
}

// Version returns the detected server version.
func (s *Set) Version() Version {
	return s.version
}

// Supports reports whether the named method is available on the detected
// version.
func (s *Set) Supports(method string) bool {
	min, gated := methodMinimums[method]
	if !gated {
		return true
	}
	return s.version.AtLeast(min)
}

// ValidateMethod returns an *UnsupportedError when the named method is not
// available on the detected version.
func (s *Set) ValidateMethod(method string) error {
	if s == nil || s.Supports(method) {
		return nil
	}
	return &UnsupportedError{Method: method, Version: s.version}
}

// Convenience capability checks.

// HasChannelCreate reports support for creating channels without dialing.
func (s *Set) HasChannelCreate() bool { return s.Supports("channels.create") }

// HasExternalMedia reports support for external media channels.
func (s *Set) HasExternalMedia() bool { return s.Supports("channels.externalMedia") }

// HasBridgeVideoSource reports support for explicit bridge video sources.
func (s *Set) HasBridgeVideoSource() bool { return s.Supports("bridges.setVideoSource") }
