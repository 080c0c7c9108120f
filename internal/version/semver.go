// Package version manages template semantic versions and the append-only
// changelog carried in a template's version metadata.
package version

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"specforge/internal/template"
)

// InvalidVersionError reports a version string that is not strict semver.
type InvalidVersionError struct {
	Version string
	Path    string // template file, when known
	Reason  string
}

func (e *InvalidVersionError) Error() string {
	where := ""
	if e.Path != "" {
		where = " in " + e.Path
	}
	return fmt.Sprintf("invalid version %q%s: %s (expected MAJOR.MINOR.PATCH, e.g. 1.0.0)", e.Version, where, e.Reason)
}

// Version is a parsed strict semantic version.
type Version struct {
	Major      uint64
	Minor      uint64
	Patch      uint64
	Prerelease string // without the leading "-"
	Build      string // without the leading "+"
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	if v.Build != "" {
		s += "+" + v.Build
	}
	return s
}

// Parse parses a strict MAJOR.MINOR.PATCH[-pre][+build] version. Shorthands
// like "1.2" and a leading "v" are rejected.
func Parse(s string) (Version, error) {
	if s == "" {
		return Version{}, &InvalidVersionError{Version: s, Reason: "version is empty"}
	}
	if strings.HasPrefix(s, "v") {
		return Version{}, &InvalidVersionError{Version: s, Reason: "leading \"v\" is not allowed"}
	}

	prefixed := "v" + s
	if !semver.IsValid(prefixed) {
		return Version{}, &InvalidVersionError{Version: s, Reason: "not a semantic version"}
	}
	core, build, _ := strings.Cut(s, "+")
	// semver.Canonical expands shorthands ("v1.2" -> "v1.2.0") and drops build
	// metadata, so equality means s was written out in full.
	if semver.Canonical(prefixed) != "v"+core {
		return Version{}, &InvalidVersionError{Version: s, Reason: "all three components are required"}
	}

	numbers, pre, _ := strings.Cut(core, "-")
	parts := strings.Split(numbers, ".")
	var out Version
	fields := []*uint64{&out.Major, &out.Minor, &out.Patch}
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return Version{}, &InvalidVersionError{Version: s, Reason: err.Error()}
		}
		*fields[i] = n
	}
	out.Prerelease = pre
	out.Build = build
	return out, nil
}

// Valid reports whether s is a strict semantic version.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Compare returns -1, 0, or +1 by semver precedence. Build metadata is ignored.
func Compare(a, b string) (int, error) {
	if _, err := Parse(a); err != nil {
		return 0, err
	}
	if _, err := Parse(b); err != nil {
		return 0, err
	}
	return semver.Compare("v"+a, "v"+b), nil
}

// ParseBumpType maps a user-supplied name to a BumpType.
func ParseBumpType(s string) (template.BumpType, error) {
	switch template.BumpType(strings.ToLower(strings.TrimSpace(s))) {
	case template.BumpMajor:
		return template.BumpMajor, nil
	case template.BumpMinor:
		return template.BumpMinor, nil
	case template.BumpPatch, "":
		return template.BumpPatch, nil
	default:
		return "", fmt.Errorf("unknown bump type %q (valid: major, minor, patch)", s)
	}
}

// BumpVersion returns the next version. A prerelease bumps to its own release
// when the release already satisfies the bump (1.2.0-rc.1 + minor = 1.2.0);
// prerelease and build metadata are always dropped.
func BumpVersion(current string, bump template.BumpType) (string, error) {
	v, err := Parse(current)
	if err != nil {
		return "", err
	}
	pre := v.Prerelease != ""
	overflow := func(n uint64) error {
		if n == math.MaxUint64 {
			return &InvalidVersionError{Version: current, Reason: fmt.Sprintf("%s component cannot be incremented", bump)}
		}
		return nil
	}

	switch bump {
	case template.BumpMajor:
		if !pre || v.Minor != 0 || v.Patch != 0 {
			if err := overflow(v.Major); err != nil {
				return "", err
			}
			v.Major++
		}
		v.Minor, v.Patch = 0, 0
	case template.BumpMinor:
		if !pre || v.Patch != 0 {
			if err := overflow(v.Minor); err != nil {
				return "", err
			}
			v.Minor++
		}
		v.Patch = 0
	case template.BumpPatch:
		if !pre {
			if err := overflow(v.Patch); err != nil {
				return "", err
			}
			v.Patch++
		}
	default:
		return "", fmt.Errorf("unknown bump type %q (valid: major, minor, patch)", bump)
	}

	v.Prerelease, v.Build = "", ""
	return v.String(), nil
}
