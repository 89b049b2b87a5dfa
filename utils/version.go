package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// OBVersion is an Open Banking API version, e.g. "v3.1.10" or "v4.0".
// Versions are totally ordered; a resource created under one version is
// only visible from that version onwards.
type OBVersion struct {
	Major int
	Minor int
	Patch int
}

// ParseOBVersion parses "v3.1.10"-style version strings. The patch segment
// is optional ("v4.0" == "v4.0.0").
func ParseOBVersion(s string) (OBVersion, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "v")
	if raw == s || raw == "" {
		return OBVersion{}, fmt.Errorf("invalid OB version %q: missing 'v' prefix", s)
	}
	parts := strings.Split(raw, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return OBVersion{}, fmt.Errorf("invalid OB version %q", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return OBVersion{}, fmt.Errorf("invalid OB version %q", s)
		}
		nums[i] = n
	}
	return OBVersion{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParseOBVersion is ParseOBVersion for compile-time-known literals.
func MustParseOBVersion(s string) OBVersion {
	v, err := ParseOBVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v OBVersion) String() string {
	if v.Patch == 0 {
		return fmt.Sprintf("v%d.%d", v.Major, v.Minor)
	}
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 if v is older than, equal to or newer than o.
func (v OBVersion) Compare(o OBVersion) int {
	for _, d := range []int{v.Major - o.Major, v.Minor - o.Minor, v.Patch - o.Patch} {
		if d < 0 {
			return -1
		}
		if d > 0 {
			return 1
		}
	}
	return 0
}
