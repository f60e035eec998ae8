// Package semver implements strict MAJOR.MINOR.PATCH parsing, comparison
// and bumping for prompt versions (no pre-release tags). The surface
// needed here is small enough that hand-rolling it against strconv is the
// justified choice recorded in DESIGN.md.
package semver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/HyxiaoGe/prompthub/internal/domain"
)

// Version is a parsed strict MAJOR.MINOR.PATCH version.
type Version struct {
	Major, Minor, Patch int
}

func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, domain.NewValidationError("invalid semver", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, domain.NewValidationError("invalid semver component", s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than o.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return sign(v.Major - o.Major)
	case v.Minor != o.Minor:
		return sign(v.Minor - o.Minor)
	default:
		return sign(v.Patch - o.Patch)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// Bump kind: the bumped field increments, lower fields zero.
type Bump string

const (
	BumpPatch Bump = "patch"
	BumpMinor Bump = "minor"
	BumpMajor Bump = "major"
)

func (v Version) Bump(kind Bump) (Version, error) {
	switch kind {
	case BumpPatch:
		return Version{v.Major, v.Minor, v.Patch + 1}, nil
	case BumpMinor:
		return Version{v.Major, v.Minor + 1, 0}, nil
	case BumpMajor:
		return Version{v.Major + 1, 0, 0}, nil
	default:
		return Version{}, domain.NewValidationError("invalid bump kind", string(kind))
	}
}
