package dna

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Marshal serializes a DNA structure to its canonical JSON wire form, the
// shape stored in DnaSnapshot.dnaJson.
func Marshal(d DNA) ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("dna: marshal: %w", err)
	}
	return b, nil
}

// Unmarshal parses dnaJson back into a DNA structure.
func Unmarshal(b []byte) (DNA, error) {
	var d DNA
	if err := json.Unmarshal(b, &d); err != nil {
		return DNA{}, fmt.Errorf("dna: unmarshal: %w", err)
	}
	return d, nil
}

// Version is a parsed semver string (major.minor.patch). Mutations only
// ever increment Patch.
type Version struct {
	Major, Minor, Patch int
}

// String renders a Version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion parses a "major.minor.patch" string.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("dna: invalid version %q", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("dna: invalid version %q: %w", s, err)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// InitialVersion is the version assigned by CreateInitial.
const InitialVersion = "1.0.0"

// NextPatch returns v with Patch incremented by one.
func (v Version) NextPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}
