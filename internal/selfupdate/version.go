// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"strconv"
	"strings"
)

// CompareVersions orders two dotted version strings and returns -1, 0 or 1.
//
// A leading "v" is ignored and missing trailing components count as zero, so
// "1.0" equals "v1.0.0". Each component contributes its leading run of digits;
// a component with none (or one too large to parse) counts as zero. The
// function is total: every pair of inputs compares without error.
func CompareVersions(a, b string) int {
	pa, pb := versionComponents(a), versionComponents(b)
	for i := range max(len(pa), len(pb)) {
		x, y := componentAt(pa, i), componentAt(pb, i)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

// IsNewer reports whether candidate is strictly newer than current.
func IsNewer(candidate, current string) bool {
	return CompareVersions(candidate, current) > 0
}

func versionComponents(v string) []uint64 {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "v")
	v = strings.TrimPrefix(v, "V")
	if v == "" {
		return nil
	}

	fields := strings.Split(v, ".")
	parts := make([]uint64, len(fields))
	for i, f := range fields {
		parts[i] = leadingNumber(f)
	}
	return parts
}

func leadingNumber(s string) uint64 {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.ParseUint(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func componentAt(parts []uint64, i int) uint64 {
	if i < len(parts) {
		return parts[i]
	}
	return 0
}
