package naming

import (
	"path/filepath"
	"slices"
	"strings"
)

// CompareNatural orders file paths for media sequencing. Parent directories
// compare lexicographically; base names compare as alternating text and
// digit runs, with digit runs ordered by numeric value so img2 sorts before
// img10. Paths that compare equal numerically fall back to plain string
// order, keeping the total order deterministic.
func CompareNatural(a, b string) int {
	aDir, aName := filepath.Split(a)
	bDir, bName := filepath.Split(b)
	if c := strings.Compare(aDir, bDir); c != 0 {
		return c
	}
	if c := compareRuns(aName, bName); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// NaturalLess reports whether a orders before b under CompareNatural.
func NaturalLess(a, b string) bool {
	return CompareNatural(a, b) < 0
}

// SortNatural sorts paths in place using CompareNatural.
func SortNatural(paths []string) {
	slices.SortFunc(paths, CompareNatural)
}

func compareRuns(a, b string) int {
	for a != "" && b != "" {
		aRun, aRest, aDigits := nextRun(a)
		bRun, bRest, bDigits := nextRun(b)
		switch {
		case aDigits && bDigits:
			if c := compareNumeric(aRun, bRun); c != 0 {
				return c
			}
		case aDigits != bDigits:
			return strings.Compare(a, b)
		default:
			if c := strings.Compare(aRun, bRun); c != 0 {
				return c
			}
		}
		a, b = aRest, bRest
	}
	switch {
	case a == b:
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}

// nextRun splits off the leading run of digits or non-digits. Digits are
// ASCII only; multi-byte runes group into text runs and compare bytewise.
func nextRun(s string) (run, rest string, digits bool) {
	digits = isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digits {
		i++
	}
	return s[:i], s[i:], digits
}

// compareNumeric compares two digit runs by value without parsing, so runs
// longer than an int64 still order correctly.
func compareNumeric(a, b string) int {
	aTrim := strings.TrimLeft(a, "0")
	bTrim := strings.TrimLeft(b, "0")
	if len(aTrim) != len(bTrim) {
		if len(aTrim) < len(bTrim) {
			return -1
		}
		return 1
	}
	return strings.Compare(aTrim, bTrim)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
