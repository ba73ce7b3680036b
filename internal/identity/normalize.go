// Package identity implements find-or-create resolution of canonical
// prospects: exact external-id lookup, position-scoped fuzzy matching,
// and serialized entity creation.
package identity

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// generationalSuffixes lists name suffixes stripped during normalization.
// "J. Carter Jr." and "J Carter" must normalize identically.
var generationalSuffixes = []string{
	" JR", " JR.", " SR", " SR.",
	" II", " III", " IV", " V",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// accent-folding chain: decompose, drop combining marks, recompose.
var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName standardizes a person name for matching by:
//  1. Trimming whitespace
//  2. Folding accented characters to ASCII
//  3. Converting to uppercase
//  4. Removing generational suffixes (Jr, Sr, II, III, ...)
//  5. Stripping punctuation (periods, apostrophes, commas; dashes become spaces)
//  6. Collapsing multiple spaces into single spaces
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	if folded, _, err := transform.String(foldAccents, name); err == nil {
		name = folded
	}

	name = strings.ToUpper(name)

	for _, suffix := range generationalSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"-", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	return name
}

// schoolAliases maps common shorthand to the long form before comparison.
var schoolAliases = map[string]string{
	"OHIO ST":      "OHIO STATE",
	"PENN ST":      "PENN STATE",
	"MICHIGAN ST":  "MICHIGAN STATE",
	"FLORIDA ST":   "FLORIDA STATE",
	"OKLAHOMA ST":  "OKLAHOMA STATE",
	"MISS ST":      "MISSISSIPPI STATE",
	"OLE MISS":     "MISSISSIPPI",
	"PITT":         "PITTSBURGH",
	"USC":          "SOUTHERN CALIFORNIA",
	"LSU":          "LOUISIANA STATE",
	"TCU":          "TEXAS CHRISTIAN",
	"SMU":          "SOUTHERN METHODIST",
	"BYU":          "BRIGHAM YOUNG",
	"UCF":          "CENTRAL FLORIDA",
	"N CAROLINA":   "NORTH CAROLINA",
	"S CAROLINA":   "SOUTH CAROLINA",
	"NOTRE DAME U": "NOTRE DAME",
}

// NormalizeSchool standardizes an affiliation for matching: same folding
// as names plus alias expansion and a trailing "UNIVERSITY"/"COLLEGE" trim.
func NormalizeSchool(school string) string {
	s := NormalizeName(school)
	if s == "" {
		return ""
	}

	for _, noise := range []string{" UNIVERSITY", " COLLEGE"} {
		s = strings.TrimSuffix(s, noise)
	}
	s = strings.TrimPrefix(s, "UNIVERSITY OF ")

	if alias, ok := schoolAliases[s]; ok {
		return alias
	}
	return s
}
