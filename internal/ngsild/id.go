package ngsild

import (
	"strconv"
	"strings"
)

const urnPrefix = "urn:ngsi-ld:"

// Vietnamese letters grouped by their ASCII base.
var foldGroups = map[rune]string{
	'a': "àáạảãâầấậẩẫăằắặẳẵ",
	'A': "ÀÁẠẢÃÂẦẤẬẨẪĂẰẮẶẲẴ",
	'e': "èéẹẻẽêềếệểễ",
	'E': "ÈÉẸẺẼÊỀẾỆỂỄ",
	'i': "ìíịỉĩ",
	'I': "ÌÍỊỈĨ",
	'o': "òóọỏõôồốộổỗơờớợởỡ",
	'O': "ÒÓỌỎÕÔỒỐỘỔỖƠỜỚỢỞỠ",
	'u': "ùúụủũưừứựửữ",
	'U': "ÙÚỤỦŨƯỪỨỰỬỮ",
	'y': "ỳýỵỷỹ",
	'Y': "ỲÝỴỶỸ",
	'd': "đ",
	'D': "Đ",
}

var foldMap = buildFoldMap()

func buildFoldMap() map[rune]rune {
	m := make(map[rune]rune)
	for base, letters := range foldGroups {
		for _, r := range letters {
			m[r] = base
		}
	}
	return m
}

// GenerateID returns urn:ngsi-ld:<entityType>:<slug(identifier)>.
// The result depends only on its inputs.
func GenerateID(entityType, identifier string) string {
	slug := Slug(identifier)
	if slug == "" {
		slug = "unknown"
	}
	return urnPrefix + entityType + ":" + slug
}

// GenerateForecastID is GenerateID with the forecast slot's Unix timestamp appended.
func GenerateForecastID(entityType, identifier string, unixTS int64) string {
	return GenerateID(entityType, identifier+"-"+strconv.FormatInt(unixTS, 10))
}

// Slug folds Vietnamese diacritics to ASCII, replaces anything outside
// [A-Za-z0-9-_] with '-', collapses repeated hyphens and trims them from both ends.
func Slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastHyphen := false
	for _, r := range s {
		// Combining marks from decomposed input carry no letter of their own.
		if r >= 0x0300 && r <= 0x036F {
			continue
		}
		if folded, ok := foldMap[r]; ok {
			r = folded
		}
		if !isSlugRune(r) {
			r = '-'
		}
		if r == '-' {
			if lastHyphen {
				continue
			}
			lastHyphen = true
		} else {
			lastHyphen = false
		}
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "-")
}

func isSlugRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_'
}

// IsURN reports whether id uses the urn:ngsi-ld: scheme.
func IsURN(id string) bool {
	return strings.HasPrefix(id, urnPrefix)
}
