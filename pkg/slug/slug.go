package slug

import (
	"regexp"
	"strings"
)

var (
	strippedRegexp  = regexp.MustCompile(`[^\w\s-]`)
	separatorRegexp = regexp.MustCompile(`[\s_-]+`)
	alnumRegexp     = regexp.MustCompile(`[^a-z0-9]`)
)

// idPrefixLen is how much of a sanitized entity id is used when the name
// yields an empty slug.
const idPrefixLen = 20

// idSuffixLen is how much of the entity id is appended to reduce collision
// risk for auto-generated slugs.
const idSuffixLen = 8

// Generate creates a URL-friendly slug from the given name. Characters
// outside word characters, whitespace, and hyphens are stripped; runs of
// whitespace, underscores, and hyphens collapse to a single hyphen.
//
// Examples:
//   - "My Cool List!!" → "my-cool-list"
//   - "hello   world" → "hello-world"
//   - "a_b-c" → "a-b-c"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strippedRegexp.ReplaceAllString(s, "")
	s = separatorRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ForWishlist derives a slug for a wishlist from its display name and entity
// id. When the cleaned name is empty, a sanitized prefix of the id is used
// instead. When includeIDSuffix is true, the last characters of the id are
// appended so auto-generated slugs for identically named wishlists do not
// collide; callers pass false when the user supplied a custom slug base.
//
// The function is pure: the same inputs always yield the same slug, so a
// rename without an explicit slug can regenerate consistently.
func ForWishlist(name, id string, includeIDSuffix bool) string {
	base := Generate(name)
	if base == "" {
		cleaned := alnumRegexp.ReplaceAllString(strings.ToLower(id), "")
		if len(cleaned) > idPrefixLen {
			cleaned = cleaned[:idPrefixLen]
		}
		base = cleaned
	}
	if base == "" {
		return ""
	}

	if includeIDSuffix && id != "" {
		suffix := id
		if len(suffix) > idSuffixLen {
			suffix = suffix[len(suffix)-idSuffixLen:]
		}
		base = base + "-" + strings.ToLower(suffix)
	}

	return base
}
