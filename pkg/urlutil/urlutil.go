// Package urlutil turns raw user input into a list of scannable URLs.
package urlutil

import (
	"net/url"
	"strings"
)

// ParseList splits raw batch input into an ordered list of valid absolute
// URLs. Tokens are separated by commas and/or newlines; whitespace is
// trimmed, empty and malformed tokens are dropped. Duplicate URLs are kept:
// dedup happens at the image level, not the URL level.
func ParseList(raw string) []string {
	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})

	var urls []string
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if IsValid(token) {
			urls = append(urls, token)
		}
	}
	return urls
}

// IsValid reports whether s is a syntactically well-formed absolute URL
// with both a scheme and a host.
func IsValid(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
