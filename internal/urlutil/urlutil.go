package urlutil

import (
	"net/url"
	"strings"
)

// IsURL reports whether s parses as an absolute URL with a host. It is the
// gate in front of every outbound fetch and never panics on malformed input.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// ExtractSlug returns the substring of the URL's path from the last path
// separator to the end, "/" included. A root or empty path yields "/", as
// does a trailing slash.
func ExtractSlug(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "/"
	}

	path := u.Path
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "/"
	}
	return path[i:]
}
