package article

import (
	"regexp"
	"strings"
)

var imagePattern = regexp.MustCompile(`!\[([^\]]*)\]\(\s*<?([^)\s>]+)>?(?:\s+"[^"]*")?\s*\)`)

// ImageRef is a markdown image reference to a local file.
type ImageRef struct {
	Alt  string
	Path string
}

// ImageRefs lists local image references in body, in order of first
// appearance. Remote URLs and data URIs are skipped.
func ImageRefs(body string) []ImageRef {
	var refs []ImageRef
	seen := make(map[string]bool)
	for _, m := range imagePattern.FindAllStringSubmatch(body, -1) {
		p := m[2]
		if isRemote(p) || seen[p] {
			continue
		}
		seen[p] = true
		refs = append(refs, ImageRef{Alt: m[1], Path: p})
	}
	return refs
}

func isRemote(p string) bool {
	lower := strings.ToLower(p)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(lower, "//")
}

// RewriteImages replaces local image paths with the URLs in urls. Paths with
// no entry are left untouched.
func RewriteImages(body string, urls map[string]string) string {
	if len(urls) == 0 {
		return body
	}
	return imagePattern.ReplaceAllStringFunc(body, func(match string) string {
		m := imagePattern.FindStringSubmatch(match)
		url, ok := urls[m[2]]
		if !ok {
			return match
		}
		return "![" + m[1] + "](" + url + ")"
	})
}
