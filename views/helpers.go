package views

import "net/url"

// path joins parts into an absolute path, escaping every odd part as an id.
func path(parts ...string) string {
	out := ""
	for i, p := range parts {
		if i%2 == 1 {
			p = url.PathEscape(p)
		}
		out += "/" + p
	}
	return out
}
