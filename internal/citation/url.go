package citation

import "strings"

// CanonicalURL strips the fragment from a URL. Nothing else is normalized:
// trailing slashes, case and query strings are significant.
func CanonicalURL(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i]
	}
	return raw
}

// Host returns the network-location component of a URL, including any
// userinfo and port ("user@a.com:8080"). URLs without an authority, and
// authorities with unbalanced IPv6 brackets, yield "".
func Host(raw string) string {
	// Tabs and line breaks are dropped and leading controls trimmed before splitting.
	s := strings.Map(func(r rune) rune {
		if r == '\t' || r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, raw)
	s = strings.TrimLeftFunc(s, func(r rune) bool { return r <= ' ' })

	if i := schemeEnd(s); i > 0 {
		s = s[i+1:]
	}
	if !strings.HasPrefix(s, "//") {
		return ""
	}

	authority := s[2:]
	if end := strings.IndexAny(authority, "/?#"); end >= 0 {
		authority = authority[:end]
	}

	open := strings.Contains(authority, "[")
	closed := strings.Contains(authority, "]")
	if open != closed {
		return ""
	}
	return authority
}

// schemeEnd returns the index of the ':' terminating a URL scheme, or -1.
func schemeEnd(s string) int {
	i := strings.IndexByte(s, ':')
	if i <= 0 || !isASCIILetter(s[0]) {
		return -1
	}
	for j := 1; j < i; j++ {
		c := s[j]
		if !isASCIILetter(c) && !('0' <= c && c <= '9') && c != '+' && c != '-' && c != '.' {
			return -1
		}
	}
	return i
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
