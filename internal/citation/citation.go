// Package citation rewrites URL-heavy Markdown into compact numeric citations.
//
// A document passes through four stages, always in this order:
//
//  1. domain prefixes are stripped from existing markers ("arxiv.org[2]" -> "[2]"),
//     unless Options.KeepDomainNames is set
//  2. inline links "[text](url)" become "text[n]"
//  3. bare http(s) URLs become "[n]"
//  4. a "## References" section listing every unique URL is appended
//
// Stages 2 and 3 share one Registry, so a URL receives the same number
// whether it appears as a link target or as a bare URL.
package citation

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// domainMarkerRe matches a host-like token glued to a bracketed number.
	// The number may use any Unicode decimal digits.
	domainMarkerRe = regexp.MustCompile(`[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\[(\p{Nd}+)\]`)

	// inlineLinkRe matches Markdown inline links: [text](url)
	inlineLinkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

	// rawURLRe matches http(s) URLs up to the next whitespace character.
	// Unicode separators, \v and the C1/information separators count as whitespace.
	rawURLRe = regexp.MustCompile(`https?://[^\s\v\x{1c}-\x{1f}\x{85}\p{Z}]+`)
)

// Options control the rewrite.
type Options struct {
	// GroupByDomain renders references under one "### host" heading per domain.
	GroupByDomain bool `json:"group_by_domain" yaml:"group_by_domain"`

	// KeepDomainNames leaves existing "host[n]" markers untouched.
	KeepDomainNames bool `json:"keep_domain_names" yaml:"keep_domain_names"`
}

// DefaultOptions returns the default configuration: grouped references and
// domain names kept.
func DefaultOptions() Options {
	return Options{GroupByDomain: true, KeepDomainNames: true}
}

// Result is the outcome of rewriting one document.
type Result struct {
	Text       string        `json:"content"`
	UniqueURLs int           `json:"unique_urls"`
	References []Reference   `json:"references"`
	Domains    []DomainGroup `json:"domains,omitempty"`
}

// Transform rewrites doc and returns the new text and the number of unique
// URLs found.
func Transform(doc string, opts Options) (string, int) {
	res := Rewrite(doc, opts)
	return res.Text, res.UniqueURLs
}

// Rewrite runs all four stages over doc with a fresh Registry.
func Rewrite(doc string, opts Options) *Result {
	reg := NewRegistry(opts.GroupByDomain)

	if !opts.KeepDomainNames {
		doc = StripDomainPrefixes(doc)
	}
	doc = rewriteLinks(doc, reg)
	doc = rewriteRawURLs(doc, reg)

	var b strings.Builder
	b.Grow(len(doc) + 64*reg.Len())
	b.WriteString(doc)
	reg.WriteReferences(&b, opts.GroupByDomain)

	return &Result{
		Text:       b.String(),
		UniqueURLs: reg.Len(),
		References: reg.References(),
		Domains:    reg.Groups(),
	}
}

// StripDomainPrefixes turns markers like "example.com[3]" into "[3]".
// The number is kept as written; the registry is not consulted.
func StripDomainPrefixes(doc string) string {
	return domainMarkerRe.ReplaceAllString(doc, "[$1]")
}

// rewriteLinks replaces every inline link with its text followed by the
// citation number of its target.
func rewriteLinks(doc string, reg *Registry) string {
	matches := inlineLinkRe.FindAllStringSubmatchIndex(doc, -1)
	if len(matches) == 0 {
		return doc
	}

	var b strings.Builder
	b.Grow(len(doc))
	lastEnd := 0

	for _, m := range matches {
		// m[2:4] = link text, m[4:6] = destination
		text := doc[m[2]:m[3]]
		n := reg.Cite(doc[m[4]:m[5]])

		b.WriteString(doc[lastEnd:m[0]])
		b.WriteString(text)
		writeMarker(&b, n)
		lastEnd = m[1]
	}

	b.WriteString(doc[lastEnd:])
	return b.String()
}

// rewriteRawURLs replaces bare URLs with citation markers. A URL directly
// preceded by '(' is left alone; stage 2 has already consumed link targets,
// so whatever remains there is parenthesized prose.
//
// The run of non-space characters is maximal, so it can never be followed
// by ')' and a trailing ')' stays part of the URL.
func rewriteRawURLs(doc string, reg *Registry) string {
	var b strings.Builder
	lastEnd := 0
	pos := 0

	for pos < len(doc) {
		loc := rawURLRe.FindStringIndex(doc[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]

		if start > 0 && doc[start-1] == '(' {
			// Retry one byte later; an embedded URL in the same token may still match.
			pos = start + 1
			continue
		}

		if lastEnd == 0 {
			b.Grow(len(doc))
		}
		b.WriteString(doc[lastEnd:start])
		writeMarker(&b, reg.Cite(doc[start:end]))
		lastEnd = end
		pos = end
	}

	if lastEnd == 0 {
		return doc
	}
	b.WriteString(doc[lastEnd:])
	return b.String()
}

func writeMarker(b *strings.Builder, n int) {
	b.WriteByte('[')
	b.WriteString(strconv.Itoa(n))
	b.WriteByte(']')
}
