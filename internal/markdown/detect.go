package markdown

import (
	"fmt"
	"regexp"
	"strings"
)

var htmlStartRe = regexp.MustCompile(`(?i)^\s*(<!doctype\s+html|<html[\s>]|<body[\s>]|<\?xml[^>]*>\s*<html)`)

// LooksLikeHTML returns true if content starts like an HTML document
// (doctype, <html> or <body>) rather than Markdown.
func LooksLikeHTML(content string) bool {
	return htmlStartRe.MatchString(content)
}

// HTMLMode controls whether input is converted from HTML before rewriting.
type HTMLMode string

const (
	// HTMLAuto converts only when LooksLikeHTML reports an HTML document.
	HTMLAuto HTMLMode = "auto"
	// HTMLAlways always converts.
	HTMLAlways HTMLMode = "always"
	// HTMLNever treats every input as Markdown.
	HTMLNever HTMLMode = "never"
)

// ParseHTMLMode parses a mode name. An empty string means HTMLAuto.
func ParseHTMLMode(s string) (HTMLMode, error) {
	switch m := HTMLMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return HTMLAuto, nil
	case HTMLAuto, HTMLAlways, HTMLNever:
		return m, nil
	default:
		return "", fmt.Errorf("invalid html mode %q (want auto, always or never)", s)
	}
}

// ShouldConvert reports whether content must be converted under mode.
func (m HTMLMode) ShouldConvert(content string) bool {
	switch m {
	case HTMLAlways:
		return true
	case HTMLNever:
		return false
	default:
		return LooksLikeHTML(content)
	}
}
