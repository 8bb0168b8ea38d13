// Package markdown moves documents between HTML and Markdown around the
// citation rewrite: HTML exports are converted to Markdown before links are
// extracted, and Markdown is rendered to HTML for previews.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// converter.Converter and goldmark.Markdown are safe for concurrent use.
var (
	htmlToMarkdown = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)

	markdownToHTML = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
)

// FromHTML converts an HTML document to Markdown. Links become inline
// [text](url) links. A non-empty domain resolves relative link targets.
func FromHTML(content, domain string) (string, error) {
	var opts []converter.ConvertOptionFunc
	if domain != "" {
		opts = append(opts, converter.WithDomain(domain))
	}
	md, err := htmlToMarkdown.ConvertString(content, opts...)
	if err != nil {
		return "", fmt.Errorf("convert html to markdown: %w", err)
	}
	return md, nil
}

// Prepare converts content to Markdown when mode calls for it and reports
// whether a conversion happened.
func Prepare(content string, mode HTMLMode, domain string) (string, bool, error) {
	if !mode.ShouldConvert(content) {
		return content, false, nil
	}
	md, err := FromHTML(content, domain)
	if err != nil {
		return "", false, err
	}
	return md, true, nil
}

// ToHTML renders Markdown to HTML with GitHub Flavored Markdown enabled.
func ToHTML(content string) (string, error) {
	var buf bytes.Buffer
	if err := markdownToHTML.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
