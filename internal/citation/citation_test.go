package citation_test

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbh/mdcite/internal/citation"
)

var (
	flat    = citation.Options{GroupByDomain: false, KeepDomainNames: true}
	grouped = citation.Options{GroupByDomain: true, KeepDomainNames: true}
)

func TestTransform_Scenarios(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  citation.Options
		want  string
		count int
	}{
		{
			name:  "fragment variants share a number",
			input: "[OpenAI](https://openai.com/blog#intro) and [OpenAI again](https://openai.com/blog)",
			opts:  flat,
			want: "OpenAI[1] and OpenAI again[1]" +
				"\n\n## References\n\n" +
				"[1] https://openai.com/blog\n\n",
			count: 1,
		},
		{
			name:  "domain groups keep global numbering",
			input: "[A](https://a.com/x) then [B](https://b.com/y) then [C](https://a.com/z)",
			opts:  grouped,
			want: "A[1] then B[2] then C[3]" +
				"\n\n## References\n\n" +
				"### a.com\n\n[1] https://a.com/x\n\n[3] https://a.com/z\n\n" +
				"### b.com\n\n[2] https://b.com/y\n\n",
			count: 3,
		},
		{
			name:  "raw url",
			input: "See https://example.org/page for details.",
			opts:  grouped,
			want: "See [1] for details." +
				"\n\n## References\n\n" +
				"### example.org\n\n[1] https://example.org/page\n\n",
			count: 1,
		},
		{
			name:  "domain prefix stripped before link scanning",
			input: "Results from arxiv.org[2] hold.",
			opts:  citation.Options{GroupByDomain: true, KeepDomainNames: false},
			want:  "Results from [2] hold.\n\n## References\n\n",
			count: 0,
		},
		{
			name:  "domain prefix kept by default",
			input: "Results from arxiv.org[2] hold.",
			opts:  citation.DefaultOptions(),
			want:  "Results from arxiv.org[2] hold.\n\n## References\n\n",
			count: 0,
		},
		{
			name:  "raw url reuses link number",
			input: "[docs](https://a.com/p) and again https://a.com/p#frag here",
			opts:  flat,
			want: "docs[1] and again [1] here" +
				"\n\n## References\n\n" +
				"[1] https://a.com/p\n\n",
			count: 1,
		},
		{
			name:  "raw urls numbered after all links",
			input: "https://raw.com/1 before [link](https://link.com/2)",
			opts:  flat,
			want: "[2] before link[1]" +
				"\n\n## References\n\n" +
				"[1] https://link.com/2\n\n[2] https://raw.com/1\n\n",
			count: 2,
		},
		{
			name:  "url after open paren is skipped",
			input: "Source (https://a.com/x) here.",
			opts:  flat,
			want:  "Source (https://a.com/x) here.\n\n## References\n\n",
			count: 0,
		},
		{
			name:  "embedded url after open paren still matches",
			input: "(https://a.com/r?u=https://b.com/y",
			opts:  flat,
			want: "(https://a.com/r?u=[1]" +
				"\n\n## References\n\n" +
				"[1] https://b.com/y\n\n",
			count: 1,
		},
		{
			name:  "trailing paren stays in raw url",
			input: "see https://a.com/x) ok",
			opts:  flat,
			want: "see [1] ok" +
				"\n\n## References\n\n" +
				"[1] https://a.com/x)\n\n",
			count: 1,
		},
		{
			name:  "unparseable target grouped under empty domain",
			input: "[Intro](section-1)",
			opts:  grouped,
			want: "Intro[1]" +
				"\n\n## References\n\n" +
				"### \n\n[1] section-1\n\n",
			count: 1,
		},
		{
			name:  "no urls still adds heading",
			input: "plain text",
			opts:  grouped,
			want:  "plain text\n\n## References\n\n",
			count: 0,
		},
		{
			name:  "link text spanning lines",
			input: "[multi\nline](https://a.com/)",
			opts:  flat,
			want: "multi\nline[1]" +
				"\n\n## References\n\n" +
				"[1] https://a.com/\n\n",
			count: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n := citation.Transform(tt.input, tt.opts)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.count, n)
		})
	}
}

func TestTransform_DistinctURLsAreNotMerged(t *testing.T) {
	input := "[a](https://a.com/p) [b](https://a.com/p/) [c](https://A.com/p) [d](https://a.com/p?x=1)"

	got, n := citation.Transform(input, flat)

	assert.Equal(t, 4, n)
	assert.True(t, strings.HasPrefix(got, "a[1] b[2] c[3] d[4]"))
}

func TestTransform_UnicodeWhitespaceEndsRawURL(t *testing.T) {
	input := "see https://a.com/x\u00a0and https://b.com/y\u2028next"

	got, n := citation.Transform(input, flat)

	require.Equal(t, 2, n)
	assert.True(t, strings.HasPrefix(got, "see [1]\u00a0and [2]\u2028next"))
}

var (
	markerRe = regexp.MustCompile(`\[(\d+)\]`)
	entryRe  = regexp.MustCompile(`(?m)^\[(\d+)\] (\S*)$`)
)

func TestRewrite_ReferencesAreComplete(t *testing.T) {
	input := strings.Join([]string{
		"# Report",
		"Growth was strong [Reuters](https://reuters.com/a#p2) and [FT](https://ft.com/b).",
		"Raw mention https://reuters.com/a and https://example.org/c here.",
		"Again [Reuters](https://reuters.com/a) plus [Docs](https://example.org/c#x).",
	}, "\n")

	for _, opts := range []citation.Options{flat, grouped} {
		t.Run(fmt.Sprintf("grouped=%v", opts.GroupByDomain), func(t *testing.T) {
			res := citation.Rewrite(input, opts)

			body, refs, found := strings.Cut(res.Text, "\n\n## References\n\n")
			require.True(t, found)

			cited := map[string]bool{}
			for _, m := range markerRe.FindAllStringSubmatch(body, -1) {
				cited[m[1]] = true
			}
			listed := map[string]string{}
			for _, m := range entryRe.FindAllStringSubmatch(refs, -1) {
				listed[m[1]] = m[2]
			}

			assert.Len(t, listed, res.UniqueURLs)
			assert.Len(t, cited, res.UniqueURLs)
			for n := range cited {
				assert.Contains(t, listed, n)
			}
			assert.Equal(t, 3, res.UniqueURLs)
			assert.Equal(t, "https://reuters.com/a", listed["1"])
			assert.Equal(t, "https://ft.com/b", listed["2"])
			assert.Equal(t, "https://example.org/c", listed["3"])
		})
	}
}

func TestRewrite_DomainGroupsPartitionReferences(t *testing.T) {
	input := "[1](https://a.com/1) [2](https://b.com/2) https://a.com/3 [4](http://c.org/4) https://b.com/5"

	res := citation.Rewrite(input, grouped)

	require.Len(t, res.Domains, 3)
	assert.Equal(t, "a.com", res.Domains[0].Domain)
	assert.Equal(t, "b.com", res.Domains[1].Domain)
	assert.Equal(t, "c.org", res.Domains[2].Domain)

	var union []citation.Reference
	for _, g := range res.Domains {
		union = append(union, g.References...)
	}
	assert.ElementsMatch(t, res.References, union)
	assert.Len(t, union, res.UniqueURLs)
}

func TestRewrite_FlatModeHasNoDomains(t *testing.T) {
	res := citation.Rewrite("[a](https://a.com/)", flat)

	assert.Empty(t, res.Domains)
	require.Len(t, res.References, 1)
	assert.Equal(t, "a.com", res.References[0].Domain)
}

func TestStripDomainPrefixes(t *testing.T) {
	tests := map[string]string{
		"arxiv.org[2]":               "[2]",
		"see news.bbc.co.uk[13] now": "see [13] now",
		"my-site.io[7][8]":           "[7][8]",
		"localhost[2]":               "localhost[2]",
		"example.c[2]":               "example.c[2]",
		"example.com[x]":             "example.com[x]",
		"arxiv.org[\u0663]":          "[\u0663]",
		"nature.com[\u0967\u0968]":   "[\u0967\u0968]",
	}
	for in, want := range tests {
		assert.Equal(t, want, citation.StripDomainPrefixes(in), in)
	}
}

func TestTransform_ConcurrentCallsAreIndependent(t *testing.T) {
	docs := []string{
		"[a](https://a.com/) https://b.com/",
		"https://c.com/ [d](https://d.com/)",
		"[e](https://e.com/#x) [e](https://e.com/)",
	}
	want := make([]string, len(docs))
	for i, d := range docs {
		want[i], _ = citation.Transform(d, grouped)
	}

	var wg sync.WaitGroup
	for round := 0; round < 20; round++ {
		for i, d := range docs {
			wg.Add(1)
			go func(i int, d string) {
				defer wg.Done()
				got, _ := citation.Transform(d, grouped)
				assert.Equal(t, want[i], got)
			}(i, d)
		}
	}
	wg.Wait()
}
