package citation

import (
	"fmt"
	"strings"
)

// Reference is one unique URL and the citation number assigned to it.
type Reference struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	Domain string `json:"domain"`
}

// DomainGroup holds the references that share a host, in first-seen order.
type DomainGroup struct {
	Domain     string      `json:"domain"`
	References []Reference `json:"references"`
}

// Registry assigns citation numbers to canonical URLs for a single document.
// Numbers start at 1 and follow first-seen order. A Registry must not be
// shared between documents.
type Registry struct {
	numbers map[string]int
	refs    []Reference

	grouped     bool
	domainOrder []string
	domains     map[string][]Reference
}

// NewRegistry returns an empty registry. When groupByDomain is set the
// registry also maintains the per-host table used for grouped references.
func NewRegistry(groupByDomain bool) *Registry {
	r := &Registry{
		numbers: make(map[string]int),
		grouped: groupByDomain,
	}
	if groupByDomain {
		r.domains = make(map[string][]Reference)
	}
	return r
}

// Cite returns the citation number for rawURL, assigning the next number if
// its canonical form has not been seen before.
func (r *Registry) Cite(rawURL string) int {
	canonical := CanonicalURL(rawURL)
	if n, ok := r.numbers[canonical]; ok {
		return n
	}

	ref := Reference{
		Number: len(r.refs) + 1,
		URL:    canonical,
		Domain: Host(canonical),
	}
	r.numbers[canonical] = ref.Number
	r.refs = append(r.refs, ref)

	if r.grouped {
		if _, seen := r.domains[ref.Domain]; !seen {
			r.domainOrder = append(r.domainOrder, ref.Domain)
		}
		r.domains[ref.Domain] = append(r.domains[ref.Domain], ref)
	}

	return ref.Number
}

// Len returns the number of unique URLs cited so far.
func (r *Registry) Len() int {
	return len(r.refs)
}

// References returns every reference in citation-number order.
func (r *Registry) References() []Reference {
	out := make([]Reference, len(r.refs))
	copy(out, r.refs)
	return out
}

// Groups returns the domain table in host first-seen order. It is empty
// unless the registry was created with grouping enabled.
func (r *Registry) Groups() []DomainGroup {
	groups := make([]DomainGroup, 0, len(r.domainOrder))
	for _, domain := range r.domainOrder {
		refs := make([]Reference, len(r.domains[domain]))
		copy(refs, r.domains[domain])
		groups = append(groups, DomainGroup{Domain: domain, References: refs})
	}
	return groups
}

// WriteReferences appends the References section to b. Grouped output is
// only possible when the registry tracked domains.
func (r *Registry) WriteReferences(b *strings.Builder, grouped bool) {
	b.WriteString("\n\n## References\n\n")

	if grouped && r.grouped {
		for _, domain := range r.domainOrder {
			fmt.Fprintf(b, "### %s\n\n", domain)
			for _, ref := range r.domains[domain] {
				fmt.Fprintf(b, "[%d] %s\n\n", ref.Number, ref.URL)
			}
		}
		return
	}

	for _, ref := range r.refs {
		fmt.Fprintf(b, "[%d] %s\n\n", ref.Number, ref.URL)
	}
}
