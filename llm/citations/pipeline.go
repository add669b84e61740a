package citations

import (
	"sort"
	"strings"

	llmpkg "github.com/relaylayer/llmrouter/llm"
)

// Resolver performs the optional HTTP-hop resolution step for redirector
// URLs that cannot be recovered from their own query string. Implemented by
// package resolver; kept as an interface here to avoid an import cycle.
type Resolver interface {
	Resolve(url string) (resolved string, truncated bool)
}

// Finalize normalizes every citation's URL, recovers redirector targets,
// computes registrable domains, and deduplicates per domain. authority is
// an optional caller-supplied set of domains allowed a higher per-domain
// cap (e.g. official sources that may appear as both PDF and HTML).
func Finalize(cites []llmpkg.Citation, authority map[string]bool, resolver Resolver) []llmpkg.Citation {
	resolved := make([]llmpkg.Citation, 0, len(cites))
	for _, c := range cites {
		resolved = append(resolved, resolveOne(c, resolver))
	}
	return Dedup(resolved, authority)
}

func resolveOne(c llmpkg.Citation, resolver Resolver) llmpkg.Citation {
	norm, err := Normalize(c.URL)
	if err == nil {
		c.URL = norm
	}

	if target, ok := RecoverFromQuery(c.URL); ok {
		if n, err := Normalize(target); err == nil {
			target = n
		}
		c.ResolvedURL = target
	} else if IsRedirector(c.URL) && resolver != nil {
		if target, truncated := resolver.Resolve(c.URL); target != "" {
			c.ResolvedURL = target
		} else if truncated {
			c.SourceType = llmpkg.SourceRedirectOnly
		}
	}

	domainSource := c.URL
	if c.ResolvedURL != "" {
		domainSource = c.ResolvedURL
	}
	if c.SourceDomain == "" {
		c.SourceDomain = RegistrableDomain(domainSource)
	}
	return c
}

// Dedup groups citations by normalized URL then registrable domain, keeping
// one per domain by default. Authority domains (caller-supplied) may keep a
// second citation when the group mixes content types (e.g. a PDF/research
// item alongside an ordinary page). It is stable: Dedup(Dedup(x)) == Dedup(x).
func Dedup(cites []llmpkg.Citation, authority map[string]bool) []llmpkg.Citation {
	seenURL := map[string]bool{}
	byDomain := map[string][]llmpkg.Citation{}
	order := []string{}

	for _, c := range cites {
		key := c.URL
		if c.ResolvedURL != "" {
			key = c.ResolvedURL
		}
		if seenURL[key] {
			continue
		}
		seenURL[key] = true

		domain := c.SourceDomain
		if _, ok := byDomain[domain]; !ok {
			order = append(order, domain)
		}
		byDomain[domain] = append(byDomain[domain], c)
	}

	out := make([]llmpkg.Citation, 0, len(cites))
	for _, domain := range order {
		group := byDomain[domain]
		sort.SliceStable(group, func(i, j int) bool {
			return lessRetention(group[i], group[j])
		})

		out = append(out, group[0])
		if authority[domain] && hasMixedContentTypes(group) {
			// keep the best citation of the other content type too, so the
			// retained pair is itself mixed and survives a second pass
			for _, c := range group[1:] {
				if preferredTier(c) != preferredTier(group[0]) {
					out = append(out, c)
					break
				}
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// lessRetention implements the within-domain preference order: PDFs and
// research paths first, then longer titles, then first-seen (lower rank).
func lessRetention(a, b llmpkg.Citation) bool {
	pa, pb := preferredTier(a), preferredTier(b)
	if pa != pb {
		return pa < pb
	}
	if len(a.Title) != len(b.Title) {
		return len(a.Title) > len(b.Title)
	}
	return a.Rank < b.Rank
}

func preferredTier(c llmpkg.Citation) int {
	lower := strings.ToLower(c.URL)
	if strings.Contains(lower, ".pdf") || strings.Contains(lower, "/research/") || strings.Contains(lower, "/paper") {
		return 0
	}
	return 1
}

// hasMixedContentTypes reports whether group contains at least one
// preferredTier-0 citation (PDF/research) and at least one tier-1 citation,
// the authority-domain exception that allows a second retained citation.
func hasMixedContentTypes(group []llmpkg.Citation) bool {
	if len(group) < 2 {
		return false
	}
	seenTier0, seenTier1 := false, false
	for _, c := range group {
		if preferredTier(c) == 0 {
			seenTier0 = true
		} else {
			seenTier1 = true
		}
	}
	return seenTier0 && seenTier1
}
