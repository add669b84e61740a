package citations

import (
	"net/url"
	"strings"
)

// redirectorRule describes one known vendor redirector: requests whose host
// matches Host and whose path has PathPrefix carry the terminal URL in one
// of QueryKeys.
type redirectorRule struct {
	Host       string
	PathPrefix string
	QueryKeys  []string
}

// redirectors is the table of vendor-specific URL redirectors known to the
// extractor. Query-parameter recovery is attempted for these hosts before
// any network hop is considered.
var redirectors = []redirectorRule{
	{
		Host:       "vertexaisearch.cloud.google.com",
		PathPrefix: "/grounding-api-redirect/",
		QueryKeys:  []string{"url"},
	},
	{
		Host:       "www.google.com",
		PathPrefix: "/url",
		QueryKeys:  []string{"url", "q"},
	},
}

// IsRedirector reports whether raw matches a known redirector host+prefix.
func IsRedirector(raw string) bool {
	_, ok := matchRedirector(raw)
	return ok
}

func matchRedirector(raw string) (redirectorRule, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return redirectorRule{}, false
	}
	host := strings.ToLower(u.Hostname())
	for _, rule := range redirectors {
		if host == rule.Host && strings.HasPrefix(u.Path, rule.PathPrefix) {
			return rule, true
		}
	}
	return redirectorRule{}, false
}

// RecoverFromQuery attempts to pull the terminal URL out of a known
// redirector's query string. It accepts only http/https targets whose host
// is not itself a redirector, per the SSRF-adjacent sanity check.
func RecoverFromQuery(raw string) (string, bool) {
	rule, ok := matchRedirector(raw)
	if !ok {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	q := u.Query()
	for _, key := range rule.QueryKeys {
		target := q.Get(key)
		if target == "" {
			continue
		}
		tu, err := url.Parse(target)
		if err != nil {
			continue
		}
		if tu.Scheme != "http" && tu.Scheme != "https" {
			continue
		}
		if IsRedirector(target) {
			continue
		}
		return target, true
	}
	return "", false
}
