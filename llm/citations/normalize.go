package citations

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// trackingParams are query keys stripped from every citation URL before
// dedup and telemetry, per the normalization contract.
var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {},
	"utm_content": {}, "fbclid": {}, "gclid": {}, "msclkid": {},
	"ref": {}, "source": {}, "sr_share": {},
}

// Normalize strips tracking params and the fragment, lowercases the host,
// and returns the canonical URL string. It is idempotent:
// Normalize(Normalize(u)) == Normalize(u).
func Normalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if _, tracked := trackingParams[strings.ToLower(key)]; tracked {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// RegistrableDomain computes the eTLD+1 of a URL's host using the public
// suffix list (covers multi-level TLDs like co.uk, com.au, ac.jp).
func RegistrableDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	if ip := net.ParseIP(host); ip != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
