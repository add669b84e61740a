/*
Package resolver converts a vendor redirector URL into its terminal
end-site URL via manual HTTP redirect hops. It is feature-flagged and
guarded against SSRF: loopback, link-local and RFC-1918 literals are
rejected before any network I/O, and only http/https schemes are allowed.

Resolution is bounded by a per-request URL count, a per-URL timeout and a
total stopwatch; URLs that exceed any budget are left unresolved and the
caller marks them redirect_only. Results are cached in-process with a TTL
and oldest-eviction once the cache is full.
*/
package resolver
