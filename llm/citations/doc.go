/*
Package citations normalizes vendor-specific grounding evidence into a
uniform Citation list. It is the only package that interprets provider
payload shapes for evidence: Responses-style `url_citation` annotations and
`tool_result` items for Provider A, and `grounding_metadata` for Provider B.

Normalization strips tracking parameters and fragments, lowercases the
host, and resolves the registrable domain (eTLD+1) via the public suffix
list. Deduplication groups by normalized URL and registrable domain,
keeping one citation per domain by default (preferring PDFs and research
paths, then longer titles, then first-seen order); caller-supplied
authority domains may keep a second citation when the retained group mixes
content types.
*/
package citations
