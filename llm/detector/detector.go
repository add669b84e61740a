// Package detector computes grounding outcomes from a provider payload
// without duplicating the traversal logic that lives in package citations.
// It is pure: no I/O, no shared state, safe to call from both the extractor
// and the vendor adapter's REQUIRED-mode check.
package detector

import (
	"strings"

	"github.com/relaylayer/llmrouter/llm/citations"
)

// Result is the outcome of inspecting one provider response for grounding
// evidence.
type Result struct {
	ToolsUsed     bool
	ToolCallCount int
	// VendorSpecific carries provider A's observed item kinds, or provider
	// B's signal keys and flat source URLs, for telemetry/debugging only.
	VendorSpecific map[string]any
}

// DetectProviderA scans a Responses-style output array (buffered or
// accumulated from a stream) for web_search* items.
func DetectProviderA(output []citations.ResponsesOutputItem) Result {
	kinds := map[string]struct{}{}
	count := 0
	for _, item := range output {
		if strings.HasPrefix(item.Type, "web_search") {
			count++
			kinds[item.Type] = struct{}{}
		}
	}
	kindList := make([]string, 0, len(kinds))
	for k := range kinds {
		kindList = append(kindList, k)
	}
	return Result{
		ToolsUsed:      count > 0,
		ToolCallCount:  count,
		VendorSpecific: map[string]any{"kinds": kindList},
	}
}

// DetectProviderB looks for the presence of any recognized grounding signal
// key and extracts a flat list of candidate source URLs.
func DetectProviderB(meta citations.GroundingMetadata) Result {
	var signals []string
	var sourceURLs []string

	if len(meta.WebSearchQueries) > 0 {
		signals = append(signals, "grounding_metadata", "web_search_queries")
	}
	if len(meta.GroundingChunks) > 0 {
		signals = append(signals, "grounding_chunks")
		for _, c := range meta.GroundingChunks {
			sourceURLs = append(sourceURLs, c.URI)
		}
	}
	if len(meta.GroundingSupports) > 0 {
		signals = append(signals, "grounding_supports")
	}

	return Result{
		ToolsUsed:     len(signals) > 0,
		ToolCallCount: len(meta.WebSearchQueries),
		VendorSpecific: map[string]any{
			"signals":     signals,
			"source_urls": sourceURLs,
		},
	}
}
