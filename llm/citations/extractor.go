package citations

import (
	"strings"

	llmpkg "github.com/relaylayer/llmrouter/llm"
)

// ExtractProviderA walks a Responses-style output array. web_search* items
// count as tool calls; message items contribute anchored url_citation
// annotations; tool_result items contribute unlinked URLs.
func ExtractProviderA(output []ResponsesOutputItem) ([]llmpkg.Citation, Counts) {
	var out []llmpkg.Citation
	counts := Counts{}
	rank := 0
	shapes := map[string]struct{}{}

	for _, item := range output {
		if strings.HasPrefix(item.Type, "web_search") {
			counts.ToolCallCount++
			shapes["web_search"] = struct{}{}
			continue
		}

		if item.Type == "message" {
			for _, part := range item.Content {
				for _, ann := range part.Annotations {
					shapes["url_citation"] = struct{}{}
					out = append(out, llmpkg.Citation{
						URL:        ann.URL,
						Title:      ann.Title,
						SourceType: llmpkg.SourceAnchored,
						Rank:       rank,
						Raw:        ann,
					})
					rank++
					counts.AnchoredCitationsCount++
				}
			}
			continue
		}

		if item.Type == "tool_result" {
			shapes["tool_result"] = struct{}{}
			for _, u := range item.ToolResultURLs {
				out = append(out, llmpkg.Citation{
					URL:        u,
					SourceType: llmpkg.SourceUnlinked,
					Rank:       rank,
				})
				rank++
				counts.UnlinkedSourcesCount++
			}
		}
	}

	counts.CitationsShapeSet = shapeSetList(shapes)
	return out, counts
}

// ExtractProviderB builds citations from Gemini's grounding_metadata.
// Chunks referenced by a grounding_supports segment become anchored;
// chunks never referenced by any support are unlinked. responseTextLen is
// used only to report evidence coverage to the caller, not to filter.
func ExtractProviderB(meta GroundingMetadata, responseTextLen int) ([]llmpkg.Citation, Counts, float64) {
	var out []llmpkg.Citation
	counts := Counts{ToolCallCount: len(meta.WebSearchQueries)}
	shapes := map[string]struct{}{}
	if len(meta.WebSearchQueries) > 0 {
		shapes["web_search_queries"] = struct{}{}
	}

	anchoredChunks := map[int]bool{}
	var coveredChars int
	if len(meta.GroundingSupports) > 0 {
		shapes["grounding_supports"] = struct{}{}
		for _, support := range meta.GroundingSupports {
			coveredChars += len([]rune(support.SegmentText))
			for _, idx := range support.ChunkIndices {
				anchoredChunks[idx] = true
			}
		}
	}

	if len(meta.GroundingChunks) > 0 {
		shapes["grounding_chunks"] = struct{}{}
	}
	for i, chunk := range meta.GroundingChunks {
		sourceType := llmpkg.SourceUnlinked
		if anchoredChunks[i] {
			sourceType = llmpkg.SourceAnchored
			counts.AnchoredCitationsCount++
		} else {
			counts.UnlinkedSourcesCount++
		}
		out = append(out, llmpkg.Citation{
			URL:          chunk.URI,
			Title:        chunk.Title,
			SourceDomain: chunk.Domain,
			SourceType:   sourceType,
			Rank:         i,
			Raw:          chunk,
		})
	}

	counts.CitationsShapeSet = shapeSetList(shapes)

	coverage := 0.0
	if responseTextLen > 0 {
		coverage = float64(coveredChars) / float64(responseTextLen)
	}
	return out, counts, coverage
}

func shapeSetList(shapes map[string]struct{}) []string {
	out := make([]string, 0, len(shapes))
	for k := range shapes {
		out = append(out, k)
	}
	return out
}
