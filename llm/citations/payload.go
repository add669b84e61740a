package citations

// The types below mirror just enough of each vendor's response shape for
// evidence extraction. They are not full wire-format structs — adapters
// decode the vendor's actual JSON and project it into these before calling
// Extract*, keeping the extractor itself vendor-agnostic.

// ResponsesOutputItem is one item of a Responses-style `output[]` array.
type ResponsesOutputItem struct {
	Type           string
	Content        []ResponsesContentPart // populated when Type == "message"
	ToolResultURLs []string                // populated when Type == "tool_result"
}

// ResponsesContentPart is one content part of a message output item.
type ResponsesContentPart struct {
	Type        string
	Text        string
	Annotations []URLCitationAnnotation
}

// URLCitationAnnotation is a span-anchored citation attached to output text.
type URLCitationAnnotation struct {
	URL        string
	Title      string
	StartIndex int
	EndIndex   int
}

// GroundingMetadata mirrors Gemini's grounding_metadata object.
type GroundingMetadata struct {
	WebSearchQueries  []string
	GroundingChunks   []GroundingChunk
	GroundingSupports []GroundingSupport
}

// GroundingChunk is one candidate source surfaced by Gemini's search tool.
type GroundingChunk struct {
	URI    string
	Title  string
	Domain string
}

// GroundingSupport ties a content segment to one or more grounding chunks.
type GroundingSupport struct {
	ChunkIndices []int
	SegmentText  string
}

// Counts summarizes the evidence observed in one response, reported
// regardless of whether any anchored citation survived extraction.
type Counts struct {
	AnchoredCitationsCount int
	UnlinkedSourcesCount   int
	ToolCallCount          int
	CitationsShapeSet      []string
}
