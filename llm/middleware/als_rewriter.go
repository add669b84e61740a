package middleware

import (
	"context"
	"time"

	llmpkg "github.com/relaylayer/llmrouter/llm"
	"github.com/relaylayer/llmrouter/llm/als"
)

// ALSRewriter injects an Ambient Location Signal block into the system turn
// when the request carries an ALSContext. It never touches the user turn —
// prompt immutability forbids folding ALS text into the caller's own message.
type ALSRewriter struct {
	// Now lets tests pin the clock; defaults to time.Now.
	Now func() time.Time
	// IncludeWeatherHint controls whether the optional weather bullet is rendered.
	IncludeWeatherHint bool
}

// NewALSRewriter creates an ALS-injecting rewriter.
func NewALSRewriter() *ALSRewriter {
	return &ALSRewriter{Now: time.Now}
}

func (r *ALSRewriter) Name() string {
	return "als_injector"
}

func (r *ALSRewriter) Rewrite(ctx context.Context, req *llmpkg.ChatRequest) (*llmpkg.ChatRequest, error) {
	if req == nil || req.ALSContext == nil {
		return req, nil
	}
	if !als.SupportedCountry(req.ALSContext.CountryCode) {
		return req, nil
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	block, err := als.Build(als.BuildInput{
		CountryCode:        req.ALSContext.CountryCode,
		Now:                now(),
		TZOverride:         req.ALSContext.Timezone,
		IncludeWeatherHint: r.IncludeWeatherHint,
	})
	if err != nil {
		return nil, &llmpkg.Error{
			Code:      llmpkg.ErrALSOverflow,
			Message:   err.Error(),
			Retryable: false,
		}
	}

	req = prependSystemTurn(req, block.Text)

	if req.Meta == nil {
		req.Meta = make(map[string]any)
	}
	req.Meta["als_present"] = true
	req.Meta["als_country"] = req.ALSContext.CountryCode
	req.Meta["als_variant_id"] = block.VariantID
	req.Meta["als_block_sha256"] = block.SHA256
	req.Meta["als_nfc_length"] = block.NFCLength

	return req, nil
}

// prependSystemTurn prepends text to the existing system message, or
// synthesizes a new leading system turn when none exists. The user turn
// (and every later message) is left byte-for-byte unchanged.
func prependSystemTurn(req *llmpkg.ChatRequest, text string) *llmpkg.ChatRequest {
	out := *req
	messages := make([]llmpkg.Message, len(req.Messages))
	copy(messages, req.Messages)

	for i := range messages {
		if messages[i].Role == llmpkg.RoleSystem {
			messages[i].Content = text + "\n\n" + messages[i].Content
			out.Messages = messages
			return &out
		}
	}

	system := llmpkg.Message{Role: llmpkg.RoleSystem, Content: text}
	out.Messages = append([]llmpkg.Message{system}, messages...)
	return &out
}
