// Copyright 2024 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package llm provides a unified chat-completion abstraction over a small set
of grounded-search-capable LLM vendors, plus the orchestration layer that
sits in front of them: ambient location signal injection, citation
extraction and normalization, redirect resolution, tool-call detection,
per-vendor rate/concurrency governance, and circuit breaking.

# Architecture

	┌─────────────────────────────────────────────────────────────┐
	│                    Application Layer                        │
	├─────────────────────────────────────────────────────────────┤
	│                 Router (llm/router)                         │
	│   vendor inference, model pinning, failover, telemetry       │
	├──────────┬──────────────┬──────────────┬─────────────────────┤
	│   ALS    │  Governor    │   Circuit     │    Citations /      │
	│ (als)    │  (budget)    │   Breaker     │    Resolver /       │
	│          │              │ (circuitbreaker)│  Detector          │
	├──────────┴──────────────┴──────────────┴─────────────────────┤
	│                    Provider Interface                       │
	├──────────────────────┬────────────────────────────────────────┤
	│        OpenAI        │              Gemini                   │
	└──────────────────────┴────────────────────────────────────────┘

# Provider Interface

The core Provider interface defines the contract every vendor adapter
implements:

	type Provider interface {
	    Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	    Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)
	    HealthCheck(ctx context.Context) (*HealthStatus, error)
	    Name() string
	    SupportsNativeFunctionCalling() bool
	    ListModels(ctx context.Context) ([]Model, error)
	}

# Supported Providers

  - OpenAI (Responses API, web_search grounding)
  - Google Gemini (google_search grounding)

A generic openaicompat adapter remains available for any additional
OpenAI-wire-compatible vendor.

# Grounded requests

Setting ChatRequest.Grounded enables the vendor's web-search tool.
GroundingMode controls what happens when the model chooses not to search:
AUTO accepts the response as-is; REQUIRED fails the call with
ErrGroundingRequiredFailed if no search tool call was observed, and with
ErrGroundingEmptyResults if the tool ran but no citation was extracted. Evidence comes back on ChatResponse.Citations and
GroundedEffective, extracted by llm/citations and llm/detector from each
vendor's native payload shape.

# Ambient Location Signals

ChatRequest.ALSContext carries a country/locale/timezone triple. The
llm/middleware ALSRewriter renders a deterministic civic-context block
(llm/als) and prepends it to the system turn; user message bytes are
never touched. Overflow past the NFC length ceiling returns
ErrALSOverflow after the configured recovery steps are exhausted.

# Resilience

Each (vendor, model) pair gets its own circuit breaker
(llm/circuitbreaker.Manager); each vendor gets its own token-budget/
launch-slot/concurrency gate (llm/budget.Governor). llm/retry provides
exponential backoff with jitter; the router uses it to retry a retryable
error against the same vendor before walking the sibling-vendor failover
chain.

# Error Handling

The package defines structured error codes on *Error, including the
orchestration-specific codes:

	const (
	    ErrGroundingNotSupported   ErrorCode = "GROUNDING_NOT_SUPPORTED"
	    ErrGroundingRequiredFailed ErrorCode = "GROUNDING_REQUIRED_FAILED"
	    ErrCircuitOpen             ErrorCode = "CIRCUIT_OPEN"
	    ErrALSOverflow             ErrorCode = "ALS_OVERFLOW"
	)

Use IsRetryable to check if an error can be retried.

See the subpackages for additional functionality:
  - llm/als: deterministic ambient-location-signal rendering
  - llm/citations: citation extraction, normalization, dedup
  - llm/detector: pure grounding-outcome detection
  - llm/resolver: SSRF-guarded redirect resolution with TTL cache
  - llm/budget: per-vendor token/launch/concurrency governance
  - llm/circuitbreaker: per-(vendor,model) circuit breaking
  - llm/middleware: request rewriter chain (ALS injection, tool cleanup)
  - llm/observability: metrics, tracing, and cost tracking
  - llm/retry: retry strategies and backoff
  - llm/router: vendor inference and failover
  - llm/providers/*: provider-specific implementations
*/
package llm
