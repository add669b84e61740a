package router

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	llmpkg "github.com/relaylayer/llmrouter/llm"
	"github.com/relaylayer/llmrouter/llm/budget"
	"github.com/relaylayer/llmrouter/llm/circuitbreaker"
	"github.com/relaylayer/llmrouter/llm/config"
	"github.com/relaylayer/llmrouter/llm/middleware"
	"github.com/relaylayer/llmrouter/llm/observability"
	"github.com/relaylayer/llmrouter/llm/retry"
	"go.uber.org/zap"
)

// Config wires the pieces a Router needs. Nil optional fields fall back to
// sane defaults (no ALS rewriting, no governance, no failover chain, no
// same-vendor retry, no telemetry emission).
type Config struct {
	Registry  *llmpkg.ProviderRegistry
	Prefixes  *PrefixRouter
	Policies  *config.PolicyManager
	Governor  *budget.Governor
	Breakers  *circuitbreaker.Manager
	Rewriters *middleware.RewriterChain
	Retryer   retry.Retryer
	Telemetry observability.Sink
	Logger    *zap.Logger
}

// Router resolves a ChatRequest to a vendor Provider, applies the rewriter
// chain, runs it through the per-vendor governor and circuit breaker, and
// fails over to a sibling vendor on a retryable upstream error per the
// configured FallbackPolicies. It is the single point that stamps
// ChatResponse.Success and LatencyMs, so every vendor adapter is relieved
// of that bookkeeping.
type Router struct {
	cfg Config
}

// New creates a Router from cfg.
func New(cfg Config) *Router {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Router{cfg: cfg}
}

// Completion resolves req.Model to a vendor, runs the rewriter chain, and
// dispatches through the governor/breaker/adapter pipeline. On a retryable
// failure it walks the fallback chain for (vendor, model) and retries on
// each candidate in turn before giving up.
func (r *Router) Completion(ctx context.Context, req *llmpkg.ChatRequest) (*llmpkg.ChatResponse, error) {
	start := time.Now()

	vendor, err := r.resolveVendor(req)
	if err != nil {
		return nil, err
	}
	req.Vendor = vendor
	vendorPath := []string{vendor}

	rewritten, err := r.cfg.Rewriters.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	req = rewritten

	resp, callErr := r.dispatch(ctx, vendor, req)
	if callErr == nil {
		r.finalize(ctx, resp, start, req, vendorPath, "", nil)
		return resp, nil
	}

	if !isFailoverEligible(callErr) {
		r.finalize(ctx, nil, start, req, vendorPath, "", callErr)
		return nil, callErr
	}

	failoverReason := string(llmpkg.GetErrorCode(callErr))
	for _, candidate := range r.failoverChain(vendor, req.Model, callErr) {
		attemptVendor, attemptModel := candidate.vendor, candidate.model
		attemptReq := *req
		attemptReq.Vendor = attemptVendor
		attemptReq.Model = attemptModel
		vendorPath = append(vendorPath, attemptVendor)

		r.cfg.Logger.Warn("router: failing over",
			zap.String("from_vendor", vendor), zap.String("to_vendor", attemptVendor),
			zap.String("to_model", attemptModel), zap.Error(callErr))

		resp, callErr = r.dispatch(ctx, attemptVendor, &attemptReq)
		if callErr == nil {
			resp.Metadata = withFallbackMarker(resp.Metadata, vendor, attemptVendor)
			r.finalize(ctx, resp, start, &attemptReq, vendorPath, failoverReason, nil)
			return resp, nil
		}
		if !isFailoverEligible(callErr) {
			break
		}
		vendor = attemptVendor
	}

	r.finalize(ctx, nil, start, req, vendorPath, failoverReason, callErr)
	return nil, callErr
}

// Stream resolves and dispatches a streaming request. Failover is not
// attempted mid-stream — a broken stream is surfaced to the caller directly,
// matching how ResilientProvider.Stream treats an open circuit.
func (r *Router) Stream(ctx context.Context, req *llmpkg.ChatRequest) (<-chan llmpkg.StreamChunk, error) {
	vendor, err := r.resolveVendor(req)
	if err != nil {
		return nil, err
	}
	req.Vendor = vendor

	rewritten, err := r.cfg.Rewriters.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	provider, ok := r.cfg.Registry.Get(vendor)
	if !ok {
		return nil, &llmpkg.Error{
			Code:    llmpkg.ErrModelNotFound,
			Message: fmt.Sprintf("no provider registered for vendor %q", vendor),
		}
	}

	if r.cfg.Breakers != nil {
		if state, _ := r.cfg.Breakers.State(vendor, req.Model); state == circuitbreaker.StateOpen {
			return nil, &llmpkg.Error{
				Code:      llmpkg.ErrCircuitOpen,
				Message:   fmt.Sprintf("circuit open for %s:%s", vendor, req.Model),
				Retryable: true,
				Provider:  vendor,
			}
		}
	}

	return provider.Stream(ctx, rewritten)
}

// resolveVendor determines the target vendor for req.Model, preferring an
// explicit ChatRequest.Vendor and falling back to prefix inference.
func (r *Router) resolveVendor(req *llmpkg.ChatRequest) (string, error) {
	if req.Vendor != "" {
		return req.Vendor, nil
	}
	if r.cfg.Prefixes != nil {
		if vendor, ok := r.cfg.Prefixes.RouteByModelID(req.Model); ok {
			return vendor, nil
		}
	}
	return "", &llmpkg.Error{
		Code:    llmpkg.ErrModelNotFound,
		Message: fmt.Sprintf("no prefix rule matches model %q and no vendor was specified", req.Model),
	}
}

// dispatch runs one (vendor, model) attempt through the governor and
// circuit breaker before calling the adapter.
func (r *Router) dispatch(ctx context.Context, vendor string, req *llmpkg.ChatRequest) (*llmpkg.ChatResponse, error) {
	provider, ok := r.cfg.Registry.Get(vendor)
	if !ok {
		return nil, &llmpkg.Error{
			Code:    llmpkg.ErrModelNotFound,
			Message: fmt.Sprintf("no provider registered for vendor %q", vendor),
		}
	}

	var release budget.Release
	if r.cfg.Governor != nil {
		var err error
		release, err = r.cfg.Governor.Acquire(ctx, vendor, estimateTokens(req), req.Grounded)
		if err != nil {
			return nil, &llmpkg.Error{
				Code:      llmpkg.ErrRateLimited,
				Message:   err.Error(),
				Retryable: true,
				Provider:  vendor,
			}
		}
	}

	call := func() (any, error) {
		return provider.Completion(ctx, req)
	}
	if r.cfg.Breakers != nil {
		breaker := r.cfg.Breakers.Get(vendor, req.Model)
		inner := call
		call = func() (any, error) { return breaker.CallWithResult(ctx, inner) }
	}

	result, err := call()
	if err != nil && r.cfg.Retryer != nil && llmpkg.IsRetryable(err) {
		result, err = r.cfg.Retryer.DoWithResult(ctx, call)
	}

	actualTokens := 0
	if resp, ok := result.(*llmpkg.ChatResponse); ok && resp != nil {
		actualTokens = resp.Usage.TotalTokens
	}
	if release != nil {
		release(actualTokens)
	}

	if err != nil {
		return nil, err
	}
	resp, _ := result.(*llmpkg.ChatResponse)
	return resp, nil
}

type fallbackCandidate struct {
	vendor string
	model  string
}

// failoverChain reads the PolicyManager's fallback chain for (vendor, model)
// and projects the provider/model fallback entries into dispatch targets.
// Template and disable-tools fallbacks are not vendor switches and are
// skipped here — they belong to a response-shaping layer above the Router.
func (r *Router) failoverChain(vendor, model string, callErr error) []fallbackCandidate {
	if r.cfg.Policies == nil {
		return nil
	}
	code := ""
	if e, ok := callErr.(*llmpkg.Error); ok {
		code = string(e.Code)
	}
	var out []fallbackCandidate
	for _, policy := range r.cfg.Policies.GetFallbackChain(vendor, model) {
		if !matchesTrigger(policy.TriggerErrors, code) {
			continue
		}
		switch policy.FallbackType {
		case config.FallbackProvider:
			out = append(out, fallbackCandidate{vendor: policy.FallbackTarget, model: model})
		case config.FallbackModel:
			out = append(out, fallbackCandidate{vendor: vendor, model: policy.FallbackTarget})
		}
	}
	return out
}

func matchesTrigger(triggers []string, code string) bool {
	if len(triggers) == 0 {
		return true
	}
	for _, t := range triggers {
		if t == code {
			return true
		}
	}
	return false
}

// isFailoverEligible reports whether callErr warrants trying a sibling
// vendor rather than surfacing the failure immediately. Client errors
// (invalid request, content filtered, grounding required failed) are never
// retried against a different vendor since the request itself is at fault.
func isFailoverEligible(callErr error) bool {
	e, ok := callErr.(*llmpkg.Error)
	if !ok {
		return false
	}
	if !e.Retryable {
		return false
	}
	switch e.Code {
	case llmpkg.ErrInvalidRequest, llmpkg.ErrAuthentication, llmpkg.ErrUnauthorized,
		llmpkg.ErrForbidden, llmpkg.ErrContentFiltered, llmpkg.ErrGroundingRequiredFailed,
		llmpkg.ErrGroundingNotSupported, llmpkg.ErrContextTooLong:
		return false
	}
	return true
}

// finalize stamps the centralized Success/LatencyMs fields on a successful
// resp, logs the outcome, and emits the single normalized telemetry row for
// this request regardless of success or failure.
func (r *Router) finalize(ctx context.Context, resp *llmpkg.ChatResponse, start time.Time, req *llmpkg.ChatRequest, vendorPath []string, failoverReason string, callErr error) {
	latency := time.Since(start)
	vendor := vendorPath[len(vendorPath)-1]

	requestID := req.TraceID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	rec := observability.TelemetryRecord{
		TS:        start,
		RequestID: requestID,
		TenantID:  req.TenantID,
		Vendor:    vendor,
		Model:     req.Model,
		Grounded:  req.Grounded,
		JSONMode:  req.JSONMode,
		LatencyMs: latency.Milliseconds(),
		Meta:      map[string]any{},
	}
	if len(vendorPath) > 1 {
		rec.Meta[observability.MetaVendorPath] = vendorPath
		rec.Meta[observability.MetaFailoverReason] = failoverReason
	}

	if callErr != nil {
		rec.Success = false
		rec.ErrorCode = string(llmpkg.GetErrorCode(callErr))
		if rec.ErrorCode == "" {
			rec.ErrorCode = "internal_error"
		}
		r.cfg.Logger.Error("router: request failed",
			zap.String("vendor", vendor), zap.Duration("latency", latency), zap.Error(callErr))
	} else {
		resp.Success = true
		resp.LatencyMs = latency.Milliseconds()
		if resp.Vendor == "" {
			resp.Vendor = vendor
		}

		rec.Success = true
		rec.TokensIn = resp.Usage.PromptTokens
		rec.TokensOut = resp.Usage.CompletionTokens
		if req.Grounded {
			rec.Meta[observability.MetaResponseAPI] = responseAPIName(vendor)
		}
		rec.Meta[observability.MetaGroundedEffective] = resp.GroundedEffective
		for k, v := range resp.Metadata {
			rec.Meta[k] = v
		}

		r.cfg.Logger.Info("router: request completed",
			zap.String("vendor", resp.Vendor), zap.String("model", resp.Model),
			zap.Bool("grounded_effective", resp.GroundedEffective),
			zap.Int64("latency_ms", resp.LatencyMs))
	}

	if r.cfg.Telemetry != nil {
		if err := r.cfg.Telemetry.Emit(ctx, rec); err != nil {
			r.cfg.Logger.Error("router: telemetry emit rejected", zap.Error(err))
		}
	}
}

// responseAPIName names the wire API a grounded call used, for
// meta.response_api. Both in-scope vendors use a single call shape for
// grounded requests, so this is a static lookup rather than data carried
// back from the adapter.
func responseAPIName(vendor string) string {
	switch vendor {
	case "openai":
		return "responses_http"
	case "gemini":
		return "generatecontent_http"
	default:
		return vendor + "_http"
	}
}

func withFallbackMarker(meta map[string]any, from, to string) map[string]any {
	if meta == nil {
		meta = make(map[string]any)
	}
	meta["fallback"] = true
	meta["fallback_from_vendor"] = from
	meta["fallback_to_vendor"] = to
	return meta
}

// estimateTokens gives the Governor a rough pre-call token estimate from
// message lengths. It intentionally over-counts slightly (roughly 4 bytes
// per token) since the Governor's reservation is corrected on Release once
// the true usage is known.
func estimateTokens(req *llmpkg.ChatRequest) int {
	total := 0
	for _, m := range req.Messages {
		total += len(m.Content) / 4
	}
	if req.MaxTokens > 0 {
		total += req.MaxTokens
	}
	if total == 0 {
		total = 256
	}
	return total
}
