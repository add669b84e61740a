package observability

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TelemetryRecord is the single normalized row emitted per request,
// success or failure. Two invariants are enforced by Sink.Emit rather than
// left to caller discipline: grounded=true requires meta.response_api to be
// a non-empty string, and success=false requires error_code to be set.
type TelemetryRecord struct {
	TS           time.Time      `json:"ts"`
	RequestID    string         `json:"request_id"`
	TenantID     string         `json:"tenant_id,omitempty"`
	Vendor       string         `json:"vendor"`
	Model        string         `json:"model"`
	Grounded     bool           `json:"grounded"`
	JSONMode     bool           `json:"json_mode"`
	LatencyMs    int64          `json:"latency_ms"`
	TokensIn     int            `json:"tokens_in"`
	TokensOut    int            `json:"tokens_out"`
	CostEstCents float64        `json:"cost_est_cents,omitempty"`
	Success      bool           `json:"success"`
	ErrorCode    string         `json:"error_code,omitempty"`
	Meta         map[string]any `json:"meta"`
}

// Known meta keys, collected here so producers don't scatter string
// literals across the router and adapters.
const (
	MetaResponseAPI             = "response_api"
	MetaGroundedEffective       = "grounded_effective"
	MetaModelAdjustedForGround  = "model_adjusted_for_grounding"
	MetaOriginalModel           = "original_model"
	MetaToolCallCount           = "tool_call_count"
	MetaAnchoredCitationsCount  = "anchored_citations_count"
	MetaUnlinkedSourcesCount    = "unlinked_sources_count"
	MetaCitationsShapeSet       = "citations_shape_set"
	MetaWhyNotGrounded          = "why_not_grounded"
	MetaFeatureFlags            = "feature_flags"
	MetaRuntimeFlags            = "runtime_flags"
	MetaABBucket                = "ab_bucket"
	MetaALSPresent              = "als_present"
	MetaALSCountry              = "als_country"
	MetaALSVariantID            = "als_variant_id"
	MetaALSBlockSHA256          = "als_block_sha256"
	MetaALSNFCLength            = "als_nfc_length"
	MetaVendorPath              = "vendor_path"
	MetaFailoverReason          = "failover_reason"
)

// ErrInvalidRecord is returned by Sink.Emit when a record violates one of
// the sink's two hard invariants.
type ErrInvalidRecord struct {
	Reason string
}

func (e *ErrInvalidRecord) Error() string {
	return fmt.Sprintf("telemetry: invalid record: %s", e.Reason)
}

// Sink accepts normalized telemetry rows. Implementations must reject
// records that violate the grounded/response_api and success/error_code
// invariants rather than silently emitting malformed rows.
type Sink interface {
	Emit(ctx context.Context, rec TelemetryRecord) error
}

// Validate checks rec against the sink's two hard invariants without
// emitting it. Exported so callers (e.g. the Router) can fail fast before
// building the full record.
func Validate(rec TelemetryRecord) error {
	if rec.Grounded {
		api, _ := rec.Meta[MetaResponseAPI].(string)
		if api == "" {
			return &ErrInvalidRecord{Reason: "grounded=true but meta.response_api is empty"}
		}
	}
	if !rec.Success && rec.ErrorCode == "" {
		return &ErrInvalidRecord{Reason: "success=false but error_code is empty"}
	}
	return nil
}

// MemorySink buffers records in-process. Useful for tests and as the
// default sink before a durable exporter is wired in.
type MemorySink struct {
	mu      sync.Mutex
	records []TelemetryRecord
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Emit validates rec and appends it to the in-memory buffer.
func (s *MemorySink) Emit(ctx context.Context, rec TelemetryRecord) error {
	if err := Validate(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a snapshot copy of every record emitted so far.
func (s *MemorySink) Records() []TelemetryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TelemetryRecord, len(s.records))
	copy(out, s.records)
	return out
}

// LoggingSink writes each valid record through a structured-log callback
// (e.g. a zap.Logger wrapped in a closure) before passing it on to an
// optional downstream Sink such as MemorySink or a future metrics exporter.
type LoggingSink struct {
	Log        func(rec TelemetryRecord)
	Downstream Sink
}

// Emit validates rec, logs it, then forwards it to Downstream if set.
func (s *LoggingSink) Emit(ctx context.Context, rec TelemetryRecord) error {
	if err := Validate(rec); err != nil {
		return err
	}
	if s.Log != nil {
		s.Log(rec)
	}
	if s.Downstream != nil {
		return s.Downstream.Emit(ctx, rec)
	}
	return nil
}
