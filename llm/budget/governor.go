package budget

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// GovernorConfig configures the three per-vendor gates: token budget,
// launch-slot stagger, and concurrency.
type GovernorConfig struct {
	TPMLimit           int
	TPMHeadroomFraction float64 // 0-0.9
	StaggerSeconds     float64
	MaxConcurrency     int64
	AcquireTimeout     time.Duration
}

// DefaultGovernorConfig returns conservative defaults.
func DefaultGovernorConfig() GovernorConfig {
	return GovernorConfig{
		TPMLimit:            60000,
		TPMHeadroomFraction: 0.1,
		StaggerSeconds:      0.25,
		MaxConcurrency:      8,
		AcquireTimeout:      2 * time.Second,
	}
}

// Release undoes a Governor.Acquire call: it returns the concurrency slot
// and, when the call never consumed the reserved tokens, credits them back.
type Release func(actualTokens int)

// vendorGate holds one vendor's gate state. One instance is created lazily
// per vendor key and never removed for the process lifetime.
type vendorGate struct {
	mu sync.Mutex

	windowStart    time.Time
	tokensReserved int

	nextSlot time.Time

	sem *semaphore.Weighted

	groundedRatios []float64 // recent actual/estimated ratios for grounded calls
}

// Governor coordinates the token-budget, launch-slot and concurrency gates
// per vendor: each vendor key passed to Acquire gets its own gate state, so
// one Governor instance can be shared by requests for every vendor.
type Governor struct {
	cfg    GovernorConfig
	logger *zap.Logger

	mu    sync.Mutex
	gates map[string]*vendorGate
}

// NewGovernor creates a Governor. If logger is nil a no-op logger is used.
func NewGovernor(cfg GovernorConfig, logger *zap.Logger) *Governor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	return &Governor{cfg: cfg, logger: logger, gates: make(map[string]*vendorGate)}
}

func (g *Governor) gate(vendor string) *vendorGate {
	g.mu.Lock()
	defer g.mu.Unlock()
	gt, ok := g.gates[vendor]
	if !ok {
		gt = &vendorGate{
			windowStart: time.Now(),
			sem:         semaphore.NewWeighted(g.cfg.MaxConcurrency),
		}
		g.gates[vendor] = gt
	}
	return gt
}

// Acquire runs all three gates in order for vendor, honoring ctx's
// deadline. It returns a Release func that must be called exactly once
// when the call completes (success or failure) or is cancelled.
func (g *Governor) Acquire(ctx context.Context, vendor string, estimatedTokens int, grounded bool) (Release, error) {
	gt := g.gate(vendor)

	if err := g.acquireTokenBudget(ctx, gt, estimatedTokens, grounded); err != nil {
		return nil, err
	}
	if err := g.acquireLaunchSlot(ctx, gt); err != nil {
		g.creditBack(gt, estimatedTokens)
		return nil, err
	}
	bypassed := g.acquireConcurrency(ctx, gt)

	released := false
	return func(actualTokens int) {
		if released {
			return
		}
		released = true
		g.creditBack(gt, estimatedTokens-actualTokens)
		if grounded && estimatedTokens > 0 && actualTokens > 0 {
			g.recordGroundedRatio(gt, float64(actualTokens)/float64(estimatedTokens))
		}
		if !bypassed {
			gt.sem.Release(1)
		}
	}, nil
}

// acquireTokenBudget pre-reserves estimatedTokens from the per-minute
// window. On saturation it sleeps the caller to the next minute boundary
// plus 500-750ms jitter and retries, per the backpressure-not-reject policy.
func (g *Governor) acquireTokenBudget(ctx context.Context, gt *vendorGate, estimatedTokens int, grounded bool) error {
	usableLimit := int(float64(g.cfg.TPMLimit) * (1 - g.cfg.TPMHeadroomFraction))
	if grounded {
		estimatedTokens = int(math.Ceil(float64(estimatedTokens) * g.groundedMultiplier(gt)))
	}

	for {
		gt.mu.Lock()
		g.rollWindow(gt)
		if gt.tokensReserved+estimatedTokens <= usableLimit {
			gt.tokensReserved += estimatedTokens
			gt.mu.Unlock()
			return nil
		}
		wait := time.Until(gt.windowStart.Add(time.Minute))
		gt.mu.Unlock()

		jitter := time.Duration(500+rand.Intn(250)) * time.Millisecond
		select {
		case <-ctx.Done():
			return fmt.Errorf("governor: token budget wait cancelled: %w", ctx.Err())
		case <-time.After(wait + jitter):
		}
	}
}

func (g *Governor) rollWindow(gt *vendorGate) {
	if time.Since(gt.windowStart) >= time.Minute {
		gt.windowStart = time.Now()
		gt.tokensReserved = 0
	}
}

func (g *Governor) creditBack(gt *vendorGate, delta int) {
	if delta == 0 {
		return
	}
	gt.mu.Lock()
	gt.tokensReserved -= delta
	if gt.tokensReserved < 0 {
		gt.tokensReserved = 0
	}
	gt.mu.Unlock()
}

func (g *Governor) groundedMultiplier(gt *vendorGate) float64 {
	gt.mu.Lock()
	defer gt.mu.Unlock()
	if len(gt.groundedRatios) == 0 {
		return 1.0
	}
	sorted := append([]float64(nil), gt.groundedRatios...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	median := sorted[len(sorted)/2]
	if median < 1.0 {
		return 1.0
	}
	if median > 2.0 {
		return 2.0
	}
	return median
}

func (g *Governor) recordGroundedRatio(gt *vendorGate, ratio float64) {
	gt.mu.Lock()
	defer gt.mu.Unlock()
	gt.groundedRatios = append(gt.groundedRatios, ratio)
	if len(gt.groundedRatios) > 20 {
		gt.groundedRatios = gt.groundedRatios[len(gt.groundedRatios)-20:]
	}
}

// acquireLaunchSlot enforces a minimum inter-launch gap with bounded
// jitter, serializing launch timing only.
func (g *Governor) acquireLaunchSlot(ctx context.Context, gt *vendorGate) error {
	gt.mu.Lock()
	now := time.Now()
	wait := time.Duration(0)
	if now.Before(gt.nextSlot) {
		wait = gt.nextSlot.Sub(now)
	}
	stagger := time.Duration(g.cfg.StaggerSeconds * float64(time.Second))
	jitterCap := 3 * time.Second
	jitterRange := time.Duration(float64(stagger) * 0.2)
	if jitterRange > jitterCap {
		jitterRange = jitterCap
	}
	jitter := time.Duration(0)
	if jitterRange > 0 {
		jitter = time.Duration(rand.Int63n(int64(jitterRange)))
	}
	gt.nextSlot = now.Add(wait + stagger + jitter)
	gt.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("governor: launch slot wait cancelled: %w", ctx.Err())
	case <-time.After(wait):
		return nil
	}
}

// acquireConcurrency bounds in-flight calls to MaxConcurrency. A timed
// acquire that expires bypasses the semaphore entirely rather than
// deadlocking during a pathological stall; bypass is reported to the
// caller so it can be recorded in telemetry.
func (g *Governor) acquireConcurrency(ctx context.Context, gt *vendorGate) (bypassed bool) {
	acquireCtx, cancel := context.WithTimeout(ctx, g.cfg.AcquireTimeout)
	defer cancel()

	if err := gt.sem.Acquire(acquireCtx, 1); err != nil {
		g.logger.Warn("governor: concurrency acquire timed out, bypassing semaphore")
		return true
	}
	return false
}
