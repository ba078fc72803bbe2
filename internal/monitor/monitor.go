// Package monitor drives the scan pipeline: discovery, validation,
// reconciliation, on a fixed schedule.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/config"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/model"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/pkg/metrics"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/pkg/ratelimit"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/reconcile"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/scraper"
)

// ProductIndex is the read side of the store the orchestrator needs for
// re-validating known products.
type ProductIndex interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	CountProducts(ctx context.Context) (int64, error)
}

// Monitor runs scan cycles. Candidates are processed sequentially; the site
// sees at most one tracker request at a time per instance.
type Monitor struct {
	discoverer *scraper.Discoverer
	validator  *scraper.Validator
	engine     *reconcile.Engine
	index      ProductIndex
	limiter    *ratelimit.RateLimiter
	cfg        *config.AppConfig
	logger     *slog.Logger
}

// New creates a monitor. limiter may be nil; pacing then falls back to the
// fixed inter-request delay.
func New(
	discoverer *scraper.Discoverer,
	validator *scraper.Validator,
	engine *reconcile.Engine,
	index ProductIndex,
	limiter *ratelimit.RateLimiter,
	cfg *config.AppConfig,
	logger *slog.Logger,
) *Monitor {
	return &Monitor{
		discoverer: discoverer,
		validator:  validator,
		engine:     engine,
		index:      index,
		limiter:    limiter,
		cfg:        cfg,
		logger:     logger,
	}
}

// RunScan executes one full cycle and returns how many alerts were
// delivered. Individual candidate failures are dropped, not propagated; the
// returned error is reserved for cancellation.
func (m *Monitor) RunScan(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		metrics.ScanDuration.Observe(time.Since(start).Seconds())
	}()

	candidates := m.discoverer.Discover(ctx)

	notified := 0
	seen := make(map[string]struct{}, len(candidates))
	for _, pageURL := range candidates {
		if err := m.pace(ctx); err != nil {
			return notified, err
		}

		sig, err := m.validator.Validate(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return notified, ctx.Err()
			}
			metrics.ValidationDrops.WithLabelValues(dropReason(err)).Inc()
			m.logger.Warn("candidate validation failed",
				slog.String("url", pageURL),
				slog.String("error", err.Error()))
			continue
		}
		if !sig.BrandVerified {
			metrics.ValidationDrops.WithLabelValues("brand").Inc()
			m.logger.Debug("candidate dropped, brand not verified",
				slog.String("url", pageURL))
			continue
		}

		seen[sig.ProductID] = struct{}{}
		sent, err := m.engine.Reconcile(ctx, sig)
		if err != nil {
			m.logger.Error("reconcile failed",
				slog.String("product_id", sig.ProductID),
				slog.String("error", err.Error()))
			continue
		}
		if sent {
			notified++
		}
	}

	if m.cfg.RevalidateKnown {
		n, err := m.revalidateMissing(ctx, seen)
		notified += n
		if err != nil {
			return notified, err
		}
	}

	if count, err := m.index.CountProducts(ctx); err == nil {
		metrics.TrackedProducts.Set(float64(count))
	}

	m.logger.Info("scan cycle complete",
		slog.Int("candidates", len(candidates)),
		slog.Int("notified", notified),
		slog.Duration("took", time.Since(start)))
	return notified, nil
}

// revalidateMissing re-checks known, non-hidden products that discovery did
// not surface this cycle. A product whose page no longer validates is marked
// HIDDEN; one that still validates goes through normal reconciliation, which
// is how delisted products come back as restocks.
func (m *Monitor) revalidateMissing(ctx context.Context, seen map[string]struct{}) (int, error) {
	known, err := m.index.ListProducts(ctx)
	if err != nil {
		m.logger.Error("list known products failed", slog.String("error", err.Error()))
		return 0, nil
	}

	notified := 0
	for i := range known {
		p := &known[i]
		if _, ok := seen[p.ProductID]; ok || p.State == model.StateHidden {
			continue
		}
		if err := m.pace(ctx); err != nil {
			return notified, err
		}

		sig, err := m.validator.Validate(ctx, p.URL)
		if err != nil {
			if ctx.Err() != nil {
				return notified, ctx.Err()
			}
			m.logger.Info("known product no longer reachable",
				slog.String("product_id", p.ProductID),
				slog.String("error", err.Error()))
			if hideErr := m.engine.MarkHidden(ctx, p.ProductID); hideErr != nil {
				m.logger.Error("mark hidden failed",
					slog.String("product_id", p.ProductID),
					slog.String("error", hideErr.Error()))
			}
			continue
		}
		if !sig.BrandVerified {
			metrics.ValidationDrops.WithLabelValues("brand").Inc()
			continue
		}

		sent, err := m.engine.Reconcile(ctx, sig)
		if err != nil {
			m.logger.Error("reconcile failed",
				slog.String("product_id", p.ProductID),
				slog.String("error", err.Error()))
			continue
		}
		if sent {
			notified++
		}
	}
	return notified, nil
}

// pace enforces the inter-request budget: the shared limiter when configured,
// otherwise the fixed local delay.
func (m *Monitor) pace(ctx context.Context) error {
	if m.limiter != nil {
		return m.limiter.Acquire(ctx)
	}
	if m.cfg.RequestDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.cfg.RequestDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RunContinuous repeats scan cycles until ctx is cancelled. The first cycle
// runs immediately. A failed cycle triggers an extra cooldown before the
// schedule resumes.
func (m *Monitor) RunContinuous(ctx context.Context) {
	m.logger.Info("monitor started",
		slog.Duration("interval", m.cfg.ScanInterval),
		slog.Duration("cooldown", m.cfg.FailureCooldown))

	ticker := time.NewTicker(m.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		if err := m.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				m.logger.Info("monitor stopped")
				return
			}
			metrics.ScanCyclesTotal.WithLabelValues("failure").Inc()
			m.logger.Error("scan cycle failed", slog.String("error", err.Error()))
			if !sleepCtx(ctx, m.cfg.FailureCooldown) {
				m.logger.Info("monitor stopped")
				return
			}
		} else {
			metrics.ScanCyclesTotal.WithLabelValues("success").Inc()
		}

		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

// runCycle wraps RunScan with a panic guard so a scraper crash on unexpected
// markup degrades into a failed cycle instead of killing the process.
func (m *Monitor) runCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan cycle panic: %v", r)
		}
	}()
	_, err = m.RunScan(ctx)
	return err
}

// dropReason buckets a validation error for metrics.
func dropReason(err error) string {
	if scraper.IsExtractionError(err) {
		return "extract"
	}
	return "fetch"
}

// sleepCtx waits d unless ctx ends first; it reports whether the full wait
// elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
