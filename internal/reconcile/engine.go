// Package reconcile applies validated page signals to the persisted product
// state machine and decides which observations become alerts.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/model"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/pkg/dedup"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/pkg/metrics"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/pkg/notify"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/scraper"
)

// Store is the persistence surface the engine needs. *store.Store satisfies
// it; tests substitute an in-memory fake.
type Store interface {
	GetProduct(ctx context.Context, productID string) (*model.Product, error)
	Commit(ctx context.Context, product *model.Product, transition *model.Transition) error
}

// Engine reconciles one signal at a time per product. The transition row is
// committed together with the product update before delivery is attempted, so
// the log records the decision even when the channel is down.
type Engine struct {
	store    Store
	notifier notify.Notifier
	guard    *dedup.AlertGuard
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an engine. guard may be nil when alert deduplication is not
// configured.
func New(store Store, notifier notify.Notifier, guard *dedup.AlertGuard, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		notifier: notifier,
		guard:    guard,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockFor returns the per-product mutex, creating it on first use. Concurrent
// observations of one product must not interleave the read-modify-write.
func (e *Engine) lockFor(productID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[productID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[productID] = l
	}
	return l
}

// Reconcile applies one validated signal and reports whether an alert was
// delivered.
func (e *Engine) Reconcile(ctx context.Context, sig *scraper.Signal) (bool, error) {
	l := e.lockFor(sig.ProductID)
	l.Lock()
	defer l.Unlock()

	old, err := e.store.GetProduct(ctx, sig.ProductID)
	if err != nil {
		return false, err
	}

	newState := model.StateOutOfStock
	if sig.Buyable {
		newState = model.StateBuyable
	}

	now := time.Now().UTC()
	product := &model.Product{
		ProductID:       sig.ProductID,
		Name:            sig.Name,
		URL:             sig.URL,
		Price:           sig.Price,
		State:           newState,
		LastSeen:        now,
		FirstDiscovered: now,
		BrandVerified:   sig.BrandVerified,
	}

	var fromState *model.ProductState
	if old != nil {
		// First discovery time never moves.
		product.FirstDiscovered = old.FirstDiscovered
		s := old.State
		fromState = &s
	}

	shouldNotify := newState == model.StateBuyable && wasUnavailable(old)

	var transition *model.Transition
	if old == nil || old.State != newState {
		transition = &model.Transition{
			ProductID: sig.ProductID,
			FromState: fromState,
			ToState:   newState,
			Timestamp: now,
			Notified:  shouldNotify,
		}
	}

	if err := e.store.Commit(ctx, product, transition); err != nil {
		return false, fmt.Errorf("commit %s: %w", sig.ProductID, err)
	}
	if transition != nil {
		metrics.TransitionsTotal.WithLabelValues(string(newState)).Inc()
		e.logger.Info("state transition",
			slog.String("product_id", sig.ProductID),
			slog.String("from", fromStateLabel(fromState)),
			slog.String("to", string(newState)))
	}

	if !shouldNotify {
		return false, nil
	}
	return e.deliver(ctx, product, alertKind(old)), nil
}

// MarkHidden transitions a known product to HIDDEN without alerting. Unknown
// products are ignored.
func (e *Engine) MarkHidden(ctx context.Context, productID string) error {
	l := e.lockFor(productID)
	l.Lock()
	defer l.Unlock()

	old, err := e.store.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if old == nil || old.State == model.StateHidden {
		return nil
	}

	now := time.Now().UTC()
	fromState := old.State
	product := *old
	product.State = model.StateHidden
	product.LastSeen = now

	transition := &model.Transition{
		ProductID: productID,
		FromState: &fromState,
		ToState:   model.StateHidden,
		Timestamp: now,
	}

	if err := e.store.Commit(ctx, &product, transition); err != nil {
		return fmt.Errorf("commit hidden %s: %w", productID, err)
	}
	metrics.TransitionsTotal.WithLabelValues(string(model.StateHidden)).Inc()
	e.logger.Info("product hidden",
		slog.String("product_id", productID),
		slog.String("from", string(fromState)))
	return nil
}

// deliver sends the alert through the guard and the configured channels.
// Delivery failure never unwinds the committed state.
func (e *Engine) deliver(ctx context.Context, product *model.Product, kind notify.Kind) bool {
	dup, err := e.guard.IsDuplicate(ctx, product.ProductID, string(kind))
	if err != nil {
		// A broken guard must not swallow alerts.
		e.logger.Warn("alert guard unavailable, sending anyway",
			slog.String("product_id", product.ProductID),
			slog.String("error", err.Error()))
	} else if dup {
		e.logger.Info("alert suppressed as duplicate",
			slog.String("product_id", product.ProductID),
			slog.String("kind", string(kind)))
		return false
	}

	if err := e.notifier.Send(ctx, product, kind); err != nil {
		metrics.NotificationFailures.Inc()
		e.logger.Error("notification delivery failed",
			slog.String("product_id", product.ProductID),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
		if relErr := e.guard.Release(ctx, product.ProductID, string(kind)); relErr != nil {
			e.logger.Warn("alert guard release failed", slog.String("error", relErr.Error()))
		}
		return false
	}

	metrics.NotificationsSent.WithLabelValues(string(kind)).Inc()
	e.logger.Info("notification sent",
		slog.String("product_id", product.ProductID),
		slog.String("kind", string(kind)),
		slog.String("name", product.Name))
	return true
}

// wasUnavailable reports whether the previous state allows an availability
// alert: unseen, out of stock, or hidden.
func wasUnavailable(old *model.Product) bool {
	if old == nil {
		return true
	}
	return old.State == model.StateOutOfStock || old.State == model.StateHidden
}

func alertKind(old *model.Product) notify.Kind {
	if old == nil {
		return notify.KindNew
	}
	return notify.KindRestock
}

func fromStateLabel(s *model.ProductState) string {
	if s == nil {
		return "absent"
	}
	return string(*s)
}
