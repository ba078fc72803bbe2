package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/model"
)

// Multi fans one alert out to several channels. Delivery succeeds when at
// least one channel accepts the message; per-channel failures are logged and
// collected.
type Multi struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewMulti creates a fan-out notifier.
func NewMulti(logger *slog.Logger, notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers, logger: logger}
}

// Send delivers to every channel and returns an error only when all fail.
func (m *Multi) Send(ctx context.Context, product *model.Product, kind Kind) error {
	if len(m.notifiers) == 0 {
		return errors.New("no notification channels configured")
	}

	var errs []error
	delivered := false
	for _, n := range m.notifiers {
		if err := n.Send(ctx, product, kind); err != nil {
			m.logger.Warn("notification channel failed",
				slog.String("product_id", product.ProductID),
				slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		delivered = true
	}

	if delivered {
		return nil
	}
	return errors.Join(errs...)
}
