// Package notify delivers availability alerts to external channels.
package notify

import (
	"context"

	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/model"
)

// Kind classifies an alert.
type Kind string

const (
	// KindNew marks a product that became buyable on first sight.
	KindNew Kind = "NEW"
	// KindRestock marks a known product that returned to buyable.
	KindRestock Kind = "RESTOCK"
)

// Notifier delivers one alert for one product. Implementations must be safe
// for concurrent use.
type Notifier interface {
	Send(ctx context.Context, product *model.Product, kind Kind) error
}
