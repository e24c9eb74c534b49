package inventory

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixsync/internal/domain"
	redisrepo "github.com/kirinyoku/tixsync/internal/repository/redis"
)

// Notifier runs after commit: it drops cached availability and publishes
// the change. Either dependency may be nil.
type Notifier struct {
	cache  *redisrepo.Cache
	pubsub *redisrepo.InventoryPubSub
	logger *slog.Logger
}

func NewNotifier(cache *redisrepo.Cache, pubsub *redisrepo.InventoryPubSub, logger *slog.Logger) *Notifier {
	return &Notifier{cache: cache, pubsub: pubsub, logger: logger}
}

func (n *Notifier) QuotaChanged(ctx context.Context, tts ...*domain.TicketType) {
	if n == nil {
		return
	}

	for _, tt := range tts {
		if n.cache != nil {
			if err := n.cache.InvalidateTicketType(ctx, tt.ID, tt.EventID); err != nil {
				n.logger.Warn("cache invalidation failed", slog.Int64("ticket_type_id", tt.ID), slog.Any("error", err))
			}
		}
		if n.pubsub != nil {
			if err := n.pubsub.PublishQuotaChanged(ctx, tt.ID); err != nil {
				n.logger.Warn("publish quota change failed", slog.Int64("ticket_type_id", tt.ID), slog.Any("error", err))
			}
		}
	}
}

func (n *Notifier) OrderChanged(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) {
	if n == nil || n.pubsub == nil {
		return
	}

	if err := n.pubsub.PublishOrderChanged(ctx, orderID.String(), string(status)); err != nil {
		n.logger.Warn("publish order change failed", slog.String("order_id", orderID.String()), slog.Any("error", err))
	}
}
