package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// InventoryPubSub announces committed quota and order changes to
// downstream consumers.
type InventoryPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewInventoryPubSub(rdb *redis.Client) *InventoryPubSub {
	return &InventoryPubSub{
		rdb:     rdb,
		channel: ChannelInventoryChanged(),
	}
}

type InventoryChange struct {
	Type         string `json:"type"`
	TicketTypeID int64  `json:"ticket_type_id,omitempty"`
	EventID      int64  `json:"event_id,omitempty"`
	OrderID      string `json:"order_id,omitempty"`
	Status       string `json:"status,omitempty"`
	TsUnix       int64  `json:"ts_unix"`
}

const (
	ChangeQuota = "quota_changed"
	ChangeOrder = "order_changed"
)

func (p *InventoryPubSub) PublishQuotaChanged(ctx context.Context, ticketTypeID int64) error {
	return p.publish(ctx, InventoryChange{
		Type:         ChangeQuota,
		TicketTypeID: ticketTypeID,
	})
}

func (p *InventoryPubSub) PublishOrderChanged(ctx context.Context, orderID, status string) error {
	return p.publish(ctx, InventoryChange{
		Type:    ChangeOrder,
		OrderID: orderID,
		Status:  status,
	})
}

func (p *InventoryPubSub) publish(ctx context.Context, msg InventoryChange) error {
	msg.TsUnix = time.Now().Unix()

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}
