package redis

import (
	"fmt"
	"strings"
)

const ns = "tixsync:v1"

// KeyTicketTypeLock guards quota mutations of one ticket type.
func KeyTicketTypeLock(ticketTypeID int64) string {
	return fmt.Sprintf("seat:%d", ticketTypeID)
}

func KeyTicketTypeAvailability(ticketTypeID int64) string {
	return fmt.Sprintf("%s:ticket_type:%d:availability", ns, ticketTypeID)
}

func KeyEventSummary(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:summary", ns, eventID)
}

func KeyEventTicketTypes(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:ticket_types", ns, eventID)
}

func KeyQuotes(baseCurrency string) string {
	return fmt.Sprintf("%s:quotes:%s", ns, strings.ToUpper(baseCurrency))
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelInventoryChanged() string {
	return ns + ":inventory:changed"
}
