package channel

import (
	"context"

	"github.com/stellarlinkco/socbot/internal/bus"
)

// Channel is a messaging platform attachment: it feeds inbound messages
// onto the bus and delivers outbound replies.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(msg bus.OutboundMessage) error
}

// BaseChannel carries the pieces every channel shares: its name, the
// bus, and the subscriber allow-list. The allow-list is loaded once at
// startup and never mutated.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowFrom map[string]struct{}
}

func NewBaseChannel(name string, b *bus.MessageBus, allowFrom []string) BaseChannel {
	allowed := make(map[string]struct{}, len(allowFrom))
	for _, id := range allowFrom {
		allowed[id] = struct{}{}
	}
	return BaseChannel{name: name, bus: b, allowFrom: allowed}
}

func (c *BaseChannel) Name() string {
	return c.name
}

// IsAllowed reports whether the sender may use the bot. An empty
// allow-list admits everyone; channels that require a subscriber set
// must be configured with one.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowFrom) == 0 {
		return true
	}
	_, ok := c.allowFrom[senderID]
	return ok
}
