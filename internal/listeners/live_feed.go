package listeners

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"branch-ledger/internal/events"
	"branch-ledger/pkg/eventbus"
	"branch-ledger/pkg/websocket"
)

// Broadcaster is satisfied by *websocket.Hub.
type Broadcaster interface {
	Broadcast(ctx context.Context, branchID int64, messageType string, payload interface{}) error
}

// LiveFeed pushes committed audit events to websocket subscribers of the
// affected branch.
type LiveFeed struct {
	hub    Broadcaster
	logger *zap.Logger
}

var _ Broadcaster = (*websocket.Hub)(nil)

func NewLiveFeed(hub Broadcaster, logger *zap.Logger) *LiveFeed {
	return &LiveFeed{hub: hub, logger: logger}
}

func (f *LiveFeed) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.AuditRecordedEvent, f.handle)
}

func (f *LiveFeed) handle(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.AuditEvent)
	if !ok {
		return fmt.Errorf("live feed: unexpected event %T", event)
	}
	var branchID int64
	if e.BranchID != nil {
		branchID = *e.BranchID
	}
	return f.hub.Broadcast(ctx, branchID, e.Action, e)
}
