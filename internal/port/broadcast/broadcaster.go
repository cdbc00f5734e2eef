// Package broadcast defines the port for pushing orchestration events
// (task status, approval state, published results) to connected clients.
package broadcast

import "context"

// Broadcaster fans a typed event out to every connected client. Delivery is
// best effort; services never block on it.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
