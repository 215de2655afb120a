// realtime/relay.go
package realtime

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/AleksanderGPL/pao/models"
	"github.com/AleksanderGPL/pao/services"
	"github.com/nats-io/nats.go"
)

// Relay is the bridge from the shared pub/sub transport to this process's
// registry. Every server process runs one relay subscribed to all game
// channels; an event published by any process reaches every process, and
// each relay forwards it to the sockets it owns. This is what lets the
// connection layer scale horizontally.
type Relay struct {
	Registry *Registry
	NC       *nats.Conn

	sub *nats.Subscription
}

func NewRelay(nc *nats.Conn, registry *Registry) *Relay {
	return &Relay{Registry: registry, NC: nc}
}

// Start subscribes to every game channel.
func (r *Relay) Start() error {
	sub, err := r.NC.Subscribe(services.GameSubjectWildcard(), func(msg *nats.Msg) {
		r.Deliver(services.CodeFromSubject(msg.Subject), msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to game channels: %w", err)
	}

	r.sub = sub
	return nil
}

// Stop drains the subscription.
func (r *Relay) Stop() {
	if r.sub != nil {
		if err := r.sub.Unsubscribe(); err != nil {
			log.Printf("[Realtime] Failed to unsubscribe relay: %v", err)
		}
	}
}

// Deliver routes one published event to local connections: player-scoped
// events go only to the player named in the payload, everything else is
// broadcast to the whole game. Payload bytes are forwarded untouched.
func (r *Relay) Deliver(code string, payload []byte) {
	var event models.RawEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("[Realtime] Discarding malformed event on game %s: %v", code, err)
		return
	}

	if !models.IsPlayerScoped(event.Type) {
		r.Registry.Broadcast(code, payload)
		return
	}

	var data models.TargetAssignedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		log.Printf("[Realtime] Discarding %s event with malformed payload on game %s: %v",
			event.Type, code, err)
		return
	}

	r.Registry.Send(code, data.PlayerID, payload)
}
