// services/events.go
package services

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/AleksanderGPL/pao/models"
	"github.com/nats-io/nats.go"
)

// gameSubjectPrefix is the NATS namespace for per-game channels. One
// subject per game; every server process subscribes to the whole prefix
// and its relay fans events out to the sockets it owns.
const gameSubjectPrefix = "game."

// SubjectForGame returns the pub/sub subject for a game code.
func SubjectForGame(code string) string {
	return gameSubjectPrefix + strings.ToUpper(code)
}

// GameSubjectWildcard matches every game channel.
func GameSubjectWildcard() string {
	return gameSubjectPrefix + ">"
}

// CodeFromSubject recovers the game code from a per-game subject.
func CodeFromSubject(subject string) string {
	return strings.TrimPrefix(subject, gameSubjectPrefix)
}

// EventService publishes realtime events onto the shared NATS transport.
type EventService struct {
	NC *nats.Conn
}

func NewEventService(nc *nats.Conn) *EventService {
	return &EventService{NC: nc}
}

// Publish sends an event on the game's channel. Publish failures are logged
// and swallowed: the record-store write that triggered the event already
// succeeded and clients can always re-fetch game state.
func (s *EventService) Publish(code string, event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Events] Failed to marshal %s event for game %s: %v", event.Type, code, err)
		return
	}

	if err := s.NC.Publish(SubjectForGame(code), payload); err != nil {
		log.Printf("[Events] Failed to publish %s event for game %s: %v", event.Type, code, err)
	}
}
