package streaming

import (
	"encoding/json"

	"github.com/buildhook-io/buildhook/pkg/model"
	"github.com/pkg/errors"
)

const (
	// CollectionBuilds is the only collection the master publishes today.
	CollectionBuilds = "builds"

	KindNew      = "new"
	KindFinished = "finished"
)

// EventKey identifies an event on the master's feed. On the wire it is a
// three element array: ["builds", 20, "finished"].
type EventKey struct {
	Collection string
	ID         int
	Kind       string
}

func (k EventKey) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{k.Collection, k.ID, k.Kind})
}

func (k *EventKey) UnmarshalJSON(b []byte) error {
	var parts []interface{}
	if err := json.Unmarshal(b, &parts); err != nil {
		return err
	}
	if len(parts) != 3 {
		return errors.Errorf("event key must have three parts, got %d", len(parts))
	}
	collection, ok := parts[0].(string)
	if !ok {
		return errors.New("event key collection must be a string")
	}
	id, ok := parts[1].(float64)
	if !ok {
		return errors.New("event key id must be a number")
	}
	kind, ok := parts[2].(string)
	if !ok {
		return errors.New("event key kind must be a string")
	}
	k.Collection = collection
	k.ID = int(id)
	k.Kind = kind
	return nil
}

// EventFrame is one message on the websocket feed.
type EventFrame struct {
	Key   EventKey     `json:"key"`
	Build *model.Build `json:"build"`
}

// Subscription is sent right after connecting to narrow the feed.
type Subscription struct {
	Type       string   `json:"type"`
	Collection string   `json:"collection"`
	Kinds      []string `json:"kinds"`
}
