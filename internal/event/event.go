// Package event defines the change notifications emitted by the shared store.
// A notification only says that a topic changed; subscribers re-read the
// whole topic to reconcile.
package event

import (
	"encoding/json"
	"fmt"
)

// Topic identifies a collection (or the singleton state record) in the shared store.
type Topic string

const (
	TopicAuctionState Topic = "auction_state"
	TopicPlayers      Topic = "players"
	TopicTeams        Topic = "teams"
	TopicUsers        Topic = "users"
)

// Op is the kind of write that produced a notification.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Notification is the payload carried on the change channel.
type Notification struct {
	Topic Topic `json:"topic"`
	Op    Op    `json:"op"`
}

// Topics lists every topic a client subscribes to.
func Topics() []Topic {
	return []Topic{TopicAuctionState, TopicPlayers, TopicTeams, TopicUsers}
}

// Parse decodes a notification payload as produced by the Postgres trigger.
func Parse(payload string) (Notification, error) {
	var n Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return Notification{}, fmt.Errorf("decoding notification: %w", err)
	}
	switch n.Topic {
	case TopicAuctionState, TopicPlayers, TopicTeams, TopicUsers:
	default:
		return Notification{}, fmt.Errorf("unknown topic %q", n.Topic)
	}
	return n, nil
}
