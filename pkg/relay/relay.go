// Package relay carries message events between federated servers. Each
// event is a Bundle of three snapshots: the author, the conversation and
// the message.
package relay

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"codeuchat/pkg/ids"
)

var (
	ErrUnauthorized = errors.New("relay: team id or secret rejected")
	ErrRateLimited  = errors.New("relay: rate limited")
)

const (
	DefaultBatch = 32
	MaxBatch     = 256
)

// Component is one {id, text, time} snapshot.
type Component struct {
	ID   ids.ID `json:"id"`
	Text string `json:"text"`
	Time int64  `json:"time"`
}

// Pack builds a component, keeping millisecond precision.
func Pack(id ids.ID, text string, t time.Time) Component {
	return Component{ID: id, Text: text, Time: t.UnixMilli()}
}

func (c Component) Created() time.Time { return time.UnixMilli(c.Time) }

// Bundle is one relayed message event. ID orders bundles on the relay;
// Team is the server that wrote it.
type Bundle struct {
	ID           ids.ID    `json:"id"`
	Team         ids.ID    `json:"team"`
	User         Component `json:"user"`
	Conversation Component `json:"conversation"`
	Message      Component `json:"message"`
}

// Secret is the shared key a team presents to the relay.
type Secret []byte

func ParseSecret(s string) (Secret, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("secret must be hex: %w", err)
	}
	if len(b) == 0 {
		return nil, errors.New("secret is empty")
	}
	return Secret(b), nil
}

func (s Secret) String() string { return hex.EncodeToString(s) }

func (s Secret) Equal(other Secret) bool {
	return subtle.ConstantTimeCompare(s, other) == 1
}

// Relay is the client side of the relay service.
type Relay interface {
	// Write publishes one bundle authored by team.
	Write(ctx context.Context, team ids.ID, secret Secret, user, conversation, message Component) error
	// Read returns up to limit bundles with ids greater than root, in id
	// order.
	Read(ctx context.Context, team ids.ID, secret Secret, root ids.ID, limit int) ([]Bundle, error)
}

// NoOp is used when no relay address is configured.
type NoOp struct{}

func (NoOp) Write(context.Context, ids.ID, Secret, Component, Component, Component) error {
	return nil
}

func (NoOp) Read(context.Context, ids.ID, Secret, ids.ID, int) ([]Bundle, error) {
	return nil, nil
}
