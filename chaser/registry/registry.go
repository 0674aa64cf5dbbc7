// Package registry tracks which machines are currently chasing licenses,
// so that several workstations waiting on the same seats can see each other.
//
// Only presence is stored: a node is registered when a subscription starts,
// pinged after every server response and removed when the subscription
// suspends. Poll results are never persisted.
package registry

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// ErrNodeNotFound is returned by Ping for a fingerprint with no
// registration, typically after another host pruned it.
var ErrNodeNotFound = errors.New("node not registered")

// validIdentifier matches safe table and collection names.
var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Node represents one machine running a chaser subscription.
type Node struct {
	Fingerprint    string    `json:"fingerprint" bson:"fingerprint"`
	Hostname       string    `json:"hostname" bson:"hostname"`
	OS             string    `json:"os" bson:"os"`
	Product        string    `json:"product" bson:"product"`
	MajorVersion   int       `json:"major_version" bson:"major_version"`
	SubscriptionID string    `json:"subscription_id" bson:"subscription_id"`
	RegisteredAt   time.Time `json:"registered_at" bson:"registered_at"`
	LastSeenAt     time.Time `json:"last_seen_at" bson:"last_seen_at"`
}

// Registry manages chaser node registrations.
type Registry interface {
	// Register creates or updates a node registration (upsert by fingerprint).
	Register(ctx context.Context, node Node) (*Node, error)

	// Deregister removes a node registration.
	Deregister(ctx context.Context, fingerprint string) error

	// Count returns the number of nodes chasing product.
	Count(ctx context.Context, product string) (int, error)

	// List returns the nodes chasing product, or all nodes if product is empty.
	List(ctx context.Context, product string) ([]Node, error)

	// Ping updates the last_seen_at timestamp for a node. It returns
	// ErrNodeNotFound when the node is not registered.
	Ping(ctx context.Context, fingerprint string) error

	// Prune removes nodes that haven't been seen since olderThan.
	// Returns the number of nodes removed.
	Prune(ctx context.Context, olderThan time.Duration) (int, error)

	// Close releases any resources held by the registry.
	Close(ctx context.Context) error
}
