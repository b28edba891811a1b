package cache

import (
	"context"
	"errors"
)

// ErrMiss is returned by Lookup when the provider id is not cached.
var ErrMiss = errors.New("cache miss")

// MessageLookup maps provider message ids to ledger message ids so status
// callbacks can skip the provider_id query.
type MessageLookup interface {
	Store(ctx context.Context, providerID, messageID string) error
	Lookup(ctx context.Context, providerID string) (string, error)
}

// Noop is used when no Redis is configured. Every lookup misses.
type Noop struct{}

func (Noop) Store(context.Context, string, string) error { return nil }

func (Noop) Lookup(context.Context, string) (string, error) { return "", ErrMiss }
