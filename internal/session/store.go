// Package session is the one-shot mailbox between the background render
// pipeline and whoever polls for its result.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyID is returned for operations keyed by an empty session id.
var ErrEmptyID = errors.New("empty session id")

// Record is the outcome of a turn's background render.
type Record struct {
	VideoURL  string    `json:"videoUrl"`
	VideoPath string    `json:"videoPath"`
	Timestamp time.Time `json:"timestamp"`
}

// Store maps session ids to records with at-most-once delivery: a record
// returned by TakeIfReady is gone from the store.
type Store interface {
	Put(ctx context.Context, id string, rec Record) error
	// TakeIfReady returns (nil, nil) while the record is not yet written.
	TakeIfReady(ctx context.Context, id string) (*Record, error)
}

// Waiter is implemented by stores that can block until a record for id has
// been written. Wait does not consume the record.
type Waiter interface {
	Wait(ctx context.Context, id string) error
}
