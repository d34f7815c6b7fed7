// Package archive snapshots successfully fetched market data to a
// write-only storage backend (local filesystem or S3-compatible). It is
// an export sink, never consulted when serving requests.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marketsrc/hermes/internal/core"
)

// Storage defines the interface for snapshot storage backends
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)
}

// snapshot is the serialized envelope written per fetch.
type snapshot struct {
	Kind       core.DataKind `json:"kind"`
	Symbol     string        `json:"symbol"`
	CapturedAt time.Time     `json:"captured_at"`
	Data       any           `json:"data"`
}

// Snapshotter adapts a Storage backend to the router's archiver hook.
type Snapshotter struct {
	storage Storage
	now     func() time.Time
}

// NewSnapshotter creates a snapshotter over the given backend.
func NewSnapshotter(s Storage) *Snapshotter {
	return &Snapshotter{storage: s, now: time.Now}
}

// Store serializes one fetched value under kind/symbol/<date>/<id>.json.
func (s *Snapshotter) Store(ctx context.Context, kind core.DataKind, symbol string, v any) error {
	now := s.now().UTC()
	data, err := json.Marshal(snapshot{
		Kind:       kind,
		Symbol:     symbol,
		CapturedAt: now,
		Data:       v,
	})
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	name := symbol
	if name == "" {
		name = "_market"
	}
	path := fmt.Sprintf("%s/%s/%s/%s.json",
		kind, name, now.Format("2006/01/02"), uuid.NewString())

	return s.storage.Write(ctx, path, data)
}
