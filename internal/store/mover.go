package store

import (
	"context"
	"fmt"
)

// Mover relocates objects from a source bucket to a destination bucket.
// JetStream has no server-side copy, so the content travels through the
// client.
type Mover struct {
	src *Bucket
	dst *Bucket
}

// NewMover creates a Mover between two buckets.
func NewMover(src, dst *Bucket) *Mover {
	return &Mover{src: src, dst: dst}
}

// Exists reports whether the object is still present in the source bucket.
func (m *Mover) Exists(ctx context.Context, name string) (bool, error) {
	return m.src.Exists(ctx, name)
}

// Move copies an object to the destination with the given metadata, then
// removes it from the source. If the source delete fails the object exists
// in both buckets; the destination copy is the authoritative one.
func (m *Mover) Move(ctx context.Context, name string, meta map[string]string) error {
	data, err := m.src.Read(ctx, name)
	if err != nil {
		return fmt.Errorf("move %s: %w", name, err)
	}
	if err := m.dst.WriteWithMetadata(ctx, name, data, meta); err != nil {
		return fmt.Errorf("move %s: %w", name, err)
	}
	if _, err := m.src.DeleteIfExists(ctx, name); err != nil {
		return fmt.Errorf("move %s: remove source: %w", name, err)
	}
	return nil
}

// SuffixLister adapts a Bucket to the sweep engine's item enumerator.
type SuffixLister struct {
	Bucket *Bucket
	Suffix string
}

// List returns the eligible item names in the bucket.
func (l *SuffixLister) List(ctx context.Context) ([]string, error) {
	return l.Bucket.List(ctx, l.Suffix)
}
