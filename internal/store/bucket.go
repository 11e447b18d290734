package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Bucket provides typed access to one JetStream object bucket.
type Bucket struct {
	name string
	obs  jetstream.ObjectStore
}

// Name returns the bucket name.
func (b *Bucket) Name() string {
	return b.name
}

// Exists reports whether an object is present.
func (b *Bucket) Exists(ctx context.Context, name string) (bool, error) {
	_, err := b.obs.GetInfo(ctx, name)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s/%s: %w", b.name, name, err)
	}
	return true, nil
}

// LastModified returns the time the object was last written.
func (b *Bucket) LastModified(ctx context.Context, name string) (time.Time, error) {
	info, err := b.obs.GetInfo(ctx, name)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s/%s: %w", b.name, name, err)
	}
	return info.ModTime, nil
}

// Read retrieves an object's content.
func (b *Bucket) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := b.obs.GetBytes(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", b.name, name, err)
	}
	return data, nil
}

// Write stores an object.
func (b *Bucket) Write(ctx context.Context, name string, data []byte) error {
	if _, err := b.obs.PutBytes(ctx, name, data); err != nil {
		return fmt.Errorf("write %s/%s: %w", b.name, name, err)
	}
	return nil
}

// WriteWithMetadata stores an object with attached key/value metadata.
func (b *Bucket) WriteWithMetadata(ctx context.Context, name string, data []byte, meta map[string]string) error {
	_, err := b.obs.Put(ctx, jetstream.ObjectMeta{Name: name, Metadata: meta}, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", b.name, name, err)
	}
	return nil
}

// SetMetadata replaces an object's metadata without rewriting its content.
func (b *Bucket) SetMetadata(ctx context.Context, name string, meta map[string]string) error {
	if err := b.obs.UpdateMeta(ctx, name, jetstream.ObjectMeta{Name: name, Metadata: meta}); err != nil {
		return fmt.Errorf("update metadata %s/%s: %w", b.name, name, err)
	}
	return nil
}

// Delete removes an object.
func (b *Bucket) Delete(ctx context.Context, name string) error {
	if err := b.obs.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete %s/%s: %w", b.name, name, err)
	}
	return nil
}

// DeleteIfExists removes an object, reporting whether it was present.
func (b *Bucket) DeleteIfExists(ctx context.Context, name string) (bool, error) {
	err := b.obs.Delete(ctx, name)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("delete %s/%s: %w", b.name, name, err)
	}
	return true, nil
}

// List returns the names of all live objects whose name ends with suffix,
// sorted for deterministic processing order. An empty suffix matches all.
func (b *Bucket) List(ctx context.Context, suffix string) ([]string, error) {
	infos, err := b.obs.List(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoObjectsFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", b.name, err)
	}

	var names []string
	for _, info := range infos {
		if info.Deleted {
			continue
		}
		if suffix != "" && !strings.HasSuffix(info.Name, suffix) {
			continue
		}
		names = append(names, info.Name)
	}
	sort.Strings(names)
	return names, nil
}
