// Package store wraps NATS JetStream object and KV buckets behind the
// narrow blob-store surface the sweep engine consumes.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Buckets names the storage locations one deployment uses.
type Buckets struct {
	Source     string
	Processed  string
	Quarantine string
	Locks      string
	Runs       string
}

// Default bucket names.
const (
	DefaultSourceBucket     = "reports-incoming"
	DefaultProcessedBucket  = "reports-processed"
	DefaultQuarantineBucket = "reports-quarantine"
	DefaultLockBucket       = "sweep-locks"
	DefaultRunsBucket       = "sweep-runs"
)

// Client owns the NATS connection and JetStream context.
type Client struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect dials NATS and creates a JetStream context.
func Connect(natsURL string) (*Client, error) {
	nc, err := nats.Connect(natsURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	return &Client{nc: nc, js: js}, nil
}

// Conn returns the underlying NATS connection for health reporting.
func (c *Client) Conn() *nats.Conn {
	return c.nc
}

// Close closes the NATS connection.
func (c *Client) Close() error {
	c.nc.Close()
	return nil
}

// Setup creates the object and KV buckets if absent. Idempotent.
func (c *Client) Setup(ctx context.Context, b Buckets) error {
	objects := []struct {
		name        string
		description string
	}{
		{b.Source, "incoming report documents awaiting processing"},
		{b.Processed, "validated and annotated report documents"},
		{b.Quarantine, "report documents that exhausted processing retries"},
	}
	for _, o := range objects {
		_, err := c.js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      o.name,
			Description: o.description,
			Storage:     jetstream.FileStorage,
		})
		if err != nil {
			return fmt.Errorf("creating object bucket %s: %w", o.name, err)
		}
	}

	for _, name := range []string{b.Locks, b.Runs} {
		_, err := c.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:  name,
			Storage: jetstream.FileStorage,
		})
		if err != nil {
			return fmt.Errorf("creating KV bucket %s: %w", name, err)
		}
	}

	return nil
}

// ObjectBucket opens an existing object bucket.
func (c *Client) ObjectBucket(ctx context.Context, name string) (*Bucket, error) {
	obs, err := c.js.ObjectStore(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("opening object bucket %s: %w", name, err)
	}
	return &Bucket{name: name, obs: obs}, nil
}

// KeyValue opens an existing KV bucket.
func (c *Client) KeyValue(ctx context.Context, name string) (jetstream.KeyValue, error) {
	bucket, err := c.js.KeyValue(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("opening KV bucket %s: %w", name, err)
	}
	return bucket, nil
}
