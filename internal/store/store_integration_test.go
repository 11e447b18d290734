package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/reportsweep/reportsweep/internal/kv"
)

func newIntegrationClient(t *testing.T) (*Client, Buckets) {
	t.Helper()

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	client, err := Connect(natsURL)
	if err != nil {
		t.Skipf("skipping integration test; NATS unavailable at %s: %v", natsURL, err)
	}

	t.Cleanup(func() {
		_ = client.Close()
	})

	suffix := fmt.Sprintf("it-%d", time.Now().UnixNano())
	buckets := Buckets{
		Source:     "src-" + suffix,
		Processed:  "proc-" + suffix,
		Quarantine: "quar-" + suffix,
		Locks:      "locks-" + suffix,
		Runs:       "runs-" + suffix,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Setup(ctx, buckets); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	// Setup must be idempotent.
	if err := client.Setup(ctx, buckets); err != nil {
		t.Fatalf("second Setup() error = %v", err)
	}

	return client, buckets
}

func TestBucketRoundTrip(t *testing.T) {
	client, buckets := newIntegrationClient(t)
	ctx := context.Background()

	bucket, err := client.ObjectBucket(ctx, buckets.Source)
	if err != nil {
		t.Fatalf("ObjectBucket() error = %v", err)
	}

	if ok, err := bucket.Exists(ctx, "a.json"); err != nil || ok {
		t.Fatalf("Exists() before write = (%v, %v), want (false, nil)", ok, err)
	}

	content := []byte(`{"report_id":"r-1"}`)
	if err := bucket.Write(ctx, "a.json", content); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := bucket.Read(ctx, "a.json")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("Read() = %q, want %q", got, content)
	}

	mod, err := bucket.LastModified(ctx, "a.json")
	if err != nil {
		t.Fatalf("LastModified() error = %v", err)
	}
	if time.Since(mod) > time.Minute {
		t.Errorf("LastModified() = %v, not recent", mod)
	}

	if err := bucket.SetMetadata(ctx, "a.json", map[string]string{"error": "boom"}); err != nil {
		t.Fatalf("SetMetadata() error = %v", err)
	}

	present, err := bucket.DeleteIfExists(ctx, "a.json")
	if err != nil || !present {
		t.Fatalf("DeleteIfExists() = (%v, %v), want (true, nil)", present, err)
	}
	present, err = bucket.DeleteIfExists(ctx, "a.json")
	if err != nil || present {
		t.Fatalf("second DeleteIfExists() = (%v, %v), want (false, nil)", present, err)
	}
}

func TestBucketList_FiltersAndSorts(t *testing.T) {
	client, buckets := newIntegrationClient(t)
	ctx := context.Background()

	bucket, err := client.ObjectBucket(ctx, buckets.Source)
	if err != nil {
		t.Fatalf("ObjectBucket() error = %v", err)
	}

	names, err := bucket.List(ctx, ".json")
	if err != nil {
		t.Fatalf("List() on empty bucket error = %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("List() on empty bucket = %v, want empty", names)
	}

	for _, name := range []string{"b.json", "a.json", "notes.txt"} {
		if err := bucket.Write(ctx, name, []byte("{}")); err != nil {
			t.Fatalf("Write(%s) error = %v", name, err)
		}
	}

	names, err = bucket.List(ctx, ".json")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 2 || names[0] != "a.json" || names[1] != "b.json" {
		t.Fatalf("List() = %v, want [a.json b.json]", names)
	}
}

func TestMover_RelocatesWithMetadata(t *testing.T) {
	client, buckets := newIntegrationClient(t)
	ctx := context.Background()

	src, err := client.ObjectBucket(ctx, buckets.Source)
	if err != nil {
		t.Fatalf("ObjectBucket(source) error = %v", err)
	}
	dst, err := client.ObjectBucket(ctx, buckets.Quarantine)
	if err != nil {
		t.Fatalf("ObjectBucket(quarantine) error = %v", err)
	}

	if err := src.Write(ctx, "c.json", []byte(`{"broken":true}`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	mover := NewMover(src, dst)
	meta := map[string]string{"retry_count": "3", "error": "transform failed"}
	if err := mover.Move(ctx, "c.json", meta); err != nil {
		t.Fatalf("Move() error = %v", err)
	}

	if ok, _ := src.Exists(ctx, "c.json"); ok {
		t.Error("source object still present after Move()")
	}
	if ok, _ := dst.Exists(ctx, "c.json"); !ok {
		t.Error("destination object missing after Move()")
	}
}

func TestKVStore_CreateEntryDelete(t *testing.T) {
	client, buckets := newIntegrationClient(t)
	ctx := context.Background()

	kvBucket, err := client.KeyValue(ctx, buckets.Locks)
	if err != nil {
		t.Fatalf("KeyValue() error = %v", err)
	}
	s := kv.NewStore(kvBucket)

	if _, err := s.Create(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := s.Create(ctx, "k", []byte("v2")); err == nil {
		t.Fatal("second Create() succeeded, want key-exists error")
	}

	value, created, err := s.Entry(ctx, "k")
	if err != nil {
		t.Fatalf("Entry() error = %v", err)
	}
	if string(value) != "v1" {
		t.Errorf("Entry() value = %q, want %q", value, "v1")
	}
	if time.Since(created) > time.Minute {
		t.Errorf("Entry() created = %v, not recent", created)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if s.Exists(ctx, "k") {
		t.Error("key still exists after Delete()")
	}
}

func TestRunStore_RecordLatestTotals(t *testing.T) {
	client, buckets := newIntegrationClient(t)
	ctx := context.Background()

	runsKV, err := client.KeyValue(ctx, buckets.Runs)
	if err != nil {
		t.Fatalf("KeyValue() error = %v", err)
	}
	runs := kv.NewRunStore(runsKV)

	latest, err := runs.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() on empty store error = %v", err)
	}
	if latest != nil {
		t.Fatalf("Latest() on empty store = %+v, want nil", latest)
	}

	first := &kv.RunRecord{
		RunID:     "run-1",
		StartedAt: time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
		Total:     5, Succeeded: 4, Failed: 1,
		SuccessRate: "80.00%",
	}
	second := &kv.RunRecord{
		RunID:     "run-2",
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		Total:     2, Succeeded: 2,
		SuccessRate: "100.00%",
	}
	if err := runs.Record(ctx, first); err != nil {
		t.Fatalf("Record(first) error = %v", err)
	}
	if err := runs.Record(ctx, second); err != nil {
		t.Fatalf("Record(second) error = %v", err)
	}

	latest, err = runs.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest == nil || latest.RunID != "run-2" {
		t.Fatalf("Latest() = %+v, want run-2", latest)
	}

	totals, err := runs.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals() error = %v", err)
	}
	if totals.Runs != 2 || totals.Items != 7 || totals.Succeeded != 6 || totals.Failed != 1 {
		t.Fatalf("Totals() = %+v, want 2 runs, 7 items, 6 succeeded, 1 failed", totals)
	}
}
