package report

import (
	"context"
	"fmt"
	"time"
)

// SourceBucket is the read/delete surface of the incoming bucket.
type SourceBucket interface {
	Read(ctx context.Context, name string) ([]byte, error)
	DeleteIfExists(ctx context.Context, name string) (bool, error)
}

// DestBucket is the write surface of the processed bucket.
type DestBucket interface {
	WriteWithMetadata(ctx context.Context, name string, data []byte, meta map[string]string) error
}

// Transformer moves one report through download, validation, annotation,
// and relocation to the processed bucket. Each call is one attempt; any
// failing step fails the whole attempt.
type Transformer struct {
	source    SourceBucket
	processed DestBucket
	processor string
	now       func() time.Time
}

// NewTransformer creates a Transformer. processor identifies this instance
// in the annotation it writes.
func NewTransformer(source SourceBucket, processed DestBucket, processor string) *Transformer {
	return &Transformer{
		source:    source,
		processed: processed,
		processor: processor,
		now:       time.Now,
	}
}

// Transform processes one report document end to end.
func (t *Transformer) Transform(ctx context.Context, name string) error {
	data, err := t.source.Read(ctx, name)
	if err != nil {
		return fmt.Errorf("transform %s: %w", name, err)
	}

	doc, err := Parse(data)
	if err != nil {
		return err
	}

	processedAt := t.now()
	annotated, err := Annotate(data, doc, t.processor, processedAt)
	if err != nil {
		return err
	}

	meta := map[string]string{
		"report_id":    doc.ReportID,
		"source":       doc.Source,
		"entry_count":  fmt.Sprintf("%d", len(doc.Entries)),
		"processed_at": processedAt.UTC().Format(time.RFC3339),
	}
	if err := t.processed.WriteWithMetadata(ctx, name, annotated, meta); err != nil {
		return fmt.Errorf("transform %s: %w", name, err)
	}

	if _, err := t.source.DeleteIfExists(ctx, name); err != nil {
		return fmt.Errorf("transform %s: remove source: %w", name, err)
	}
	return nil
}
