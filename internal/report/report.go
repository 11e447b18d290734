// Package report parses, validates, and annotates report documents.
package report

import (
	"encoding/json"
	"fmt"
	"time"
)

// Document is the validated shape of an incoming report.
type Document struct {
	ReportID    string            `json:"report_id"`
	Source      string            `json:"source"`
	GeneratedAt string            `json:"generated_at"`
	Entries     []json.RawMessage `json:"entries"`
}

// ValidationError describes a document that can never be processed
// successfully. It is terminal: retrying cannot fix a malformed report.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid report: %s", e.Reason)
	}
	return fmt.Sprintf("invalid report: field %q %s", e.Field, e.Reason)
}

// Terminal marks the error as non-retryable for the processing engine.
func (e *ValidationError) Terminal() bool {
	return true
}

// Parse decodes and validates a report document. Malformed JSON and shape
// violations return a *ValidationError.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}
	if doc.ReportID == "" {
		return nil, &ValidationError{Field: "report_id", Reason: "is required"}
	}
	if doc.GeneratedAt == "" {
		return nil, &ValidationError{Field: "generated_at", Reason: "is required"}
	}
	if _, err := time.Parse(time.RFC3339, doc.GeneratedAt); err != nil {
		return nil, &ValidationError{Field: "generated_at", Reason: "is not an RFC 3339 timestamp"}
	}
	if doc.Entries == nil {
		return nil, &ValidationError{Field: "entries", Reason: "is required"}
	}
	return &doc, nil
}

// Annotate adds processing metadata to the raw document, preserving any
// fields the Document shape does not model.
func Annotate(data []byte, doc *Document, processedBy string, processedAt time.Time) ([]byte, error) {
	var full map[string]any
	if err := json.Unmarshal(data, &full); err != nil {
		return nil, fmt.Errorf("annotate report %s: %w", doc.ReportID, err)
	}
	full["processed_at"] = processedAt.UTC().Format(time.RFC3339)
	full["processed_by"] = processedBy
	full["entry_count"] = len(doc.Entries)

	out, err := json.Marshal(full)
	if err != nil {
		return nil, fmt.Errorf("annotate report %s: %w", doc.ReportID, err)
	}
	return out, nil
}
