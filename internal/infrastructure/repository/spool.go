package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// SpoolRecorder counts batches written to the spool; satisfied by
// metrics.Registry.
type SpoolRecorder interface {
	RecordSpool(ctx context.Context, table string)
}

// Spool serializes batches that failed persistence twice to disk for
// later replay. Files are JSON, named <table>-<timestamp>.json.
type Spool struct {
	dir     string
	metrics SpoolRecorder // nil disables recording
	logger  *zap.Logger
}

// NewSpool creates the spool directory if needed.
func NewSpool(dir string, logger *zap.Logger) (*Spool, error) {
	if dir == "" {
		dir = "spool"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spool dir %s: %w", dir, err)
	}
	return &Spool{dir: dir, logger: logger}, nil
}

// WithMetrics attaches the spool recorder.
func (s *Spool) WithMetrics(m SpoolRecorder) *Spool {
	s.metrics = m
	return s
}

// WriteBatch serializes the payload for offline replay.
func (s *Spool) WriteBatch(ctx context.Context, table string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal spool payload: %w", err)
	}

	name := fmt.Sprintf("%s-%d.json", table, time.Now().UnixNano())
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write spool file %s: %w", path, err)
	}

	if s.metrics != nil {
		s.metrics.RecordSpool(ctx, table)
	}
	s.logger.Warn("batch spooled for offline replay",
		zap.String("table", table),
		zap.String("path", path))
	return nil
}
