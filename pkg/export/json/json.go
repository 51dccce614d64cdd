// Package json implements an Exporter that writes transactions to a JSON
// file.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/sakost/zenmoney-api/pkg/models"
)

// Exporter accumulates transactions in a JSON array file, deduplicated by
// transaction id so re-synced transactions replace their older versions.
type Exporter struct {
	filePath string
	byID     map[string]models.Transaction
	logger   *slog.Logger
}

// Config holds configuration for the JSON exporter.
type Config struct {
	// FilePath is the path to the JSON output file.
	FilePath string
}

// New creates a new JSON exporter, loading any existing file content.
func New(cfg Config, logger *slog.Logger) (*Exporter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Exporter{
		filePath: cfg.FilePath,
		byID:     make(map[string]models.Transaction),
		logger:   logger,
	}

	if err := e.loadExisting(); err != nil {
		return nil, fmt.Errorf("loading existing transactions: %w", err)
	}

	logger.Info("json exporter initialized", "file", cfg.FilePath, "existing_count", len(e.byID))
	return e, nil
}

func (e *Exporter) loadExisting() error {
	data, err := os.ReadFile(e.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var existing []models.Transaction
	if err := json.Unmarshal(data, &existing); err != nil {
		return err
	}
	for _, t := range existing {
		e.byID[t.ID] = t
	}
	return nil
}

// Export merges the batch into the file, replacing transactions that were
// re-delivered with a newer changed stamp.
func (e *Exporter) Export(ctx context.Context, transactions []models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, t := range transactions {
		e.byID[t.ID] = t
	}

	all := make([]models.Transaction, 0, len(e.byID))
	for _, t := range e.byID {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Date != all[j].Date {
			return all[i].Date < all[j].Date
		}
		return all[i].ID < all[j].ID
	})

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}
	if err := os.WriteFile(e.filePath, data, 0o600); err != nil {
		return fmt.Errorf("writing json file: %w", err)
	}

	e.logger.Debug("wrote transactions to json",
		"batch_count", len(transactions),
		"total_count", len(all),
	)
	return nil
}

// Close is a no-op; every Export call writes the full file.
func (e *Exporter) Close() error {
	return nil
}

// Count returns the number of distinct transactions held.
func (e *Exporter) Count() int {
	return len(e.byID)
}
