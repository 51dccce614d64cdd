// Package csv implements an Exporter that appends transactions to a CSV
// file.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/sakost/zenmoney-api/pkg/models"
)

// Exporter appends transaction rows to a CSV file. Unlike the JSON
// exporter it does not deduplicate; each sync appends what it received.
type Exporter struct {
	filePath string
	file     *os.File
	writer   *csv.Writer
	logger   *slog.Logger
}

// Config holds configuration for the CSV exporter.
type Config struct {
	// FilePath is the path to the CSV output file.
	FilePath string
}

// New creates a new CSV exporter, writing headers if the file is empty.
func New(cfg Config, logger *slog.Logger) (*Exporter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening csv file: %w", err)
	}

	e := &Exporter{
		filePath: cfg.FilePath,
		file:     file,
		writer:   csv.NewWriter(file),
		logger:   logger,
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat csv file: %w", err)
	}
	if stat.Size() == 0 {
		if err := e.writeHeaders(); err != nil {
			file.Close()
			return nil, fmt.Errorf("writing headers: %w", err)
		}
	}

	logger.Info("csv exporter initialized", "file", cfg.FilePath)
	return e, nil
}

func (e *Exporter) writeHeaders() error {
	headers := []string{"ID", "Date", "Payee", "Income", "Outcome", "IncomeAccount", "OutcomeAccount", "Comment"}
	if err := e.writer.Write(headers); err != nil {
		return err
	}
	e.writer.Flush()
	return e.writer.Error()
}

// Export appends the batch as CSV rows.
func (e *Exporter) Export(ctx context.Context, transactions []models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, t := range transactions {
		record := []string{
			t.ID,
			t.Date,
			deref(t.Payee),
			strconv.FormatFloat(t.Income, 'f', 2, 64),
			strconv.FormatFloat(t.Outcome, 'f', 2, 64),
			t.IncomeAccount,
			t.OutcomeAccount,
			deref(t.Comment),
		}
		if err := e.writer.Write(record); err != nil {
			return fmt.Errorf("writing csv record: %w", err)
		}
	}

	e.writer.Flush()
	if err := e.writer.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	e.logger.Debug("wrote transactions to csv", "count", len(transactions))
	return nil
}

// Close flushes buffered rows and closes the file.
func (e *Exporter) Close() error {
	e.writer.Flush()
	if err := e.file.Close(); err != nil {
		return fmt.Errorf("closing csv file: %w", err)
	}
	e.logger.Info("csv exporter closed", "file", e.filePath)
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
