package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go"

	"github.com/sakost/zenmoney-api/pkg/auth"
	"github.com/sakost/zenmoney-api/pkg/config"
	"github.com/sakost/zenmoney-api/pkg/export"
	csvexport "github.com/sakost/zenmoney-api/pkg/export/csv"
	jsonexport "github.com/sakost/zenmoney-api/pkg/export/json"
	pgexport "github.com/sakost/zenmoney-api/pkg/export/postgres"
	"github.com/sakost/zenmoney-api/pkg/models"
	"github.com/sakost/zenmoney-api/pkg/tokenstore"
	"github.com/sakost/zenmoney-api/pkg/zenmoney"
)

// syncState is what sync persists between runs to request incremental
// diffs instead of full ones.
type syncState struct {
	ServerTimestamp int64 `json:"serverTimestamp"`
}

// runSync pulls changed data from the diff endpoint and exports the
// transactions.
func runSync(logger *slog.Logger, full bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireCredentials(cfg); err != nil {
		return err
	}

	token, err := tokenstore.Load(cfg.TokenFile)
	if err != nil {
		return fmt.Errorf("loading token (run 'zenmoney setup' first): %w", err)
	}

	client, err := zenmoney.NewWithToken(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI, token, logger)
	if err != nil {
		return err
	}

	ctx := context.Background()

	exporter, err := newExporter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := exporter.Close(); err != nil {
			logger.Warn("closing exporter", "error", err)
		}
	}()

	state := loadSyncState(cfg.StateFile, logger)
	if full {
		state.ServerTimestamp = 0
	}

	payload := &models.DiffObject{
		ServerTimestamp:        state.ServerTimestamp,
		CurrentClientTimestamp: time.Now().Unix(),
	}

	logger.Info("requesting diff",
		"server_timestamp", payload.ServerTimestamp,
		"full", payload.ServerTimestamp == 0,
	)

	// The client core never retries; rate limits and server hiccups are a
	// caller concern, handled here.
	var diff map[string]any
	err = retry.Do(
		func() error {
			result, err := client.GetDiff(ctx, payload)
			if err != nil {
				return err
			}
			diff = result
			return nil
		},
		retry.RetryIf(func(err error) bool {
			var herr *auth.HTTPError
			if errors.As(err, &herr) {
				return herr.StatusCode == http.StatusTooManyRequests || herr.StatusCode >= 500
			}
			return false
		}),
		retry.Attempts(3),
		retry.Delay(10*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("diff request: %w", err)
	}

	transactions, err := transactionsFromDiff(diff)
	if err != nil {
		return err
	}

	if len(transactions) > 0 {
		if err := exporter.Export(ctx, transactions); err != nil {
			return fmt.Errorf("exporting transactions: %w", err)
		}
	}

	if ts, ok := diff["serverTimestamp"].(float64); ok {
		state.ServerTimestamp = int64(ts)
		if err := saveSyncState(cfg.StateFile, state); err != nil {
			logger.Warn("saving sync state", "error", err)
		}
	}

	// Refresh during the call may have rotated the token.
	if tok := client.Auth().Token(); tok != nil {
		if err := tokenstore.Save(cfg.TokenFile, tok); err != nil {
			logger.Warn("saving token", "error", err)
		}
	}

	logger.Info("sync complete",
		"transactions", len(transactions),
		"server_timestamp", state.ServerTimestamp,
		"format", cfg.ExportFormat,
	)
	return nil
}

// newExporter builds the exporter selected by EXPORT_FORMAT.
func newExporter(ctx context.Context, cfg config.Config, logger *slog.Logger) (export.Exporter, error) {
	switch cfg.ExportFormat {
	case "json":
		if err := os.MkdirAll(filepath.Dir(cfg.ExportPath), 0o700); err != nil {
			return nil, fmt.Errorf("creating export directory: %w", err)
		}
		return jsonexport.New(jsonexport.Config{FilePath: cfg.ExportPath}, logger)
	case "csv":
		if err := os.MkdirAll(filepath.Dir(cfg.ExportPath), 0o700); err != nil {
			return nil, fmt.Errorf("creating export directory: %w", err)
		}
		return csvexport.New(csvexport.Config{FilePath: cfg.ExportPath}, logger)
	case "postgres":
		return pgexport.New(ctx, pgexport.Config{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			Database: cfg.PostgresDatabase,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			SSLMode:  cfg.PostgresSSLMode,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown export format: %s", cfg.ExportFormat)
	}
}

// transactionsFromDiff pulls the transaction list out of the raw diff
// response and decodes it into typed entities.
func transactionsFromDiff(diff map[string]any) ([]models.Transaction, error) {
	raw, ok := diff["transaction"]
	if !ok || raw == nil {
		return nil, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("re-encoding transaction list: %w", err)
	}

	var transactions []models.Transaction
	if err := json.Unmarshal(data, &transactions); err != nil {
		return nil, fmt.Errorf("decoding transaction list: %w", err)
	}
	return transactions, nil
}

func loadSyncState(path string, logger *slog.Logger) syncState {
	var state syncState
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("reading sync state", "error", err)
		}
		return state
	}
	if err := json.Unmarshal(data, &state); err != nil {
		logger.Warn("parsing sync state, starting from full sync", "error", err)
		return syncState{}
	}
	return state
}

func saveSyncState(path string, state syncState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding sync state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing sync state: %w", err)
	}
	return nil
}
