package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/sakost/zenmoney-api/pkg/tokenstore"
	"github.com/sakost/zenmoney-api/pkg/zenmoney"
)

// runSuggest sends a transaction-shaped payload to the suggest endpoint
// and prints the categorized result. With -payee set, a minimal payload is
// built from the flag; otherwise a JSON object or array is read from stdin.
func runSuggest(logger *slog.Logger, payee string) error {
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

	var payload any
	if payee != "" {
		payload = map[string]any{"payee": payee}
	} else {
		if err := json.NewDecoder(os.Stdin).Decode(&payload); err != nil {
			return fmt.Errorf("reading transaction from stdin: %w", err)
		}
	}

	result, err := client.Suggest(context.Background(), payload)
	if err != nil {
		return fmt.Errorf("suggest request: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return nil
}
