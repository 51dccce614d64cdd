package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sakost/zenmoney-api/pkg/tokenstore"
)

// runStatus checks the configuration and authentication status.
func runStatus() error {
	fmt.Println("=== ZenMoney Status ===")
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Print("Credentials (ZENMONEY_CLIENT_ID/SECRET): ")
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		fmt.Println("missing")
	} else {
		fmt.Println("set")
	}

	fmt.Printf("Token file (%s): ", cfg.TokenFile)
	tok, err := tokenstore.Load(cfg.TokenFile)
	switch {
	case err != nil:
		fmt.Printf("not found (%v)\n", err)
	case tok.AccessToken == "":
		fmt.Println("present but empty")
	case !tok.Expiry.IsZero() && tok.Expiry.Before(time.Now()):
		fmt.Printf("expired at %s", tok.Expiry.Format(time.RFC3339))
		if tok.RefreshToken != "" {
			fmt.Print(" (refresh token available)")
		}
		fmt.Println()
	default:
		fmt.Print("valid")
		if !tok.Expiry.IsZero() {
			fmt.Printf(", expires %s", tok.Expiry.Format(time.RFC3339))
		}
		fmt.Println()
	}

	fmt.Printf("Sync state (%s): ", cfg.StateFile)
	if data, err := os.ReadFile(cfg.StateFile); err != nil {
		fmt.Println("none, next sync will be full")
	} else {
		var state syncState
		if err := json.Unmarshal(data, &state); err != nil || state.ServerTimestamp == 0 {
			fmt.Println("none, next sync will be full")
		} else {
			fmt.Printf("last server timestamp %d (%s)\n",
				state.ServerTimestamp,
				time.Unix(state.ServerTimestamp, 0).Format(time.RFC3339),
			)
		}
	}

	fmt.Printf("Export: format=%s", cfg.ExportFormat)
	if cfg.ExportFormat == "postgres" {
		fmt.Printf(" host=%s db=%s\n", cfg.PostgresHost, cfg.PostgresDatabase)
	} else {
		fmt.Printf(" path=%s\n", cfg.ExportPath)
	}

	return nil
}
