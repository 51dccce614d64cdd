// Command zenmoney is a small CLI around the ZenMoney API client: OAuth
// setup, transaction synchronization, and categorization suggestions.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/sakost/zenmoney-api/pkg/config"
	"github.com/sakost/zenmoney-api/pkg/logging"
)

const usage = `Usage: zenmoney <command> [flags]

Commands:
  setup     Run the OAuth2 authorization flow and save the token
  sync      Pull changed transactions via the diff endpoint and export them
  suggest   Ask the server to categorize a transaction
  status    Show configuration and authentication status

Configuration is read from environment variables (ZENMONEY_CLIENT_ID,
ZENMONEY_CLIENT_SECRET, ZENMONEY_REDIRECT_URI, EXPORT_FORMAT, ...).
`

func main() {
	logger := logging.Setup(logging.FromEnv())

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "setup":
		fs := flag.NewFlagSet("setup", flag.ExitOnError)
		force := fs.Bool("force", false, "re-authenticate even if a token file exists")
		_ = fs.Parse(os.Args[2:])
		err = runSetup(logger, *force)
	case "sync":
		fs := flag.NewFlagSet("sync", flag.ExitOnError)
		full := fs.Bool("full", false, "ignore saved sync state and request a full sync")
		_ = fs.Parse(os.Args[2:])
		err = runSync(logger, *full)
	case "suggest":
		fs := flag.NewFlagSet("suggest", flag.ExitOnError)
		payee := fs.String("payee", "", "payee to categorize (reads a JSON transaction from stdin when empty)")
		_ = fs.Parse(os.Args[2:])
		err = runSuggest(logger, *payee)
	case "status":
		err = runStatus()
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from environment variables.
func loadConfig() (config.Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return config.Config{}, fmt.Errorf("loading config from environment: %w", err)
	}

	var cfg config.Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return config.Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

func requireCredentials(cfg config.Config) error {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return fmt.Errorf("ZENMONEY_CLIENT_ID and ZENMONEY_CLIENT_SECRET environment variables are required")
	}
	return nil
}
