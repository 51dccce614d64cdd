package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/sakost/zenmoney-api/pkg/auth"
	"github.com/sakost/zenmoney-api/pkg/tokenstore"
)

const (
	// callbackAddr is where the local OAuth callback server listens.
	callbackAddr = "localhost:8085"
	// callbackPath is the path for the OAuth callback.
	callbackPath = "/callback"
	// callbackTimeout is how long to wait for the OAuth callback.
	callbackTimeout = 5 * time.Minute
)

// runSetup handles the OAuth authorization-code flow and saves the token.
func runSetup(logger *slog.Logger, force bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireCredentials(cfg); err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(cfg.TokenFile); err == nil {
			fmt.Printf("Already authenticated, token file exists: %s\n", cfg.TokenFile)
			fmt.Println("To re-authenticate, run: zenmoney setup -force")
			return nil
		}
	}

	redirectURI := cfg.RedirectURI
	local := false
	if redirectURI == "" {
		redirectURI = "http://" + callbackAddr + callbackPath
		local = true
	} else if u, err := url.Parse(redirectURI); err == nil && u.Host == callbackAddr {
		local = true
	}

	authClient, err := auth.New(auth.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  redirectURI,
	}, logger)
	if err != nil {
		return err
	}

	authURL, err := authClient.AuthorizationURL(nil)
	if err != nil {
		return fmt.Errorf("building authorization url: %w", err)
	}

	ctx := context.Background()

	var code string
	if local {
		code, err = waitForCode(ctx, authURL, authClient.State(), logger)
	} else {
		code, err = promptForCode(authURL)
	}
	if err != nil {
		return err
	}

	tok, err := authClient.FetchToken(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	if err := tokenstore.Save(cfg.TokenFile, tok); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	fmt.Println()
	fmt.Println("Authentication successful!")
	fmt.Printf("Token saved to: %s\n", cfg.TokenFile)
	fmt.Println()
	fmt.Println("Next step: run 'zenmoney sync' to pull your transactions.")
	return nil
}

// waitForCode runs a local callback server, opens the browser, and waits
// for ZenMoney to redirect back with an authorization code.
func waitForCode(ctx context.Context, authURL, expectedState string, logger *slog.Logger) (string, error) {
	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	server, err := startCallbackServer(ctx, expectedState, codeChan, errChan)
	if err != nil {
		return "", fmt.Errorf("starting callback server: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	fmt.Printf("\nOpening browser for ZenMoney authorization...\n")
	fmt.Printf("If the browser doesn't open automatically, visit this URL:\n%s\n\n", authURL)

	if err := openBrowser(authURL); err != nil {
		logger.Warn("failed to open browser automatically", "error", err)
	}

	select {
	case code := <-codeChan:
		return code, nil
	case err := <-errChan:
		return "", fmt.Errorf("oauth callback error: %w", err)
	case <-time.After(callbackTimeout):
		return "", fmt.Errorf("oauth flow timed out after %v", callbackTimeout)
	}
}

// promptForCode prints the authorization URL and reads the code from stdin,
// for redirect URIs this process cannot serve.
func promptForCode(authURL string) (string, error) {
	fmt.Printf("\nVisit this URL in your browser to authorize the application:\n%s\n\n", authURL)
	fmt.Print("Enter the authorization code from the callback: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading authorization code: %w", err)
	}

	code := strings.TrimSpace(line)
	if code == "" {
		return "", fmt.Errorf("no authorization code provided")
	}
	return code, nil
}

func startCallbackServer(ctx context.Context, expectedState string, codeChan chan<- string, errChan chan<- error) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		// Verify state to prevent CSRF
		if state := r.URL.Query().Get("state"); state != expectedState {
			errChan <- fmt.Errorf("invalid state parameter")
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		// Check for errors from the OAuth provider
		if errMsg := r.URL.Query().Get("error"); errMsg != "" {
			errDesc := r.URL.Query().Get("error_description")
			errChan <- fmt.Errorf("%s: %s", errMsg, errDesc)
			http.Error(w, fmt.Sprintf("Authorization failed: %s", errMsg), http.StatusBadRequest)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			errChan <- fmt.Errorf("no authorization code received")
			http.Error(w, "No authorization code received", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Authorization Successful</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh;">
<h1>Authorization Successful</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`)

		codeChan <- code
	})

	server := &http.Server{
		Addr:              callbackAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", server.Addr)
	if err != nil {
		return nil, fmt.Errorf("address %s unavailable: %w", callbackAddr, err)
	}

	go func() {
		slog.Debug("starting OAuth callback server", "addr", callbackAddr)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("callback server error", "error", err)
			errChan <- err
		}
	}()

	return server, nil
}

func openBrowser(url string) error {
	ctx := context.Background()
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
