package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// authPort is the local port capturing the OAuth redirect during Authorize.
const authPort = "6789"

var scopes = []string{gcal.CalendarEventsScope, gcal.CalendarReadonlyScope}

// NewService builds an authorized Google Calendar service from a previously
// saved token. Run Authorize first to obtain one.
func NewService(ctx context.Context, cfg Config) (*gcal.Service, error) {
	oc, err := oauthConfig(cfg)
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("no calendar token at %s, run the auth command first: %w", cfg.TokenFile, err)
	}
	srv, err := gcal.NewService(ctx, option.WithHTTPClient(oc.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return srv, nil
}

// Authorize runs the OAuth 2.0 authorization code flow through a local web
// server and saves the obtained token to cfg.TokenFile.
func Authorize(ctx context.Context, cfg Config) error {
	oc, err := oauthConfig(cfg)
	if err != nil {
		return err
	}
	oc.RedirectURL = fmt.Sprintf("http://localhost:%s/oauth2callback", authPort)

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	listener, err := net.Listen("tcp", ":"+authPort)
	if err != nil {
		return fmt.Errorf("listen on port %s: %w", authPort, err)
	}
	defer listener.Close()

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "authorization code not found", http.StatusBadRequest)
				errCh <- fmt.Errorf("authorization code missing in redirect")
				return
			}
			fmt.Fprint(w, "Authorization successful, you can close this window.")
			codeCh <- code
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	defer srv.Shutdown(context.Background())

	url := oc.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Printf("Open the following URL in your browser to authorize calendar access:\n%s\n", url)

	select {
	case code := <-codeCh:
		exchangeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := oc.Exchange(exchangeCtx, code)
		if err != nil {
			return fmt.Errorf("exchange authorization code: %w", err)
		}
		return saveToken(cfg.TokenFile, tok)
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("authorization timed out")
	}
}

func oauthConfig(cfg Config) (*oauth2.Config, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read client credentials %s: %w", cfg.CredentialsFile, err)
	}
	oc, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client credentials: %w", err)
	}
	return oc, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("save token %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}
