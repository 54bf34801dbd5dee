package calendar

import (
	"testing"

	gcal "google.golang.org/api/calendar/v3"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if cfg.CalendarID != "primary" {
		t.Fatalf("calendar id = %q", cfg.CalendarID)
	}
	if cfg.CredentialsFile != "credentials.json" || cfg.TokenFile != "token.json" {
		t.Fatalf("file defaults missing: %+v", cfg)
	}
}

func TestEventTime(t *testing.T) {
	if _, ok := eventTime(nil); ok {
		t.Fatalf("nil boundary should not resolve")
	}
	got, ok := eventTime(&gcal.EventDateTime{DateTime: "2025-03-12T10:00:00Z"})
	if !ok {
		t.Fatalf("timed boundary should resolve")
	}
	if got.Hour() != 10 {
		t.Fatalf("got %s", got)
	}
	got, ok = eventTime(&gcal.EventDateTime{Date: "2025-03-12"})
	if !ok {
		t.Fatalf("all-day boundary should resolve")
	}
	if got.Day() != 12 {
		t.Fatalf("got %s", got)
	}
	if _, ok := eventTime(&gcal.EventDateTime{DateTime: "garbage"}); ok {
		t.Fatalf("malformed boundary should not resolve")
	}
}
