package sms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogSenderAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sms.log")
	s := NewLogSender(path)

	for _, msg := range []string{"first", "second\nline"} {
		res, err := s.Send(context.Background(), "+15550100", msg)
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		if !res.Success || res.ProviderMessageID == "" {
			t.Fatalf("result = %+v", res)
		}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2:\n%s", len(lines), raw)
	}
	if !strings.Contains(lines[1], "to=+15550100") || !strings.Contains(lines[1], "second line") {
		t.Fatalf("line = %q", lines[1])
	}
}

func TestLogSenderRejectsEmptyPhone(t *testing.T) {
	s := NewLogSender(filepath.Join(t.TempDir(), "sms.log"))
	if _, err := s.Send(context.Background(), " ", "hi"); !errors.Is(err, ErrNoPhone) {
		t.Fatalf("err = %v, want ErrNoPhone", err)
	}
}

func TestHTTPSenderSuccess(t *testing.T) {
	var got providerRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(providerResponse{MessageID: "m-1"})
	}))
	defer srv.Close()

	res, err := NewHTTPSender(srv.URL, "key", "TICKETS", srv.Client()).Send(context.Background(), "+1555", "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !res.Success || res.ProviderMessageID != "m-1" {
		t.Fatalf("result = %+v", res)
	}
	if got.To != "+1555" || got.Message != "hello" || got.From != "TICKETS" {
		t.Fatalf("request = %+v", got)
	}
}

func TestHTTPSenderProviderRefusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(providerResponse{Error: "invalid number"})
	}))
	defer srv.Close()

	res, err := NewHTTPSender(srv.URL, "", "", srv.Client()).Send(context.Background(), "123", "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Success || res.Error != "invalid number" {
		t.Fatalf("result = %+v", res)
	}
}

func TestHTTPSenderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewHTTPSender(url, "", "", nil).Send(context.Background(), "123", "hello"); err == nil {
		t.Fatal("Send to closed server: want error")
	}
}
