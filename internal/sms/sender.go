// Package sms sends purchaser notifications.  Delivery is best effort:
// callers log failures and never undo the booking that triggered them.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Result is the provider's answer to one message.
type Result struct {
	Success           bool   `json:"success"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Sender delivers a text message to a phone number.  A non-nil error
// means the provider could not be reached; a reachable provider that
// refuses the message returns Result.Success == false.
type Sender interface {
	Send(ctx context.Context, phone, message string) (Result, error)
}

// ErrNoPhone is returned when there is no number to send to.
var ErrNoPhone = errors.New("sms: empty phone number")

// LogSender appends every message to a local file instead of contacting
// a provider.  It is the default for development.
type LogSender struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewLogSender writes to path, creating parent directories on demand.
func NewLogSender(path string) *LogSender {
	if path == "" {
		path = filepath.Join("logs", "sms.log")
	}
	return &LogSender{path: path, now: time.Now}
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, phone, message string) (Result, error) {
	if strings.TrimSpace(phone) == "" {
		return Result{Error: ErrNoPhone.Error()}, ErrNoPhone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Result{}, fmt.Errorf("mkdir sms log dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return Result{}, fmt.Errorf("open sms log: %w", err)
	}
	defer f.Close()
	id := uuid.NewString()
	line := fmt.Sprintf("[%s] SMS | id=%s | to=%s | %s\n",
		s.now().UTC().Format(time.RFC3339), id, phone, strings.ReplaceAll(message, "\n", " "))
	if _, err := f.WriteString(line); err != nil {
		return Result{}, fmt.Errorf("write sms log: %w", err)
	}
	return Result{Success: true, ProviderMessageID: id}, nil
}

// HTTPSender posts messages as JSON to a provider endpoint.
type HTTPSender struct {
	url    string
	apiKey string
	from   string
	client *http.Client
}

// NewHTTPSender returns a sender for the provider at url.  A nil client
// gets a ten second timeout.
func NewHTTPSender(url, apiKey, from string, client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSender{url: url, apiKey: apiKey, from: from, client: client}
}

type providerRequest struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

type providerResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// Send implements Sender.  2xx responses count as success; other
// statuses are reported in Result.Error.
func (s *HTTPSender) Send(ctx context.Context, phone, message string) (Result, error) {
	if strings.TrimSpace(phone) == "" {
		return Result{Error: ErrNoPhone.Error()}, ErrNoPhone
	}
	body, err := json.Marshal(providerRequest{To: phone, From: s.from, Message: message})
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("sms provider: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var pr providerResponse
	_ = json.Unmarshal(raw, &pr)
	if resp.StatusCode/100 != 2 {
		msg := pr.Error
		if msg == "" {
			msg = fmt.Sprintf("provider returned %d", resp.StatusCode)
		}
		return Result{Error: msg}, nil
	}
	return Result{Success: true, ProviderMessageID: pr.MessageID}, nil
}
