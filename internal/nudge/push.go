package nudge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PushTitle is the notification title for server nudges.
const PushTitle = "Wish Nudge"

// PushMessage is one entry of an Expo push batch.
type PushMessage struct {
	To    string            `json:"to"`
	Sound string            `json:"sound"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

// PushTicket is the gateway's per-message result.
type PushTicket struct {
	Status  string         `json:"status"`
	ID      string         `json:"id,omitempty"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// PushGateway sends a batch of push messages. Tickets are positionally
// aligned with messages; a returned error fails the whole batch.
type PushGateway interface {
	Send(ctx context.Context, messages []PushMessage) ([]PushTicket, error)
}

// ExpoGateway posts batches to the Expo push API.
type ExpoGateway struct {
	endpoint string
	client   *http.Client
}

// NewExpoGateway creates a gateway for endpoint with a per-request timeout.
func NewExpoGateway(endpoint string, timeout time.Duration) *ExpoGateway {
	return &ExpoGateway{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type expoResponse struct {
	Data []PushTicket `json:"data"`
}

// Send implements PushGateway.
func (g *ExpoGateway) Send(ctx context.Context, messages []PushMessage) ([]PushTicket, error) {
	body, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encode push batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("expo push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("expo push request failed: %d", resp.StatusCode)
	}

	var out expoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}
	return out.Data, nil
}

// ValidPushToken reports whether token has the Expo token shape.
func ValidPushToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken") || strings.HasPrefix(token, "ExpoPushToken")
}
