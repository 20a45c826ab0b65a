package nudge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExpoGateway_Send(t *testing.T) {
	var received []PushMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"status":"ok","id":"abc"},{"status":"error","message":"bad"}]}`))
	}))
	defer srv.Close()

	g := NewExpoGateway(srv.URL, 2*time.Second)
	tickets, err := g.Send(context.Background(), []PushMessage{
		{To: "ExponentPushToken[1]", Sound: "default", Title: PushTitle, Body: "hi", Data: map[string]string{"pairId": "p", "wishId": "w"}},
		{To: "ExponentPushToken[2]", Sound: "default", Title: PushTitle, Body: "hi"},
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(received) != 2 || received[0].Data["wishId"] != "w" {
		t.Errorf("received = %+v", received)
	}
	if len(tickets) != 2 || tickets[0].Status != "ok" || tickets[1].Message != "bad" {
		t.Errorf("tickets = %+v", tickets)
	}
}

func TestExpoGateway_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewExpoGateway(srv.URL, time.Second).Send(context.Background(), []PushMessage{{To: "x"}})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("Send() error = %v, want status in message", err)
	}
}

func TestExpoGateway_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewExpoGateway(url, time.Second).Send(context.Background(), []PushMessage{{To: "x"}}); err == nil {
		t.Error("expected error for closed server")
	}
}

func TestValidPushToken(t *testing.T) {
	cases := map[string]bool{
		"ExponentPushToken[xxx]": true,
		"ExpoPushToken[xxx]":     true,
		"":                       false,
		"fcm:abc":                false,
		"exponentpushtoken[x]":   false,
	}
	for tok, want := range cases {
		if got := ValidPushToken(tok); got != want {
			t.Errorf("ValidPushToken(%q) = %v, want %v", tok, got, want)
		}
	}
}
