package notifiers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cometskit/internal/comets"
)

func TestWebhookNotifier(t *testing.T) {
	notifier := NewWebhookNotifier("test-webhook", "http://localhost:9999/webhook")

	if notifier.ID() != "test-webhook" {
		t.Errorf("Expected ID 'test-webhook', got '%s'", notifier.ID())
	}

	if notifier.Type() != "webhook" {
		t.Errorf("Expected type 'webhook', got '%s'", notifier.Type())
	}

	// Test notification (will fail to send, but that's ok for unit test)
	event := comets.Event{RunID: "run-1", Type: comets.EventRunStarted}

	// This will fail because there's no server running
	ctx := context.Background()
	err := notifier.Notify(ctx, event)
	if err == nil {
		t.Log("Note: Webhook test would need a running server to fully test")
	}

	// Test close
	err = notifier.Close()
	if err != nil {
		t.Errorf("Close should not return error: %v", err)
	}
}

func TestWebhookNotifier_Delivery(t *testing.T) {
	var received comets.Event
	var contentType, authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		contentType = r.Header.Get("Content-Type")
		authHeader = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("Expected a JSON body, got error: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier("dashboard", server.URL)
	notifier.SetHeader("Authorization", "Bearer lab-token")

	event := comets.Event{
		RunID:       "run-42",
		Type:        comets.EventRunProgress,
		Cycle:       12,
		TotalCycles: 240,
	}
	if err := notifier.Notify(context.Background(), event); err != nil {
		t.Fatalf("Expected delivery to succeed, got %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("Expected application/json, got %q", contentType)
	}
	if authHeader != "Bearer lab-token" {
		t.Errorf("Expected custom header to be sent, got %q", authHeader)
	}
	if received.RunID != "run-42" || received.Cycle != 12 {
		t.Errorf("Expected the event to round-trip, got %+v", received)
	}
}

func TestWebhookNotifier_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier("dashboard", server.URL)

	err := notifier.Notify(context.Background(), comets.Event{RunID: "run-1"})
	if err == nil {
		t.Fatal("Expected error for a 500 response, got nil")
	}
}
