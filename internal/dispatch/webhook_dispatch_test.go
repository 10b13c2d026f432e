package dispatch

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/fleet-tracking/internal/models"
)

func sampleEvent() models.TransitionEvent {
	return models.TransitionEvent{
		ID:        "ev-1",
		EntityID:  "V1",
		ZoneID:    "downtown",
		Type:      models.TransitionEnter,
		Loc:       models.Coord{Lat: 19.4326, Lon: -99.1332},
		Timestamp: time.Now(),
	}
}

func TestWebhookDispatcherPostsEvent(t *testing.T) {
	var got models.TransitionEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(srv.URL)
	if err := d.Publish(sampleEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got.EntityID != "V1" || got.Type != models.TransitionEnter {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestWebhookDispatcherReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewWebhookDispatcher(srv.URL)
	if err := d.Publish(sampleEvent()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestWebhookDispatcherReportsConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // endpoint is gone

	d := NewWebhookDispatcher(srv.URL)
	if err := d.Publish(sampleEvent()); err == nil {
		t.Fatal("expected error when endpoint is unreachable")
	}
}
