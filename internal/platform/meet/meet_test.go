package meet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCalendarClientIssue(t *testing.T) {
	var gotAuth string
	var gotReq createEventRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/events" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(createEventResponse{
			MeetLink: "https://meet.example.com/abc",
			EventID:  "evt_1",
		})
	}))
	defer srv.Close()

	c := NewCalendarClient(srv.URL, "api-key")
	link, err := c.Issue(context.Background(), 7, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if link.URL != "https://meet.example.com/abc" || link.EventID != "evt_1" {
		t.Fatalf("link = %+v", link)
	}
	if gotAuth != "Bearer api-key" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotReq.StartTime != "2026-03-01T10:00:00Z" {
		t.Fatalf("start_time = %q", gotReq.StartTime)
	}
}

func TestCalendarClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewCalendarClient(srv.URL, "api-key")
	if _, err := c.Issue(context.Background(), 7, time.Now()); err == nil {
		t.Fatal("non-2xx response should fail")
	}
}

func TestCalendarClientIncompleteResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(createEventResponse{MeetLink: "https://meet.example.com/abc"})
	}))
	defer srv.Close()

	c := NewCalendarClient(srv.URL, "api-key")
	if _, err := c.Issue(context.Background(), 7, time.Now()); err == nil {
		t.Fatal("response without event_id should fail")
	}
}

func TestStaticIssuerLinksAreUnique(t *testing.T) {
	s := &StaticIssuer{}
	a, err := s.Issue(context.Background(), 1, time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	b, _ := s.Issue(context.Background(), 1, time.Now())

	if a.URL == b.URL {
		t.Fatal("static links should be unique per issuance")
	}
	if !strings.HasPrefix(a.URL, "https://meet.telecare.dev/") {
		t.Fatalf("url = %s", a.URL)
	}
	if !strings.HasPrefix(a.EventID, "evt-1-") {
		t.Fatalf("event id = %s", a.EventID)
	}
}
