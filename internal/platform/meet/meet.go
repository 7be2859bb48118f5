// Package meet obtains video meeting links for confirmed consultations from
// an external calendar service. The consultation core only stores the issued
// link and event id; scheduling reminders, attendee management, and the rest
// of the calendar surface live with the provider.
package meet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Link is an issued meeting link paired with the provider's event id.
type Link struct {
	URL     string `json:"url"`
	EventID string `json:"event_id"`
}

// Issuer issues a meeting link for an appointment. Implementations must be
// safe for concurrent use.
type Issuer interface {
	Issue(ctx context.Context, appointmentID int64, startsAt time.Time) (Link, error)
}

// ClientOption configures a CalendarClient.
type ClientOption func(*CalendarClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cc *CalendarClient) { cc.httpClient = c }
}

// CalendarClient issues links by creating events on a remote calendar API.
type CalendarClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewCalendarClient creates a client for the calendar event API.
func NewCalendarClient(baseURL, apiKey string, opts ...ClientOption) *CalendarClient {
	c := &CalendarClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type createEventRequest struct {
	Summary   string `json:"summary"`
	StartTime string `json:"start_time"`
}

type createEventResponse struct {
	MeetLink string `json:"meet_link"`
	EventID  string `json:"event_id"`
}

// Issue creates a calendar event for the consultation and returns its
// meeting link.
func (c *CalendarClient) Issue(ctx context.Context, appointmentID int64, startsAt time.Time) (Link, error) {
	body, err := json.Marshal(createEventRequest{
		Summary:   fmt.Sprintf("Consultation #%d", appointmentID),
		StartTime: startsAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Link{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return Link{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Link{}, fmt.Errorf("calendar request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read at most 1KB of the error body for logging upstream.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Link{}, fmt.Errorf("calendar returned status %d: %s", resp.StatusCode, string(b))
	}

	var out createEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Link{}, fmt.Errorf("decode calendar response: %w", err)
	}
	if out.MeetLink == "" || out.EventID == "" {
		return Link{}, fmt.Errorf("calendar response missing meet_link or event_id")
	}
	return Link{URL: out.MeetLink, EventID: out.EventID}, nil
}

// StaticIssuer issues locally generated links; used in development and tests
// where no calendar service is configured.
type StaticIssuer struct {
	BaseURL string
}

// Issue returns a unique link under the issuer's base URL.
func (s *StaticIssuer) Issue(_ context.Context, appointmentID int64, _ time.Time) (Link, error) {
	base := s.BaseURL
	if base == "" {
		base = "https://meet.telecare.dev"
	}
	id := uuid.New().String()
	return Link{
		URL:     fmt.Sprintf("%s/%s", base, id),
		EventID: fmt.Sprintf("evt-%d-%s", appointmentID, id[:8]),
	}, nil
}
