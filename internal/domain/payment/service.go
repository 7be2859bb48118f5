// Package payment confirms consultation payments. Both the direct "mark
// paid" endpoint and the provider webhook funnel into one guarded database
// transition, so replays and racing confirmations settle on exactly one
// winner.
package payment

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telecare/telecare/internal/domain/appointment"
	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/internal/platform/meet"
	"github.com/telecare/telecare/pkg/apperrors"
)

// EventTypePaymentSucceeded is the only provider event type acted upon.
const EventTypePaymentSucceeded = "payment_intent.succeeded"

// Event is the subset of a provider webhook event the service reads.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// Service applies payment outcomes to appointments.
type Service struct {
	appts  appointment.Repository
	links  meet.Issuer
	logger zerolog.Logger
}

func NewService(appts appointment.Repository, links meet.Issuer, logger zerolog.Logger) *Service {
	return &Service{appts: appts, links: links, logger: logger}
}

// Confirm marks the caller's appointment paid. The underlying transition is
// a compare-and-set on payment_status, so losing a race with the webhook
// surfaces as a Conflict rather than a double payment.
func (s *Service) Confirm(ctx context.Context, patientID, apptID int64) (*appointment.View, error) {
	a, err := s.appts.GetByID(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if a.PatientID != patientID {
		return nil, apperrors.Forbidden("appointment belongs to another patient")
	}
	if a.Status.Terminal() {
		return nil, apperrors.InvalidState("appointment is " + string(a.Status))
	}
	if a.Fee == nil || *a.Fee <= 0 {
		return nil, apperrors.InvalidState("appointment has no payable fee")
	}

	intentID := "direct-" + uuid.New().String()
	won, err := s.appts.TryMarkPaid(ctx, apptID, intentID)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, apperrors.Conflict("payment already recorded")
	}
	s.logger.Info().
		Int64("appointment_id", apptID).
		Str("payment_intent_id", intentID).
		Msg("payment confirmed")

	s.ensureMeetingLink(ctx, apptID)

	updated, err := s.appts.GetByID(ctx, apptID)
	if err != nil {
		return nil, err
	}
	v := updated.ViewFor(patientID, auth.RolePatient)
	return &v, nil
}

// ParseEvent decodes a verified webhook payload.
func ParseEvent(payload []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, apperrors.InvalidState("malformed event payload")
	}
	return &evt, nil
}

// HandleProviderEvent applies a verified provider event. Replayed events and
// lost races are logged no-ops; only infrastructure failures return an error.
func (s *Service) HandleProviderEvent(ctx context.Context, evt *Event) error {
	if evt.Type != EventTypePaymentSucceeded {
		s.logger.Debug().Str("event_type", evt.Type).Msg("ignoring provider event")
		return nil
	}

	raw, ok := evt.Data.Object.Metadata["appointment_id"]
	if !ok {
		s.logger.Warn().Str("event_id", evt.ID).Msg("payment event without appointment_id metadata")
		return nil
	}
	apptID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || apptID <= 0 {
		s.logger.Warn().Str("event_id", evt.ID).Str("appointment_id", raw).
			Msg("payment event with unparseable appointment_id")
		return nil
	}

	won, err := s.appts.TryMarkPaid(ctx, apptID, evt.Data.Object.ID)
	if err != nil {
		return err
	}
	if !won {
		s.logger.Info().
			Int64("appointment_id", apptID).
			Str("event_id", evt.ID).
			Msg("payment event replay or already paid, nothing to do")
		return nil
	}
	s.logger.Info().
		Int64("appointment_id", apptID).
		Str("payment_intent_id", evt.Data.Object.ID).
		Msg("payment confirmed via webhook")

	s.ensureMeetingLink(ctx, apptID)
	return nil
}

// ensureMeetingLink mints a meeting link for a freshly paid appointment that
// does not have one. The payment stands even when issuance fails; a later
// confirmation pass can fill the link in.
func (s *Service) ensureMeetingLink(ctx context.Context, apptID int64) {
	a, err := s.appts.GetByID(ctx, apptID)
	if err != nil || a.MeetingLink != nil {
		return
	}

	link, err := s.links.Issue(ctx, a.ID, a.ScheduledTime)
	if err != nil {
		s.logger.Error().Err(err).Int64("appointment_id", apptID).
			Msg("meeting link issuance failed after payment")
		return
	}
	_, err = s.appts.Update(ctx, apptID, appointment.UpdateFields{
		MeetingLink:        &link.URL,
		GoogleEventID:      &link.EventID,
		GuardNoMeetingLink: true,
	})
	if apperrors.Is(err, apperrors.KindConflict) {
		// A concurrent writer recorded a link first; keep theirs.
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("appointment_id", apptID).
			Msg("recording meeting link failed after payment")
	}
}
