// Package session decides who may enter a live consultation room. Decisions
// are made fresh on every call against the appointment store; there is no
// cache to go stale between a cancellation and a join attempt.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/telecare/telecare/internal/domain/appointment"
	"github.com/telecare/telecare/internal/domain/doctor"
	"github.com/telecare/telecare/pkg/apperrors"
)

// Reason is the coarse denial code exposed to the signaling layer. Anything
// finer would leak appointment details to unauthorized callers.
type Reason string

const (
	ReasonNotFound       Reason = "not_found"
	ReasonWrongStatus    Reason = "wrong_status"
	ReasonNotParticipant Reason = "not_participant"
	ReasonServiceError   Reason = "service_error"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision        { return Decision{Allowed: true} }
func deny(r Reason) Decision { return Decision{Reason: r} }

// DefaultTimeout bounds the store lookup when no explicit timeout is
// configured.
const DefaultTimeout = 3 * time.Second

// Service authorizes users into consultation rooms.
type Service struct {
	appts   appointment.Repository
	doctors doctor.Repository
	timeout time.Duration
	logger  zerolog.Logger
}

func NewService(appts appointment.Repository, doctors doctor.Repository, timeout time.Duration, logger zerolog.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{appts: appts, doctors: doctors, timeout: timeout, logger: logger}
}

// ParseRoomName extracts the appointment id from a room name of the form
// "appt-{id}". The id must be a positive integer with no leading zeros.
func ParseRoomName(room string) (int64, bool) {
	digits, ok := strings.CutPrefix(room, "appt-")
	if !ok || digits == "" || digits[0] == '0' {
		return 0, false
	}
	var id int64
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		id = id*10 + int64(c-'0')
		if id < 0 {
			return 0, false
		}
	}
	return id, true
}

// Authorize decides whether userID may join the given room. The store lookup
// runs under the configured timeout; expiry or store failure denies, never
// admits.
func (s *Service) Authorize(ctx context.Context, room string, userID int64) Decision {
	apptID, ok := ParseRoomName(room)
	if !ok {
		return deny(ReasonNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	a, err := s.appts.GetByID(ctx, apptID)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return deny(ReasonNotFound)
		}
		s.logger.Error().Err(err).Str("room", room).Int64("user_id", userID).
			Msg("room authorization store lookup failed")
		return deny(ReasonServiceError)
	}

	if a.Status != appointment.StatusConfirmed {
		return deny(ReasonWrongStatus)
	}

	if userID == a.PatientID {
		return allow()
	}

	doc, err := s.doctors.GetByID(ctx, a.DoctorID)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return deny(ReasonNotParticipant)
		}
		s.logger.Error().Err(err).Str("room", room).Int64("user_id", userID).
			Msg("room authorization doctor lookup failed")
		return deny(ReasonServiceError)
	}
	if doc.UserID == userID {
		return allow()
	}
	return deny(ReasonNotParticipant)
}
