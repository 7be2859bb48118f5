package appointment

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/telecare/telecare/internal/domain/doctor"
	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/internal/platform/meet"
	"github.com/telecare/telecare/pkg/apperrors"
)

// ErrNoFields and ErrNothingToUpdate distinguish an update request that
// carried no fields at all from one whose fields were all filtered out by
// role or state checks. Both map to 400 but carry different messages.
var (
	ErrNoFields        = apperrors.InvalidState("no fields supplied")
	ErrNothingToUpdate = apperrors.InvalidState("nothing to update")
)

// Caller identifies the authenticated principal acting on an appointment.
type Caller struct {
	UserID int64
	Role   string
}

// BookRequest is the payload for creating an appointment.
type BookRequest struct {
	DoctorID      int64     `json:"doctor_id"`
	ServiceID     *int64    `json:"service_id"`
	ScheduledTime time.Time `json:"scheduled_time"`
	PatientNotes  *string   `json:"patient_notes"`
}

// UpdateRequest is a sparse update. Absent fields are left unchanged.
type UpdateRequest struct {
	ScheduledTime    *time.Time     `json:"scheduled_time"`
	PatientNotes     *string        `json:"patient_notes"`
	DoctorNotes      *string        `json:"doctor_notes"`
	PrescriptionPath *string        `json:"prescription_path"`
	PharmacyID       *int64         `json:"pharmacy_id"`
	Fee              *float64       `json:"fee"`
	PaymentStatus    *PaymentStatus `json:"payment_status"`
	Status           *Status        `json:"status"`
}

func (r UpdateRequest) empty() bool {
	return r.ScheduledTime == nil && r.PatientNotes == nil && r.DoctorNotes == nil &&
		r.PrescriptionPath == nil && r.PharmacyID == nil && r.Fee == nil &&
		r.PaymentStatus == nil && r.Status == nil
}

// Service implements the appointment lifecycle.
type Service struct {
	repo    Repository
	doctors doctor.Repository
	links   meet.Issuer
	logger  zerolog.Logger
}

func NewService(repo Repository, doctors doctor.Repository, links meet.Issuer, logger zerolog.Logger) *Service {
	return &Service{repo: repo, doctors: doctors, links: links, logger: logger}
}

// Book creates a pending, unpaid appointment for the calling patient.
func (s *Service) Book(ctx context.Context, patientID int64, req BookRequest) (*View, error) {
	if req.DoctorID <= 0 {
		return nil, apperrors.InvalidState("doctor_id is required")
	}
	if req.ScheduledTime.IsZero() || !req.ScheduledTime.After(time.Now()) {
		return nil, apperrors.InvalidState("scheduled_time must be in the future")
	}
	if _, err := s.doctors.GetByID(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	a, err := s.repo.Create(ctx, &Appointment{
		PatientID:     patientID,
		DoctorID:      req.DoctorID,
		ServiceID:     req.ServiceID,
		ScheduledTime: req.ScheduledTime,
		PatientNotes:  req.PatientNotes,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("appointment_id", a.ID).
		Int64("patient_id", patientID).
		Int64("doctor_id", a.DoctorID).
		Msg("appointment booked")

	v := a.ViewFor(patientID, auth.RolePatient)
	return &v, nil
}

// Get fetches an appointment for a participant or admin, redacting session
// fields from a patient who has not paid.
func (s *Service) Get(ctx context.Context, caller Caller, id int64) (*View, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, caller, a); err != nil {
		return nil, err
	}
	v := a.ViewFor(caller.UserID, caller.Role)
	return &v, nil
}

func (s *Service) authorizeRead(ctx context.Context, caller Caller, a *Appointment) error {
	switch caller.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RolePatient:
		if caller.UserID == a.PatientID {
			return nil
		}
	case auth.RoleDoctor:
		doc, err := s.doctors.GetByUserID(ctx, caller.UserID)
		if err == nil && doc.ID == a.DoctorID {
			return nil
		}
	}
	return apperrors.Forbidden("not a participant of this appointment")
}

// ListForCaller returns the caller's own appointments.
func (s *Service) ListForCaller(ctx context.Context, caller Caller, limit, offset int) ([]View, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var (
		appts []*Appointment
		err   error
	)
	switch caller.Role {
	case auth.RolePatient:
		appts, err = s.repo.ListByPatient(ctx, caller.UserID, limit, offset)
	case auth.RoleDoctor:
		var doc *doctor.Doctor
		doc, err = s.doctors.GetByUserID(ctx, caller.UserID)
		if err != nil {
			return nil, apperrors.Forbidden("no doctor profile for this user")
		}
		appts, err = s.repo.ListByDoctor(ctx, doc.ID, limit, offset)
	default:
		return nil, apperrors.Forbidden("listing requires a patient or doctor role")
	}
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(appts))
	for _, a := range appts {
		views = append(views, a.ViewFor(caller.UserID, caller.Role))
	}
	return views, nil
}

// Update applies a role-scoped sparse update. Fields the caller's role may
// not write, values equal to the current ones, and illegal status transitions
// are silently dropped; only a request that ends up with nothing applicable
// fails.
func (s *Service) Update(ctx context.Context, caller Caller, id int64, req UpdateRequest) (*View, error) {
	if req.empty() {
		return nil, ErrNoFields
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var fields UpdateFields
	switch caller.Role {
	case auth.RoleDoctor:
		doc, derr := s.doctors.GetByUserID(ctx, caller.UserID)
		if derr != nil || doc.ID != a.DoctorID {
			return nil, apperrors.Forbidden("appointment belongs to another doctor")
		}
		fields = s.filterDoctor(a, req)
	case auth.RoleAdmin:
		fields = s.filterAdmin(a, req)
	default:
		return nil, apperrors.Forbidden("role may not update appointments")
	}

	if fields.Empty() {
		return nil, ErrNothingToUpdate
	}

	// A status transition is legal relative to the status just read; guard
	// the write on that snapshot so a concurrent transition cannot be
	// overwritten. Losing the guard surfaces as Conflict, never a silent
	// move out of a state the appointment already left.
	if fields.Status != nil {
		prior := a.Status
		fields.ExpectedStatus = &prior
	}

	// A transition into confirmed mints the meeting link in the same write,
	// guarded so a concurrent confirmation cannot overwrite one.
	if fields.Status != nil && *fields.Status == StatusConfirmed && a.MeetingLink == nil {
		link, lerr := s.links.Issue(ctx, a.ID, a.ScheduledTime)
		if lerr != nil {
			s.logger.Error().Err(lerr).Int64("appointment_id", a.ID).
				Msg("meeting link issuance failed, confirming without link")
		} else {
			fields.MeetingLink = &link.URL
			fields.GoogleEventID = &link.EventID
			fields.GuardNoMeetingLink = true
		}
	}

	updated, err := s.repo.Update(ctx, id, fields)
	if apperrors.Is(err, apperrors.KindConflict) && fields.GuardNoMeetingLink {
		// Another writer recorded a link first; keep theirs, retry once
		// with only the remaining fields.
		fields.MeetingLink = nil
		fields.GoogleEventID = nil
		fields.GuardNoMeetingLink = false
		updated, err = s.repo.Update(ctx, id, fields)
	}
	if err != nil {
		return nil, err
	}

	if fields.Status != nil {
		s.logger.Info().
			Int64("appointment_id", id).
			Str("from", string(a.Status)).
			Str("to", string(*fields.Status)).
			Int64("user_id", caller.UserID).
			Str("role", caller.Role).
			Msg("appointment status changed")
	}

	v := updated.ViewFor(caller.UserID, caller.Role)
	return &v, nil
}

// filterDoctor keeps the fields a doctor may write on their own appointment.
func (s *Service) filterDoctor(a *Appointment, req UpdateRequest) UpdateFields {
	var f UpdateFields
	if req.DoctorNotes != nil && !strEq(req.DoctorNotes, a.DoctorNotes) {
		f.DoctorNotes = req.DoctorNotes
	}
	if req.PrescriptionPath != nil && !strEq(req.PrescriptionPath, a.PrescriptionPath) {
		f.PrescriptionPath = req.PrescriptionPath
	}
	if req.PharmacyID != nil && !int64Eq(req.PharmacyID, a.PharmacyID) {
		f.PharmacyID = req.PharmacyID
	}
	if req.Fee != nil && *req.Fee >= 0 && !floatEq(req.Fee, a.Fee) {
		f.Fee = req.Fee
	}
	f.Status = filterStatus(a.Status, req.Status)
	return f
}

// filterAdmin keeps only the payment status override. Clinical and
// scheduling fields belong to the owning doctor; marking paid still requires
// a positive fee, like the payment paths.
func (s *Service) filterAdmin(a *Appointment, req UpdateRequest) UpdateFields {
	var f UpdateFields
	if req.PaymentStatus == nil || !ValidPaymentStatus(*req.PaymentStatus) || *req.PaymentStatus == a.PaymentStatus {
		return f
	}
	if *req.PaymentStatus == PaymentPaid && (a.Fee == nil || *a.Fee <= 0) {
		return f
	}
	f.PaymentStatus = req.PaymentStatus
	return f
}

func filterStatus(current Status, requested *Status) *Status {
	if requested == nil || !ValidStatus(*requested) {
		return nil
	}
	if !CanTransition(current, *requested) {
		return nil
	}
	return requested
}

func strEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func int64Eq(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func floatEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
