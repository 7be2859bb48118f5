package appointment

import (
	"context"
	"time"
)

// UpdateFields carries the mutable columns of an appointment. Nil pointers
// are left untouched by the update.
type UpdateFields struct {
	ScheduledTime    *time.Time
	PatientNotes     *string
	DoctorNotes      *string
	PrescriptionPath *string
	PharmacyID       *int64
	Fee              *float64
	PaymentStatus    *PaymentStatus
	Status           *Status
	MeetingLink      *string
	GoogleEventID    *string

	// GuardNoMeetingLink restricts the update to rows whose meeting_link is
	// still NULL. Used when writing a freshly issued link so a concurrent
	// writer cannot overwrite one already recorded.
	GuardNoMeetingLink bool

	// ExpectedStatus restricts the update to rows still in this status.
	// Status transitions are validated against a read snapshot; this guard
	// makes the write itself the arbiter, so a transition racing another
	// writer cannot move an appointment out of a state it already left.
	ExpectedStatus *Status
}

// Empty reports whether no column would be written.
func (f UpdateFields) Empty() bool {
	return f.ScheduledTime == nil && f.PatientNotes == nil && f.DoctorNotes == nil &&
		f.PrescriptionPath == nil && f.PharmacyID == nil && f.Fee == nil &&
		f.PaymentStatus == nil && f.Status == nil && f.MeetingLink == nil &&
		f.GoogleEventID == nil
}

// Repository defines persistence for appointments.
type Repository interface {
	Create(ctx context.Context, a *Appointment) (*Appointment, error)
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Appointment, error)
	ListByDoctor(ctx context.Context, doctorID int64, limit, offset int) ([]*Appointment, error)

	// Update writes the non-nil fields and returns the resulting row. With
	// GuardNoMeetingLink set it returns apperrors.Conflict when the guard
	// filters the row out.
	Update(ctx context.Context, id int64, fields UpdateFields) (*Appointment, error)

	// TryMarkPaid atomically flips an unpaid, non-terminal appointment to
	// paid, recording the payment intent id and promoting pending to
	// confirmed. It reports whether this call performed the flip.
	TryMarkPaid(ctx context.Context, id int64, paymentIntentID string) (bool, error)
}
