package appointment

import (
	"fmt"
	"time"
)

// Status is the session status of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus is the payment state of an appointment.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// ValidStatus reports whether s is a known session status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ValidPaymentStatus reports whether p is a known payment status.
func ValidPaymentStatus(p PaymentStatus) bool {
	return p == PaymentUnpaid || p == PaymentPaid
}

// statusTransitions encodes the forward-only lifecycle: pending -> confirmed
// -> completed, with cancelled reachable from pending or confirmed only.
// Terminal states have no outgoing edges.
var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether an appointment may move from one status to
// another.
func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Appointment maps to the appointment table.
type Appointment struct {
	ID                    int64         `db:"id" json:"id"`
	PatientID             int64         `db:"patient_id" json:"patient_id"`
	DoctorID              int64         `db:"doctor_id" json:"doctor_id"`
	ServiceID             *int64        `db:"service_id" json:"service_id,omitempty"`
	ScheduledTime         time.Time     `db:"scheduled_time" json:"scheduled_time"`
	PatientNotes          *string       `db:"patient_notes" json:"patient_notes,omitempty"`
	DoctorNotes           *string       `db:"doctor_notes" json:"doctor_notes,omitempty"`
	PrescriptionPath      *string       `db:"prescription_path" json:"prescription_path,omitempty"`
	PharmacyID            *int64        `db:"pharmacy_id" json:"pharmacy_id,omitempty"`
	Fee                   *float64      `db:"fee" json:"fee,omitempty"`
	PaymentStatus         PaymentStatus `db:"payment_status" json:"payment_status"`
	StripePaymentIntentID *string       `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id,omitempty"`
	Status                Status        `db:"status" json:"status"`
	MeetingLink           *string       `db:"meeting_link" json:"meeting_link,omitempty"`
	GoogleEventID         *string       `db:"google_event_id" json:"google_event_id,omitempty"`
	CreatedAt             time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time     `db:"updated_at" json:"updated_at"`
}

// RoomName returns the signaling room name for the appointment.
func (a *Appointment) RoomName() string {
	return RoomName(a.ID)
}

// RoomName derives the signaling room name from an appointment id.
func RoomName(id int64) string {
	return fmt.Sprintf("appt-%d", id)
}

// View is the outward representation of an appointment. Session fields are
// withheld from a patient who has not paid yet.
type View struct {
	ID                    int64         `json:"id"`
	PatientID             int64         `json:"patient_id"`
	DoctorID              int64         `json:"doctor_id"`
	ServiceID             *int64        `json:"service_id,omitempty"`
	ScheduledTime         time.Time     `json:"scheduled_time"`
	PatientNotes          *string       `json:"patient_notes,omitempty"`
	DoctorNotes           *string       `json:"doctor_notes,omitempty"`
	PrescriptionPath      *string       `json:"prescription_path,omitempty"`
	PharmacyID            *int64        `json:"pharmacy_id,omitempty"`
	Fee                   *float64      `json:"fee,omitempty"`
	PaymentStatus         PaymentStatus `json:"payment_status"`
	StripePaymentIntentID *string       `json:"stripe_payment_intent_id,omitempty"`
	Status                Status        `json:"status"`
	MeetingLink           *string       `json:"meeting_link,omitempty"`
	GoogleEventID         *string       `json:"google_event_id,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// ViewFor renders the appointment for a caller, redacting the meeting link
// for a patient who has not paid.
func (a *Appointment) ViewFor(callerID int64, role string) View {
	v := View{
		ID:                    a.ID,
		PatientID:             a.PatientID,
		DoctorID:              a.DoctorID,
		ServiceID:             a.ServiceID,
		ScheduledTime:         a.ScheduledTime,
		PatientNotes:          a.PatientNotes,
		DoctorNotes:           a.DoctorNotes,
		PrescriptionPath:      a.PrescriptionPath,
		PharmacyID:            a.PharmacyID,
		Fee:                   a.Fee,
		PaymentStatus:         a.PaymentStatus,
		StripePaymentIntentID: a.StripePaymentIntentID,
		Status:                a.Status,
		MeetingLink:           a.MeetingLink,
		GoogleEventID:         a.GoogleEventID,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
	if role == "patient" && callerID == a.PatientID && a.PaymentStatus != PaymentPaid {
		v.MeetingLink = nil
		v.GoogleEventID = nil
	}
	return v
}
