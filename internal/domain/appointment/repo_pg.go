package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telecare/telecare/pkg/apperrors"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const apptCols = `id, patient_id, doctor_id, service_id, scheduled_time, patient_notes,
	doctor_notes, prescription_path, pharmacy_id, fee, payment_status,
	stripe_payment_intent_id, status, meeting_link, google_event_id, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.ServiceID, &a.ScheduledTime,
		&a.PatientNotes, &a.DoctorNotes, &a.PrescriptionPath, &a.PharmacyID,
		&a.Fee, &a.PaymentStatus, &a.StripePaymentIntentID, &a.Status,
		&a.MeetingLink, &a.GoogleEventID, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("appointment not found")
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointment (patient_id, doctor_id, service_id, scheduled_time, patient_notes, fee)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+apptCols,
		a.PatientID, a.DoctorID, a.ServiceID, a.ScheduledTime, a.PatientNotes, a.Fee)
	return scanAppointment(row)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *repoPG) list(ctx context.Context, query string, arg int64, limit, offset int) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, query, arg, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Appointment, error) {
	return r.list(ctx, `SELECT `+apptCols+` FROM appointment WHERE patient_id = $1 ORDER BY scheduled_time DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID int64, limit, offset int) ([]*Appointment, error) {
	return r.list(ctx, `SELECT `+apptCols+` FROM appointment WHERE doctor_id = $1 ORDER BY scheduled_time DESC LIMIT $2 OFFSET $3`, doctorID, limit, offset)
}

func (r *repoPG) Update(ctx context.Context, id int64, fields UpdateFields) (*Appointment, error) {
	set := make([]string, 0, 11)
	args := make([]interface{}, 0, 12)
	args = append(args, id)

	add := func(col string, val interface{}) {
		args = append(args, val)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if fields.ScheduledTime != nil {
		add("scheduled_time", *fields.ScheduledTime)
	}
	if fields.PatientNotes != nil {
		add("patient_notes", *fields.PatientNotes)
	}
	if fields.DoctorNotes != nil {
		add("doctor_notes", *fields.DoctorNotes)
	}
	if fields.PrescriptionPath != nil {
		add("prescription_path", *fields.PrescriptionPath)
	}
	if fields.PharmacyID != nil {
		add("pharmacy_id", *fields.PharmacyID)
	}
	if fields.Fee != nil {
		add("fee", *fields.Fee)
	}
	if fields.PaymentStatus != nil {
		add("payment_status", string(*fields.PaymentStatus))
	}
	if fields.Status != nil {
		add("status", string(*fields.Status))
	}
	if fields.MeetingLink != nil {
		add("meeting_link", *fields.MeetingLink)
	}
	if fields.GoogleEventID != nil {
		add("google_event_id", *fields.GoogleEventID)
	}
	if len(set) == 0 {
		return nil, apperrors.InvalidState("no fields to update")
	}
	set = append(set, "updated_at = now()")

	where := "id = $1"
	if fields.GuardNoMeetingLink {
		where += " AND meeting_link IS NULL"
	}
	if fields.ExpectedStatus != nil {
		args = append(args, string(*fields.ExpectedStatus))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE appointment SET `+strings.Join(set, ", ")+` WHERE `+where+` RETURNING `+apptCols,
		args...)
	a, err := scanAppointment(row)
	if err != nil && apperrors.Is(err, apperrors.KindNotFound) &&
		(fields.GuardNoMeetingLink || fields.ExpectedStatus != nil) {
		// The row exists but a guard filtered it out; a concurrent writer
		// recorded a link or moved the status first.
		return nil, apperrors.Conflict("appointment changed concurrently")
	}
	return a, err
}

func (r *repoPG) TryMarkPaid(ctx context.Context, id int64, paymentIntentID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointment
		SET payment_status = 'paid',
		    stripe_payment_intent_id = $2,
		    status = CASE WHEN status = 'pending' THEN 'confirmed' ELSE status END,
		    updated_at = now()
		WHERE id = $1
		  AND payment_status = 'unpaid'
		  AND status IN ('pending', 'confirmed')`,
		id, paymentIntentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
