package appointment

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusPending, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusPending, false},
		{StatusConfirmed, StatusConfirmed, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusConfirmed, false},
		{StatusCompleted, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCancelled, StatusCompleted, false},
		{StatusCancelled, StatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	all := []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}
	for _, from := range all {
		if !from.Terminal() {
			continue
		}
		for _, to := range all {
			if CanTransition(from, to) {
				t.Errorf("terminal status %s allows transition to %s", from, to)
			}
		}
	}
}

func TestRoomName(t *testing.T) {
	a := &Appointment{ID: 42}
	if got := a.RoomName(); got != "appt-42" {
		t.Fatalf("RoomName() = %q, want %q", got, "appt-42")
	}
}

func TestViewForRedactsLinkWhileUnpaid(t *testing.T) {
	link := "https://meet.telecare.dev/abc"
	evt := "evt-1"
	a := &Appointment{
		ID:            1,
		PatientID:     10,
		DoctorID:      2,
		PaymentStatus: PaymentUnpaid,
		Status:        StatusConfirmed,
		MeetingLink:   &link,
		GoogleEventID: &evt,
	}

	if v := a.ViewFor(10, "patient"); v.MeetingLink != nil || v.GoogleEventID != nil {
		t.Fatal("unpaid patient view should not expose the meeting link")
	}
	if v := a.ViewFor(99, "doctor"); v.MeetingLink == nil {
		t.Fatal("doctor view should keep the meeting link")
	}

	a.PaymentStatus = PaymentPaid
	if v := a.ViewFor(10, "patient"); v.MeetingLink == nil || *v.MeetingLink != link {
		t.Fatal("paid patient view should expose the meeting link")
	}
}
