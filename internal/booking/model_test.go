package booking

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{StatusPendingPayment, StatusConfirmed, true},
		{StatusPendingPayment, StatusCancelled, true},
		{StatusPendingPayment, StatusExpired, true},
		{StatusPendingPayment, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusRescheduled, true},
		{StatusConfirmed, StatusExpired, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusExpired, StatusConfirmed, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusRescheduled, StatusConfirmed, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []AppointmentStatus{StatusCompleted, StatusCancelled, StatusExpired, StatusRescheduled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []AppointmentStatus{StatusPendingPayment, StatusConfirmed} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestConsultationTypeValid(t *testing.T) {
	for _, ct := range []ConsultationType{ConsultationVideo, ConsultationInPerson, ConsultationAudio, ConsultationChat} {
		if !ct.Valid() {
			t.Errorf("%s should be valid", ct)
		}
	}
	if ConsultationType("TELEPATHY").Valid() {
		t.Error("unknown type accepted")
	}
}
