package model

import "testing"

func TestCancelOnlyFromConfirmed(t *testing.T) {
	cases := []struct {
		from    Status
		changed bool
		want    Status
	}{
		{StatusConfirmed, true, StatusCancelled},
		{StatusCancelled, false, StatusCancelled},
		{StatusPending, false, StatusPending},
		{Status("confirmé"), false, Status("confirmé")},
	}
	for _, tc := range cases {
		b := Booking{Status: tc.from}
		if got := b.Cancel(); got != tc.changed || b.Status != tc.want {
			t.Fatalf("Cancel from %q: changed=%v status=%q", tc.from, got, b.Status)
		}
	}
}
