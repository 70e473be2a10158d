package repository

import (
	"testing"
	"time"
)

func TestBuildAppointmentListWhereSearchReusesPlaceholder(t *testing.T) {
	status := "planned"
	where, args, next := buildAppointmentListWhere(ListParams{Status: &status, Search: "visite"})

	want := "FROM appointments WHERE 1=1 AND status = $1 AND (title ILIKE $2 OR location ILIKE $2)"
	if where != want {
		t.Fatalf("unexpected where:\n got %s\nwant %s", where, want)
	}
	if len(args) != 2 || args[1] != "%visite%" || next != 3 {
		t.Fatalf("unexpected args %v next %d", args, next)
	}
}

func TestEndsAt(t *testing.T) {
	start := time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC)
	a := Appointment{ScheduledAt: start, DurationMinutes: 45}
	if got := a.EndsAt(); !got.Equal(start.Add(45 * time.Minute)) {
		t.Fatalf("unexpected end %v", got)
	}
}
