package circulation

import (
	"testing"
	"time"

	"library_catalog/pkg/models"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from models.ReservationStatus
		ev   Event
		want models.ReservationStatus
		ok   bool
	}{
		{models.StatusReserved, EventBorrow, models.StatusBorrowed, true},
		{models.StatusReserved, EventRenew, models.StatusReserved, true},
		{models.StatusBorrowed, EventRenew, models.StatusBorrowed, true},
		{models.StatusBorrowed, EventBorrow, "", false},
		{models.StatusOverdue, EventRenew, "", false},
		{models.StatusOverdue, EventReturn, models.StatusReturned, true},
		{models.StatusOverdue, EventCancel, models.StatusCancelled, true},
		{models.StatusOverdue, EventMarkOverdue, "", false},
		{models.StatusReturned, EventReturn, "", false},
		{models.StatusReturned, EventCancel, "", false},
		{models.StatusCancelled, EventReturn, "", false},
		{models.StatusCancelled, EventRenew, "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.ev), func(t *testing.T) {
			got, err := Transition(tt.from, tt.ev)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, got)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSourcesOf(t *testing.T) {
	assert.Equal(t, []models.ReservationStatus{models.StatusBorrowed, models.StatusReserved}, SourcesOf(EventMarkOverdue))
	assert.Equal(t, []models.ReservationStatus{models.StatusBorrowed, models.StatusOverdue, models.StatusReserved}, SourcesOf(EventReturn))
	assert.Equal(t, []models.ReservationStatus{models.StatusReserved}, SourcesOf(EventBorrow))
}

func TestTerminalAndActive(t *testing.T) {
	assert.True(t, IsTerminal(models.StatusReturned))
	assert.True(t, IsTerminal(models.StatusCancelled))
	assert.False(t, IsTerminal(models.StatusOverdue))

	for _, s := range ActiveStatuses {
		assert.True(t, IsActive(s), s)
	}
	assert.False(t, IsActive(models.StatusReturned))
	assert.False(t, IsActive(models.StatusCancelled))
}

func TestEffectiveStatus(t *testing.T) {
	returned := t0.Add(-time.Hour)
	tests := []struct {
		name string
		r    models.Reservation
		want models.ReservationStatus
	}{
		{"reserved before due", models.Reservation{Status: models.StatusReserved, DueDate: t0.Add(time.Hour)}, models.StatusReserved},
		{"reserved past due", models.Reservation{Status: models.StatusReserved, DueDate: t0.Add(-time.Hour)}, models.StatusOverdue},
		{"borrowed past due", models.Reservation{Status: models.StatusBorrowed, DueDate: t0.Add(-time.Hour)}, models.StatusOverdue},
		{"due exactly now", models.Reservation{Status: models.StatusBorrowed, DueDate: t0}, models.StatusBorrowed},
		{"returned late", models.Reservation{Status: models.StatusReturned, DueDate: t0.Add(-48 * time.Hour), ReturnDate: &returned}, models.StatusReturned},
		{"cancelled", models.Reservation{Status: models.StatusCancelled, DueDate: t0.Add(-time.Hour)}, models.StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveStatus(tt.r, t0))
		})
	}
}

func TestDaysOverdue(t *testing.T) {
	assert.Equal(t, 0, DaysOverdue(t0, t0))
	assert.Equal(t, 0, DaysOverdue(t0.Add(time.Hour), t0))
	assert.Equal(t, 1, DaysOverdue(t0.Add(-time.Minute), t0))
	assert.Equal(t, 5, DaysOverdue(t0.Add(-5*day), t0))
	assert.Equal(t, 6, DaysOverdue(t0.Add(-5*day-time.Hour), t0))
}

func TestLoanDuration(t *testing.T) {
	r := models.Reservation{ReservationDate: t0}
	assert.Equal(t, 0, LoanDuration(r, t0))
	assert.Equal(t, 3, LoanDuration(r, t0.Add(2*day+time.Hour)))

	returned := t0.Add(4 * day)
	r.ReturnDate = &returned
	assert.Equal(t, 4, LoanDuration(r, t0.Add(30*day)))
}
