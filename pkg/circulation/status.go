package circulation

import (
	"fmt"
	"sort"
	"time"

	"library_catalog/pkg/models"
)

type Event string

const (
	EventBorrow      Event = "borrow"
	EventRenew       Event = "renew"
	EventMarkOverdue Event = "mark_overdue"
	EventReturn      Event = "return"
	EventCancel      Event = "cancel"
)

// transitions is the complete reservation state machine. Any (status, event)
// pair missing from it is illegal. Returned and cancelled are terminal.
var transitions = map[models.ReservationStatus]map[Event]models.ReservationStatus{
	models.StatusReserved: {
		EventBorrow:      models.StatusBorrowed,
		EventRenew:       models.StatusReserved,
		EventMarkOverdue: models.StatusOverdue,
		EventReturn:      models.StatusReturned,
		EventCancel:      models.StatusCancelled,
	},
	models.StatusBorrowed: {
		EventRenew:       models.StatusBorrowed,
		EventMarkOverdue: models.StatusOverdue,
		EventReturn:      models.StatusReturned,
		EventCancel:      models.StatusCancelled,
	},
	models.StatusOverdue: {
		EventReturn: models.StatusReturned,
		EventCancel: models.StatusCancelled,
	},
}

var (
	// ActiveStatuses count against book availability.
	ActiveStatuses = []models.ReservationStatus{models.StatusReserved, models.StatusBorrowed, models.StatusOverdue}
	// HeldStatuses count against a customer's reservation limit.
	HeldStatuses = []models.ReservationStatus{models.StatusReserved, models.StatusBorrowed}
)

// Transition returns the status reached by applying ev to from.
func Transition(from models.ReservationStatus, ev Event) (models.ReservationStatus, error) {
	to, ok := transitions[from][ev]
	if !ok {
		return from, fmt.Errorf("%w: cannot %s a %s reservation", ErrInvalidTransition, ev, from)
	}
	return to, nil
}

// SourcesOf lists the statuses from which ev is permitted.
func SourcesOf(ev Event) []models.ReservationStatus {
	var out []models.ReservationStatus
	for from, events := range transitions {
		if _, ok := events[ev]; ok {
			out = append(out, from)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func IsActive(s models.ReservationStatus) bool {
	return s == models.StatusReserved || s == models.StatusBorrowed || s == models.StatusOverdue
}

func IsTerminal(s models.ReservationStatus) bool {
	_, ok := transitions[s]
	return !ok
}

// EffectiveStatus is the status r is in at now: a held reservation whose due date has
// passed is overdue even before the sweep has persisted that.
func EffectiveStatus(r models.Reservation, now time.Time) models.ReservationStatus {
	if (r.Status == models.StatusReserved || r.Status == models.StatusBorrowed) &&
		r.ReturnDate == nil && r.DueDate.Before(now) {
		return models.StatusOverdue
	}
	return r.Status
}
