package circulation

import (
	"time"

	"library_catalog/pkg/models"
)

// BookView is a book with its availability as of the read.
type BookView struct {
	models.Book
	AvailableQuantity  int          `json:"availableQuantity"`
	AvailabilityStatus Availability `json:"availabilityStatus"`
}

func NewBookView(book models.Book, activeReservations int64) BookView {
	return BookView{
		Book:               book,
		AvailableQuantity:  AvailableQuantity(book, activeReservations),
		AvailabilityStatus: AvailabilityStatus(book, activeReservations),
	}
}

type CustomerView struct {
	models.Customer
	FullName string `json:"fullName"`
}

func NewCustomerView(c models.Customer) CustomerView {
	return CustomerView{Customer: c, FullName: c.FullName()}
}

// ReservationView carries the derived loan fields and, when loaded, the referenced records.
type ReservationView struct {
	models.Reservation
	EffectiveStatus models.ReservationStatus `json:"effectiveStatus"`
	DaysOverdue     int                      `json:"daysOverdue"`
	LoanDuration    int                      `json:"loanDuration"`
	Book            *models.Book             `json:"book,omitempty"`
	Customer        *CustomerView            `json:"customer,omitempty"`
}

func NewReservationView(r models.Reservation, now time.Time) ReservationView {
	v := ReservationView{
		Reservation:     r,
		EffectiveStatus: EffectiveStatus(r, now),
		LoanDuration:    LoanDuration(r, now),
	}
	if v.EffectiveStatus == models.StatusOverdue && r.ReturnDate == nil {
		v.DaysOverdue = DaysOverdue(r.DueDate, now)
	}
	return v
}
