package models

import (
	"strings"
	"time"
)

type ReservationStatus string

const (
	StatusReserved  ReservationStatus = "reserved"
	StatusBorrowed  ReservationStatus = "borrowed"
	StatusReturned  ReservationStatus = "returned"
	StatusOverdue   ReservationStatus = "overdue"
	StatusCancelled ReservationStatus = "cancelled"
)

type CustomerStatus string

const (
	CustomerActive    CustomerStatus = "active"
	CustomerSuspended CustomerStatus = "suspended"
	CustomerInactive  CustomerStatus = "inactive"
)

type Book struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	BookUid     string `gorm:"type:uuid;uniqueIndex;not null" json:"bookUid"`
	Title       string `gorm:"not null" json:"title" validate:"required"`
	Author      string `gorm:"not null" json:"author" validate:"required"`
	ISBN        string `gorm:"column:isbn;size:13;uniqueIndex;not null" json:"isbn" validate:"required,catalog_isbn"`
	Quantity    int    `gorm:"not null;default:0;check:quantity >= 0" json:"quantity" validate:"gte=0"`
	Description string `json:"description,omitempty"`
	Year        int    `json:"year,omitempty"`
	Genre       string `gorm:"size:80" json:"genre,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	PageCount   int    `json:"pageCount,omitempty"`
	CoverURL    string `json:"coverUrl,omitempty"`
	// Comma separated subject tags.
	Subjects   string     `json:"subjects,omitempty"`
	EnrichedAt *time.Time `json:"enrichedAt,omitempty"`
	Version    int        `gorm:"not null;default:0" json:"-"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (b Book) SubjectList() []string {
	if b.Subjects == "" {
		return nil
	}
	return strings.Split(b.Subjects, ",")
}

type Address struct {
	Street  string `gorm:"size:200" json:"street,omitempty"`
	City    string `gorm:"size:50" json:"city,omitempty"`
	ZipCode string `gorm:"size:20" json:"zipCode,omitempty"`
	Country string `gorm:"size:50;default:'Turkey'" json:"country,omitempty"`
}

type Customer struct {
	ID              uint           `gorm:"primaryKey" json:"-"`
	CustomerUid     string         `gorm:"type:uuid;uniqueIndex;not null" json:"customerUid"`
	FirstName       string         `gorm:"size:50;not null" json:"firstName" validate:"required,max=50"`
	LastName        string         `gorm:"size:50;not null" json:"lastName" validate:"required,max=50"`
	Email           string         `gorm:"size:254;uniqueIndex;not null" json:"email" validate:"required,catalog_email"`
	Phone           string         `gorm:"size:20" json:"phone,omitempty" validate:"omitempty,phone_number"`
	Address         Address        `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	MembershipDate  time.Time      `json:"membershipDate"`
	Status          CustomerStatus `gorm:"size:20;not null;default:'active'" json:"status" validate:"oneof=active suspended inactive"`
	MaxReservations int            `gorm:"not null;default:3;check:max_reservations >= 1 AND max_reservations <= 10" json:"maxReservations" validate:"gte=1,lte=10"`
	Notes           string         `gorm:"size:500" json:"notes,omitempty" validate:"max=500"`
	Version         int            `gorm:"not null;default:0" json:"-"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

type Fine struct {
	Amount float64 `gorm:"not null;default:0;check:fine_amount >= 0" json:"amount"`
	Paid   bool    `gorm:"not null;default:false" json:"paid"`
	Reason string  `json:"reason,omitempty"`
}

type Reservation struct {
	ID              uint              `gorm:"primaryKey" json:"-"`
	ReservationUid  string            `gorm:"type:uuid;uniqueIndex;not null" json:"reservationUid"`
	BookUid         string            `gorm:"type:uuid;not null;index:idx_reservation_book_status" json:"bookUid"`
	CustomerUid     string            `gorm:"type:uuid;not null;index:idx_reservation_customer_status" json:"customerUid"`
	ReservationDate time.Time         `gorm:"not null" json:"reservationDate"`
	DueDate         time.Time         `gorm:"not null;index" json:"dueDate"`
	ReturnDate      *time.Time        `json:"returnDate,omitempty"`
	Status          ReservationStatus `gorm:"size:20;not null;index:idx_reservation_book_status;index:idx_reservation_customer_status" json:"status"`
	RenewalCount    int               `gorm:"not null;default:0;check:renewal_count >= 0 AND renewal_count <= 3" json:"renewalCount"`
	Fine            Fine              `gorm:"embedded;embeddedPrefix:fine_" json:"fine"`
	Notes           string            `gorm:"size:300" json:"notes,omitempty"`
	Version         int               `gorm:"not null;default:0" json:"-"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// All lists every record type the library database holds, in migration order.
func All() []interface{} {
	return []interface{}{&Book{}, &Customer{}, &Reservation{}}
}
