package circulation

import (
	"context"
	"fmt"
	"strings"

	"library_catalog/pkg/models"
	"library_catalog/pkg/store"
)

const defaultMaxReservations = 3

type CustomerPatch struct {
	FirstName       *string
	LastName        *string
	Email           *string
	Phone           *string
	Address         *models.Address
	Status          *models.CustomerStatus
	MaxReservations *int
	Notes           *string
}

type CustomerQuery struct {
	Search string
	Page   int
	Size   int
}

type CustomerStats struct {
	TotalReservations   int     `json:"totalReservations"`
	ActiveReservations  int     `json:"activeReservations"`
	OverdueReservations int     `json:"overdueReservations"`
	TotalFines          float64 `json:"totalFines"`
	UnpaidFines         float64 `json:"unpaidFines"`
}

type CustomerDetail struct {
	Customer     CustomerView      `json:"customer"`
	Reservations []ReservationView `json:"reservations"`
	Stats        CustomerStats     `json:"stats"`
	Eligible     bool              `json:"eligible"`
}

func normalizeCustomer(c models.Customer) models.Customer {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)
	if c.Address.Country == "" {
		c.Address.Country = "Turkey"
	}
	return c
}

func (s *Service) CreateCustomer(ctx context.Context, c models.Customer) (CustomerView, error) {
	c = normalizeCustomer(c)
	c.ID, c.CustomerUid, c.Version = 0, "", 0
	if c.Status == "" {
		c.Status = models.CustomerActive
	}
	if c.MaxReservations == 0 {
		c.MaxReservations = defaultMaxReservations
	}
	if c.MembershipDate.IsZero() {
		c.MembershipDate = s.clock()
	}
	if err := validateStruct(c); err != nil {
		return CustomerView{}, err
	}
	if _, err := s.customers.Insert(ctx, &c); err != nil {
		return CustomerView{}, err
	}
	s.log.WithField("customer", c.CustomerUid).Info("customer registered")
	return NewCustomerView(c), nil
}

// GetCustomer returns the customer with their reservations, newest first, and loan statistics.
func (s *Service) GetCustomer(ctx context.Context, customerUid string) (CustomerDetail, error) {
	c, err := s.customers.FindByID(ctx, customerUid)
	if err != nil {
		return CustomerDetail{}, err
	}
	reservations, err := s.reservations.Find(ctx, store.Eq("customer_uid", customerUid), store.OrderBy("created_at DESC, id DESC"))
	if err != nil {
		return CustomerDetail{}, err
	}
	now := s.clock()
	detail := CustomerDetail{
		Customer:     NewCustomerView(c),
		Reservations: make([]ReservationView, len(reservations)),
		Eligible:     s.IsEligible(ctx, c),
	}
	for i, r := range reservations {
		detail.Reservations[i] = NewReservationView(r, now)
		detail.Stats.TotalReservations++
		switch EffectiveStatus(r, now) {
		case models.StatusReserved, models.StatusBorrowed:
			detail.Stats.ActiveReservations++
		case models.StatusOverdue:
			detail.Stats.OverdueReservations++
		}
		detail.Stats.TotalFines += r.Fine.Amount
		if !r.Fine.Paid {
			detail.Stats.UnpaidFines += r.Fine.Amount
		}
	}
	return detail, nil
}

func (s *Service) ListCustomers(ctx context.Context, q CustomerQuery) ([]CustomerView, int64, error) {
	filter := store.Search(q.Search, "first_name", "last_name", "email", "phone")
	total, err := s.customers.CountWhere(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	customers, err := s.customers.Find(ctx, filter, store.OrderBy("last_name, first_name"), store.Page(q.Page, q.Size))
	if err != nil {
		return nil, 0, err
	}
	views := make([]CustomerView, len(customers))
	for i, c := range customers {
		views[i] = NewCustomerView(c)
	}
	return views, total, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, customerUid string, p CustomerPatch) (CustomerView, error) {
	c, err := s.customers.FindByID(ctx, customerUid)
	if err != nil {
		return CustomerView{}, err
	}
	if p.FirstName != nil {
		c.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		c.LastName = *p.LastName
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.MaxReservations != nil {
		c.MaxReservations = *p.MaxReservations
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
	}
	c = normalizeCustomer(c)
	if err := validateStruct(c); err != nil {
		return CustomerView{}, err
	}
	n, err := s.customers.UpdateWhere(ctx, customerUid, map[string]interface{}{
		"first_name":       c.FirstName,
		"last_name":        c.LastName,
		"email":            c.Email,
		"phone":            c.Phone,
		"address_street":   c.Address.Street,
		"address_city":     c.Address.City,
		"address_zip_code": c.Address.ZipCode,
		"address_country":  c.Address.Country,
		"status":           c.Status,
		"max_reservations": c.MaxReservations,
		"notes":            c.Notes,
		"version":          c.Version + 1,
	}, store.Eq("version", c.Version))
	if err != nil {
		return CustomerView{}, err
	}
	if n == 0 {
		return CustomerView{}, fmt.Errorf("%w: customer %s was modified concurrently", ErrConflict, customerUid)
	}
	saved, err := s.customers.FindByID(ctx, customerUid)
	if err != nil {
		return CustomerView{}, err
	}
	return NewCustomerView(saved), nil
}

// DeleteCustomer removes a customer that holds no active reservation.
func (s *Service) DeleteCustomer(ctx context.Context, customerUid string) error {
	return s.inTx(ctx, func(_ *store.Collection[models.Book], customers *store.Collection[models.Customer], reservations *store.Collection[models.Reservation]) error {
		c, err := customers.FindByID(ctx, customerUid)
		if err != nil {
			return err
		}
		active, err := reservations.CountWhere(ctx, store.Eq("customer_uid", customerUid), store.In("status", ActiveStatuses))
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("%w: customer %s has %d active reservations", ErrConflict, customerUid, active)
		}
		deleted, err := customers.Delete(ctx, customerUid, store.Eq("version", c.Version))
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("%w: customer %s was modified concurrently", ErrConflict, customerUid)
		}
		s.log.WithField("customer", customerUid).Info("customer removed")
		return nil
	})
}
